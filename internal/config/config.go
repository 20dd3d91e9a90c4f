package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"github.com/joho/godotenv"
)

// Config структура конфигурации
type Config struct {
	AppEnv           string `default:"production"`
	HTTPAddr         string `default:":8080"`
	WSAddr           string `default:":8081"`
	LogLevel         string `default:"info"`
	JWTSecret        string
	TokenTTL         time.Duration `default:"72h"`
	TelegramBotToken string
	DatabaseURL      string
	DatabaseConfig   DatabaseConfig
	CloudinaryConfig CloudinaryConfig
	StorageConfig    StorageConfig
	SMTPConfig       SMTPConfig
	ResetTokenTTL    time.Duration `default:"1h"`
	ResetURL         string        `default:"http://localhost:8080/reset-password"`
	MaxImages        int           `default:"5"`
	MaxUploadBytes   int           `default:"10485760"`
}

// DatabaseConfig содержит конфигурацию базы данных
type DatabaseConfig struct {
	Host     string `default:"localhost"`
	Port     string `default:"5432"`
	User     string `default:"reswap_user"`
	Password string `default:"reswap_pass"`
	Name     string `default:"reswap"`
	SSLMode  string `default:"disable"`
}

// CloudinaryConfig содержит конфигурацию для Cloudinary
type CloudinaryConfig struct {
	CloudName    string
	APIKey       string
	APISecret    string
	UploadPreset string `default:"reswap_items"`
	UploadFolder string `default:"reswap"`
}

// Enabled сообщает, заданы ли ключи Cloudinary
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// StorageConfig описывает локальное хранилище файлов (используется без Cloudinary)
type StorageConfig struct {
	Dir           string `default:"./uploads"`
	PublicBaseURL string `default:"http://localhost:8080"`
}

// SMTPConfig содержит параметры почтового сервера для писем сброса пароля
type SMTPConfig struct {
	Host     string
	Port     string `default:"587"`
	User     string
	Password string
	From     string `default:"no-reply@reswap.local"`
}

// LoadConfig загружает переменные из .env
func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("⚠️ .env файл не найден, используем переменные окружения")
	}

	cfg, err := FromEnv()
	if err != nil {
		log.Fatalf("❌ Ошибка конфигурации: %v", err)
	}

	return cfg
}

// FromEnv собирает конфигурацию из значений по умолчанию и переменных окружения
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("ошибка установки значений по умолчанию: %w", err)
	}

	setString(&cfg.AppEnv, "APP_ENV")
	setString(&cfg.HTTPAddr, "HTTP_ADDR")
	setString(&cfg.WSAddr, "WS_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.JWTSecret, "JWT_SECRET")
	setString(&cfg.TelegramBotToken, "TELEGRAM_BOT_TOKEN")
	setString(&cfg.ResetURL, "RESET_URL")

	setString(&cfg.DatabaseConfig.Host, "PGHOST")
	setString(&cfg.DatabaseConfig.Port, "PGPORT")
	setString(&cfg.DatabaseConfig.User, "PGUSER")
	setString(&cfg.DatabaseConfig.Password, "PGPASSWORD")
	setString(&cfg.DatabaseConfig.Name, "PGDATABASE")
	setString(&cfg.DatabaseConfig.SSLMode, "PGSSLMODE")

	setString(&cfg.CloudinaryConfig.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&cfg.CloudinaryConfig.APIKey, "CLOUDINARY_API_KEY")
	setString(&cfg.CloudinaryConfig.APISecret, "CLOUDINARY_API_SECRET")
	setString(&cfg.CloudinaryConfig.UploadPreset, "CLOUDINARY_UPLOAD_PRESET")
	setString(&cfg.CloudinaryConfig.UploadFolder, "CLOUDINARY_UPLOAD_FOLDER")

	setString(&cfg.StorageConfig.Dir, "STORAGE_DIR")
	setString(&cfg.StorageConfig.PublicBaseURL, "PUBLIC_BASE_URL")

	setString(&cfg.SMTPConfig.Host, "SMTP_HOST")
	setString(&cfg.SMTPConfig.Port, "SMTP_PORT")
	setString(&cfg.SMTPConfig.User, "SMTP_USER")
	setString(&cfg.SMTPConfig.Password, "SMTP_PASSWORD")
	setString(&cfg.SMTPConfig.From, "SMTP_FROM")

	if err := setDuration(&cfg.TokenTTL, "TOKEN_TTL"); err != nil {
		return nil, err
	}
	if err := setDuration(&cfg.ResetTokenTTL, "RESET_TOKEN_TTL"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.MaxImages, "MAX_IMAGES"); err != nil {
		return nil, err
	}
	if err := setInt(&cfg.MaxUploadBytes, "MAX_UPLOAD_BYTES"); err != nil {
		return nil, err
	}

	// Формируем строку подключения к базе данных
	db := cfg.DatabaseConfig
	cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.Name, db.SSLMode)
	setString(&cfg.DatabaseURL, "DATABASE_URL")

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("не задана обязательная переменная окружения JWT_SECRET")
	}

	return cfg, nil
}

// IsDevelopment возвращает true для локального окружения
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func setString(dst *string, key string) {
	if value, exists := os.LookupEnv(key); exists {
		*dst = value
	}
}

func setInt(dst *int, key string) error {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("некорректное значение %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value, exists := os.LookupEnv(key)
	if !exists {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("некорректное значение %s: %w", key, err)
	}
	*dst = d
	return nil
}
