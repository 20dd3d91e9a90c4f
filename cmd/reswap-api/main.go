package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/gofiber/fiber/v3/middleware/static"
	"go.uber.org/zap"

	"github.com/rajivgeraev/reswap-api/internal/config"
	"github.com/rajivgeraev/reswap-api/internal/db"
	"github.com/rajivgeraev/reswap-api/internal/logger"
	"github.com/rajivgeraev/reswap-api/internal/mailer"
	"github.com/rajivgeraev/reswap-api/internal/repository"
	"github.com/rajivgeraev/reswap-api/internal/services/auth"
	"github.com/rajivgeraev/reswap-api/internal/services/cloudinary"
	"github.com/rajivgeraev/reswap-api/internal/services/favorite"
	"github.com/rajivgeraev/reswap-api/internal/services/item"
	"github.com/rajivgeraev/reswap-api/internal/services/swap"
	"github.com/rajivgeraev/reswap-api/internal/storage"
	"github.com/rajivgeraev/reswap-api/internal/utils"
	"github.com/rajivgeraev/reswap-api/internal/websocket"
)

func main() {
	// Загружаем конфигурацию
	cfg := config.LoadConfig()

	zlog, err := logger.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("Сервер остановлен с ошибкой", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Миграции выполняются через database/sql до открытия пула
	sqlDB, err := db.OpenMigrator(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	err = db.Migrate(sqlDB)
	sqlDB.Close()
	if err != nil {
		return err
	}

	pool, err := db.InitDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := storage.New(cfg, log)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(pool)
	items := repository.NewItemRepository(pool)
	swaps := repository.NewSwapRepository(pool)
	favorites := repository.NewFavoriteRepository(pool, items)

	jwtService := utils.NewJWTService(cfg.JWTSecret, cfg.TokenTTL)
	hub := websocket.NewManager(log.Named("ws"))

	// Создаём экземпляр Fiber
	app := fiber.New(fiber.Config{
		AppName:      "Reswap API",
		ErrorHandler: errorHandler(log),
		BodyLimit:    cfg.MaxImages*cfg.MaxUploadBytes + 1<<20,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
	}))

	// Регистрируем маршруты
	auth.NewAuthService(cfg, jwtService, users, store, mailer.New(cfg.SMTPConfig, log), log).SetupRoutes(app)
	item.NewItemService(cfg, jwtService, items, store, log).SetupRoutes(app)
	swap.NewSwapService(cfg, jwtService, swaps, items, users, hub, log).SetupRoutes(app)
	favorite.NewFavoriteService(cfg, jwtService, favorites, log).SetupRoutes(app)
	cloudinary.NewCloudinaryService(cfg, jwtService).SetupRoutes(app)

	if local, ok := store.(*storage.LocalStorage); ok {
		app.Get("/files/*", static.New(local.Dir()))
	}
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Уведомления идут отдельным сервером на WSAddr
	mux := http.NewServeMux()
	mux.Handle("/ws", hub.Handler(jwtService))
	wsServer := &http.Server{
		Addr:              cfg.WSAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("✅ Reswap API запущен", zap.String("addr", cfg.HTTPAddr))
		errCh <- app.Listen(cfg.HTTPAddr, fiber.ListenConfig{DisableStartupMessage: true})
	}()
	go func() {
		log.Info("✅ WebSocket сервер запущен", zap.String("addr", cfg.WSAddr))
		if err := wsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Получен сигнал остановки")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.Shutdown()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("Ошибка остановки WebSocket сервера", zap.Error(err))
	}
	return app.ShutdownWithContext(shutdownCtx)
}

// errorHandler обрабатывает ошибки Fiber
func errorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Внутренняя ошибка сервера"

		var e *fiber.Error
		if errors.As(err, &e) {
			code = e.Code
			message = e.Message
		} else {
			log.Error("Необработанная ошибка", zap.Error(err), zap.String("path", c.Path()))
		}

		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}
