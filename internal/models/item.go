package models

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Category категория вещи
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryFurniture   Category = "furniture"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryToys        Category = "toys"
	CategorySports      Category = "sports"
	CategoryHome        Category = "home"
	CategoryGarden      Category = "garden"
	CategoryOther       Category = "other"
)

// Condition состояние вещи
type Condition string

const (
	ConditionNew         Condition = "new"
	ConditionExcellent   Condition = "excellent"
	ConditionGood        Condition = "good"
	ConditionUsed        Condition = "used"
	ConditionNeedsRepair Condition = "needs_repair"
	ConditionDamaged     Condition = "damaged"
)

// Статусы обмена вещи. Поле свободное, но сервис пишет только эти значения.
const (
	ItemStatusPending  = "pending"
	ItemStatusSwapped  = "swapped"
	ItemStatusRejected = "rejected"
)

var validCategories = map[Category]bool{
	CategoryElectronics: true, CategoryFurniture: true, CategoryClothing: true,
	CategoryBooks: true, CategoryToys: true, CategorySports: true,
	CategoryHome: true, CategoryGarden: true, CategoryOther: true,
}

var validConditions = map[Condition]bool{
	ConditionNew: true, ConditionExcellent: true, ConditionGood: true,
	ConditionUsed: true, ConditionNeedsRepair: true, ConditionDamaged: true,
}

// ParseCategory нормализует категорию; неизвестные значения становятся "other"
func ParseCategory(s string) Category {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	if !validCategories[c] {
		return CategoryOther
	}
	return c
}

// ParseCondition нормализует состояние; по умолчанию - новое
func ParseCondition(s string) Condition {
	c := Condition(strings.ToLower(strings.TrimSpace(s)))
	if !validConditions[c] {
		return ConditionNew
	}
	return c
}

// IsValidCategory проверяет значение фильтра категории
func IsValidCategory(s string) bool {
	return validCategories[Category(s)]
}

// IsValidCondition проверяет значение фильтра состояния
func IsValidCondition(s string) bool {
	return validConditions[Condition(s)]
}

// Item представляет вещь, выставленную на обмен
type Item struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	Name         string        `json:"name"`
	Description  string        `json:"description"`
	Keywords     string        `json:"keywords"`
	Category     Category      `json:"category"`
	Condition    Condition     `json:"condition"`
	SwapStatus   string        `json:"swap_status"`
	Images       []ItemImage   `json:"images"`
	ListedAt     time.Time     `json:"listed_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	SwapRequests []ItemSwapRef `json:"swap_requests,omitempty"`

	// Дополнительные поля для API
	ListedBy *UserSummary `json:"listed_by,omitempty"`
}

// ItemImage представляет изображение вещи
type ItemImage struct {
	ID         uuid.UUID     `json:"id"`
	ItemID     uuid.UUID     `json:"item_id"`
	URL        string        `json:"url"`
	PreviewURL string        `json:"preview_url,omitempty"`
	PublicID   string        `json:"public_id"`
	IsMain     bool          `json:"is_main"`
	Position   int           `json:"position"`
	Metadata   ImageMetadata `json:"metadata,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ItemSwapRef - запрос на обмен, "вложенный" в вещь, которую хотят получить.
// Хранится один раз в swap_requests, здесь только проекция.
type ItemSwapRef struct {
	RequestID    uuid.UUID `json:"request_id"`
	SwapWithItem uuid.UUID `json:"swap_with_item_id"`
	RequesterID  uuid.UUID `json:"requester_id"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	OfferedItem  *Item     `json:"offered_item,omitempty"`
}

// ItemFilter параметры поиска по вещам
type ItemFilter struct {
	Query          string
	Category       string
	Condition      string
	SwapStatus     string
	OwnerID        *uuid.UUID
	ExcludeOwnerID *uuid.UUID
	Limit          int
	Offset         int
}

// ImageMetadata содержит ключевые метаданные изображения
type ImageMetadata struct {
	AssetID   string    `json:"asset_id,omitempty"`
	PublicID  string    `json:"public_id,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
}

// CloudinaryResponse - часть ответа Cloudinary, которую присылает клиент
// после прямой загрузки
type CloudinaryResponse struct {
	AssetID   string    `json:"asset_id"`
	PublicID  string    `json:"public_id"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"created_at"`
	Bytes     int       `json:"bytes"`
	SecureURL string    `json:"secure_url"`
	Eager     []Eager   `json:"eager"`
}

// Eager содержит информацию о трансформациях изображения
type Eager struct {
	Status    string `json:"status"`
	BatchID   string `json:"batch_id"`
	URL       string `json:"url"`
	SecureURL string `json:"secure_url"`
}

// ExtractMetadata извлекает основные метаданные из ответа Cloudinary
func ExtractMetadata(cr CloudinaryResponse) ImageMetadata {
	return ImageMetadata{
		AssetID:   cr.AssetID,
		PublicID:  cr.PublicID,
		Width:     cr.Width,
		Height:    cr.Height,
		CreatedAt: cr.CreatedAt,
		Bytes:     cr.Bytes,
	}
}

// ExtractPreviewURL извлекает URL превью из ответа Cloudinary
func ExtractPreviewURL(cr CloudinaryResponse) string {
	for _, eager := range cr.Eager {
		if eager.Status == "processing" || eager.Status == "completed" {
			return eager.SecureURL
		}
	}
	return ""
}

// ParseCloudinaryResponse конвертирует JSON-ответ от Cloudinary в структуру
func ParseCloudinaryResponse(data json.RawMessage) (CloudinaryResponse, error) {
	var response CloudinaryResponse
	err := json.Unmarshal(data, &response)
	return response, err
}
