// Package client - HTTP-клиент приложения для устройства пользователя.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/reswap-api/internal/models"
)

// APIError - ответ сервера с кодом не 2xx. Message - текст из поля error.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsStatus проверяет, что err - ответ сервера с заданным кодом
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// API - клиент REST API
type API struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewAPI создает клиент для сервера baseURL
func NewAPI(baseURL string) *API {
	return &API{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// SetToken задает JWT для авторизованных запросов
func (a *API) SetToken(token string) {
	a.token = token
}

// AuthResult ответ регистрации и входа
type AuthResult struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// ItemQuery параметры поиска вещей
type ItemQuery struct {
	Query       string
	Category    string
	Condition   string
	Status      string
	ExcludeMine bool
	Limit       int
	Offset      int
}

// ItemPage страница результатов поиска
type ItemPage struct {
	Items  []models.Item `json:"items"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

// ItemDetail карточка вещи
type ItemDetail struct {
	Item    models.Item `json:"item"`
	IsOwner bool        `json:"is_owner"`
}

// NewItem данные новой вещи; Images - пути к локальным файлам
type NewItem struct {
	Name        string
	Description string
	Keywords    string
	Category    string
	Condition   string
	Images      []string
}

// Register регистрирует пользователя по email и паролю
func (a *API) Register(ctx context.Context, email, password, username string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password, "username": username}
	if err := a.do(ctx, http.MethodPost, "/api/auth/register", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Login выполняет вход
func (a *API) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := a.do(ctx, http.MethodPost, "/api/auth/login", body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ForgotPassword запрашивает письмо для сброса пароля
func (a *API) ForgotPassword(ctx context.Context, email string) error {
	return a.do(ctx, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": email}, nil)
}

// ResetPassword задает новый пароль по токену из письма
func (a *API) ResetPassword(ctx context.Context, token, password string) error {
	body := map[string]string{"token": token, "password": password}
	return a.do(ctx, http.MethodPost, "/api/auth/reset-password", body, nil)
}

// Profile возвращает профиль текущего пользователя
func (a *API) Profile(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := a.do(ctx, http.MethodGet, "/api/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfile меняет телефон и местоположение; nil - не менять
func (a *API) UpdateProfile(ctx context.Context, phone, location *string) (*models.User, error) {
	body := struct {
		Phone    *string `json:"phone,omitempty"`
		Location *string `json:"location,omitempty"`
	}{phone, location}

	var user models.User
	if err := a.do(ctx, http.MethodPut, "/api/profile", body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListItems ищет вещи
func (a *API) ListItems(ctx context.Context, q ItemQuery) (*ItemPage, error) {
	v := url.Values{}
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("q", q.Query)
	set("category", q.Category)
	set("condition", q.Condition)
	set("status", q.Status)
	if q.ExcludeMine {
		v.Set("exclude_mine", "true")
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}

	path := "/api/items"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var page ItemPage
	if err := a.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetItem возвращает карточку вещи
func (a *API) GetItem(ctx context.Context, id uuid.UUID) (*ItemDetail, error) {
	var detail ItemDetail
	if err := a.do(ctx, http.MethodGet, "/api/items/"+id.String(), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// MyItems возвращает вещи текущего пользователя
func (a *API) MyItems(ctx context.Context) ([]models.Item, error) {
	var res struct {
		Items []models.Item `json:"items"`
	}
	if err := a.do(ctx, http.MethodGet, "/api/items/my", nil, &res); err != nil {
		return nil, err
	}
	return res.Items, nil
}

// CreateItem публикует вещь, загружая фотографии multipart-запросом
func (a *API) CreateItem(ctx context.Context, item NewItem) (*models.Item, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"name":        item.Name,
		"description": item.Description,
		"keywords":    item.Keywords,
		"category":    item.Category,
		"condition":   item.Condition,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	for _, path := range item.Images {
		if err := attachFile(w, "images", path); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := a.newRequest(ctx, http.MethodPost, "/api/items", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	var res struct {
		Item models.Item `json:"item"`
	}
	if err := a.send(req, &res); err != nil {
		return nil, err
	}
	return &res.Item, nil
}

// DeleteItem удаляет свою вещь
func (a *API) DeleteItem(ctx context.Context, id uuid.UUID) error {
	return a.do(ctx, http.MethodDelete, "/api/items/"+id.String(), nil, nil)
}

// CreateSwap предлагает обменять свою вещь offered на чужую target
func (a *API) CreateSwap(ctx context.Context, target, offered uuid.UUID, message string) (*models.SwapRequest, error) {
	body := map[string]string{
		"item_id":           target.String(),
		"swap_with_item_id": offered.String(),
		"message":           message,
	}
	var res struct {
		Request models.SwapRequest `json:"request"`
	}
	if err := a.do(ctx, http.MethodPost, "/api/swaps", body, &res); err != nil {
		return nil, err
	}
	return &res.Request, nil
}

// ListSwaps возвращает запросы на обмен: incoming, outgoing или all
func (a *API) ListSwaps(ctx context.Context, direction, status string) ([]models.SwapRequest, error) {
	v := url.Values{}
	if direction != "" {
		v.Set("type", direction)
	}
	if status != "" {
		v.Set("status", status)
	}
	path := "/api/swaps"
	if len(v) > 0 {
		path += "?" + v.Encode()
	}

	var res struct {
		Requests []models.SwapRequest `json:"requests"`
	}
	if err := a.do(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return res.Requests, nil
}

// UpdateSwapStatus принимает (swapped), отклоняет (rejected) или отменяет (canceled) запрос
func (a *API) UpdateSwapStatus(ctx context.Context, id uuid.UUID, status models.SwapStatus) (*models.SwapRequest, error) {
	var res struct {
		Request models.SwapRequest `json:"request"`
	}
	body := map[string]string{"status": string(status)}
	if err := a.do(ctx, http.MethodPut, "/api/swaps/"+id.String()+"/status", body, &res); err != nil {
		return nil, err
	}
	return &res.Request, nil
}

func (a *API) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(raw)
	}

	req, err := a.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return a.send(req, out)
}

func (a *API) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	return req, nil
}

func (a *API) send(req *http.Request, out any) error {
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = fmt.Sprintf("сервер ответил %d", resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func attachFile(w *multipart.Writer, field, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	part, err := w.CreateFormFile(field, filepath.Base(path))
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}
