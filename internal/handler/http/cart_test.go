package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/internal/event"
	"github.com/wreckyard/checkout/internal/service"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
	pkgkafka "github.com/wreckyard/checkout/pkg/kafka"
)

// ============================================================================
// Mock repositories
// ============================================================================

type mockCartRepository struct {
	mock.Mock
}

func (m *mockCartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) Save(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartRepository) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

type mockFollowUpRepository struct {
	mock.Mock
}

func (m *mockFollowUpRepository) Create(ctx context.Context, fu *domain.FollowUp) error {
	args := m.Called(ctx, fu)
	return args.Error(0)
}

func (m *mockFollowUpRepository) ListOpen(ctx context.Context, limit int) ([]domain.FollowUp, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FollowUp), args.Error(1)
}

func (m *mockFollowUpRepository) Resolve(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// ============================================================================
// Test helpers
// ============================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testEventProducer() *event.Producer {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	kafkaCfg.Async = true
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func testCartService(repo *mockCartRepository) *service.CartService {
	return service.NewCartService(repo, testEventProducer(), testLogger(), 24*time.Hour, "AUD")
}

func testCartHandler(repo *mockCartRepository) *CartHandler {
	return NewCartHandler(testCartService(repo), testLogger())
}

// setupCartRouter creates a chi router matching the production route layout
// for the cart endpoints, including the UserIDFromHeader and ContentTypeJSON
// middleware so that auth behavior is tested end-to-end.
func setupCartRouter(handler *CartHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Get("/", handler.GetCart)
		r.Delete("/", handler.ClearCart)
		r.Post("/items", handler.AddItem)
		r.Put("/items/{productId}", handler.UpdateItemQuantity)
		r.Delete("/items/{productId}", handler.RemoveItem)
	})
	return r
}

func doRequest(t *testing.T, router http.Handler, method, path, userID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func handlerCart(userID string) *domain.Cart {
	now := time.Now().UTC()
	return &domain.Cart{
		ID:     "cart-001",
		UserID: userID,
		Items: []domain.LineItem{
			{
				ProductID: "prod-1",
				Name:      "Bosch Alternator",
				Price:     decimal.NewFromFloat(249.95),
				Quantity:  1,
				Category:  "alternator",
			},
		},
		Currency:  "AUD",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ============================================================================
// Cart endpoints
// ============================================================================

func TestCartHandler_GetCart(t *testing.T) {
	repo := new(mockCartRepository)
	repo.On("Get", mock.Anything, "user-1").Return(handlerCart("user-1"), nil)
	router := setupCartRouter(testCartHandler(repo))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart", "user-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data domain.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "cart-001", resp.Data.ID)
	require.Len(t, resp.Data.Items, 1)
}

func TestCartHandler_GetCart_Unauthorized(t *testing.T) {
	router := setupCartRouter(testCartHandler(new(mockCartRepository)))

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cart", "", nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCartHandler_AddItem(t *testing.T) {
	repo := new(mockCartRepository)
	repo.On("Get", mock.Anything, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)
	router := setupCartRouter(testCartHandler(repo))

	body := map[string]any{
		"product_id": "prod-2",
		"name":       "Radiator",
		"price":      "85.50",
		"quantity":   1,
		"category":   "radiator",
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-1", body)

	assert.Equal(t, http.StatusOK, rec.Code)
	repo.AssertExpectations(t)
}

func TestCartHandler_AddItem_ValidationFailure(t *testing.T) {
	router := setupCartRouter(testCartHandler(new(mockCartRepository)))

	body := map[string]any{
		"name":     "Radiator",
		"price":    "85.50",
		"quantity": 1,
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/cart/items", "user-1", body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
}

func TestCartHandler_AddItem_MalformedBody(t *testing.T) {
	router := setupCartRouter(testCartHandler(new(mockCartRepository)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCartHandler_UpdateItemQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	repo.On("Get", mock.Anything, "user-1").Return(handlerCart("user-1"), nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)
	router := setupCartRouter(testCartHandler(repo))

	rec := doRequest(t, router, http.MethodPut, "/api/v1/cart/items/prod-1", "user-1", map[string]any{"quantity": 4})

	assert.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Data domain.Cart `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.Items[0].Quantity)
}

func TestCartHandler_RemoveItem_NotFound(t *testing.T) {
	repo := new(mockCartRepository)
	repo.On("Get", mock.Anything, "user-1").Return(handlerCart("user-1"), nil)
	router := setupCartRouter(testCartHandler(repo))

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/cart/items/prod-missing", "user-1", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestCartHandler_ClearCart(t *testing.T) {
	repo := new(mockCartRepository)
	repo.On("Delete", mock.Anything, "user-1").Return(nil)
	router := setupCartRouter(testCartHandler(repo))

	rec := doRequest(t, router, http.MethodDelete, "/api/v1/cart", "user-1", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cleared")
}

func TestCartHandler_UnsupportedMediaType(t *testing.T) {
	router := setupCartRouter(testCartHandler(new(mockCartRepository)))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString("x=1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

// stubDoer satisfies service.HTTPDoer for handler wiring tests.
type stubDoer struct {
	mu    sync.Mutex
	calls int
}

func (d *stubDoer) Do(_ context.Context, _ *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	return nil, context.DeadlineExceeded
}
