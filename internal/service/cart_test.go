package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/internal/event"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
	pkgkafka "github.com/wreckyard/checkout/pkg/kafka"
)

// --- Mock Repositories ---

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

// recordingListener captures cart change notifications.
type recordingListener struct {
	mu    sync.Mutex
	users []string
}

func (l *recordingListener) NotifyCartChanged(userID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = append(l.users, userID)
}

func (l *recordingListener) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.users)
}

// --- Test Helpers ---

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestProducer(logger *slog.Logger) *event.Producer {
	// Async producer with no real broker: publishes return immediately and
	// failures surface only in the writer's background goroutine.
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:9092"})
	kafkaCfg.Async = true
	return event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
}

func newTestCartService(repo *mockCartRepository) *CartService {
	logger := newTestLogger()
	return NewCartService(repo, newTestProducer(logger), logger, 7*24*time.Hour, "AUD")
}

func validAddInput() AddItemInput {
	return AddItemInput{
		ProductID:    "prod-1",
		Name:         "Bosch Alternator",
		Price:        decimal.NewFromFloat(249.95),
		Quantity:     1,
		InventoryRef: "INV-7741",
		Category:     "alternator",
	}
}

func cartWithItem(userID string) *domain.Cart {
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

// --- GetCart ---

func TestCartService_GetCart_Existing(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)

	cart, err := svc.GetCart(ctx, "user-1")

	require.NoError(t, err)
	assert.Len(t, cart.Items, 1)
	repo.AssertExpectations(t)
}

func TestCartService_GetCart_MissingReturnsEmpty(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))

	cart, err := svc.GetCart(ctx, "user-1")

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Equal(t, "AUD", cart.Currency)
}

func TestCartService_GetCart_EmptyUserID(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)

	_, err := svc.GetCart(context.Background(), "")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- AddItem ---

func TestCartService_AddItem_NewItem(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.AddItem(ctx, "user-1", validAddInput())

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "prod-1", cart.Items[0].ProductID)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestCartService_AddItem_MergesQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	input := validAddInput()
	input.Quantity = 2

	cart, err := svc.AddItem(ctx, "user-1", input)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 3, cart.Items[0].Quantity)
}

func TestCartService_AddItem_SanitizesPartialDims(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	input := validAddInput()
	input.Category = "  Alternator  "
	// Partial dimension set: height missing. The whole set must be dropped.
	input.Dims = &DimensionsInput{Weight: 7, Length: 30, Width: 25}

	cart, err := svc.AddItem(ctx, "user-1", input)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "Alternator", cart.Items[0].Category)
	assert.Nil(t, cart.Items[0].Dims)
}

func TestCartService_AddItem_KeepsCompleteDims(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	input := validAddInput()
	input.Dims = &DimensionsInput{Weight: 7, Length: 30, Width: 25, Height: 25}

	cart, err := svc.AddItem(ctx, "user-1", input)

	require.NoError(t, err)
	require.NotNil(t, cart.Items[0].Dims)
	assert.InDelta(t, 7, cart.Items[0].Dims.Weight, 0.001)
}

func TestCartService_AddItem_Validation(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*AddItemInput)
	}{
		{"missing product id", func(i *AddItemInput) { i.ProductID = "" }},
		{"missing name", func(i *AddItemInput) { i.Name = "" }},
		{"zero quantity", func(i *AddItemInput) { i.Quantity = 0 }},
		{"negative price", func(i *AddItemInput) { i.Price = decimal.NewFromInt(-1) }},
		{"excessive quantity", func(i *AddItemInput) { i.Quantity = MaxQuantityPerItem + 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validAddInput()
			tt.mutate(&input)

			_, err := svc.AddItem(ctx, "user-1", input)

			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
}

func TestCartService_AddItem_NotifiesListener(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	listener := &recordingListener{}
	svc.SetChangeListener(listener)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(nil, apperrors.NotFound("cart", "user-1"))
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	_, err := svc.AddItem(ctx, "user-1", validAddInput())

	require.NoError(t, err)
	assert.Equal(t, 1, listener.count())
}

// --- UpdateItemQuantity ---

func TestCartService_UpdateItemQuantity(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.UpdateItemQuantity(ctx, "user-1", "prod-1", 5)

	require.NoError(t, err)
	assert.Equal(t, 5, cart.Items[0].Quantity)
}

func TestCartService_UpdateItemQuantity_FlooredToOne(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	// Zero and negative quantities floor to one; update is never a removal.
	cart, err := svc.UpdateItemQuantity(ctx, "user-1", "prod-1", 0)

	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 1, cart.Items[0].Quantity)
}

func TestCartService_UpdateItemQuantity_MissingItem(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)

	_, err := svc.UpdateItemQuantity(ctx, "user-1", "prod-missing", 2)

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- RemoveItem ---

func TestCartService_RemoveItem(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)
	repo.On("Save", ctx, mock.AnythingOfType("*domain.Cart")).Return(nil)

	cart, err := svc.RemoveItem(ctx, "user-1", "prod-1")

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestCartService_RemoveItem_Missing(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	ctx := context.Background()

	repo.On("Get", ctx, "user-1").Return(cartWithItem("user-1"), nil)

	_, err := svc.RemoveItem(ctx, "user-1", "prod-missing")

	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

// --- ClearCart ---

func TestCartService_ClearCart(t *testing.T) {
	repo := new(mockCartRepository)
	svc := newTestCartService(repo)
	listener := &recordingListener{}
	svc.SetChangeListener(listener)
	ctx := context.Background()

	repo.On("Delete", ctx, "user-1").Return(nil)

	err := svc.ClearCart(ctx, "user-1")

	require.NoError(t, err)
	assert.Equal(t, 1, listener.count())
	repo.AssertExpectations(t)
}
