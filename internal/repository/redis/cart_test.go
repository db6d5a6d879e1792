package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wreckyard/checkout/internal/domain"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return &domain.Cart{
		ID:     "cart-001",
		UserID: "user-001",
		Items: []domain.LineItem{
			{
				ProductID:    "prod-1",
				Name:         "Bosch Alternator",
				Price:        decimal.NewFromFloat(249.95),
				Quantity:     2,
				InventoryRef: "INV-7741",
				Category:     "alternator",
				Dims:         &domain.Dimensions{Weight: 7, Length: 30, Width: 25, Height: 25},
			},
		},
		Currency:  "AUD",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	data, err := json.Marshal(cart)
	require.NoError(t, err)

	// Set data directly in miniredis.
	require.NoError(t, mr.Set("cart:"+cart.UserID, string(data)))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	assert.Equal(t, cart.UserID, got.UserID)
	assert.Equal(t, cart.Currency, got.Currency)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "prod-1", got.Items[0].ProductID)
	assert.True(t, got.Items[0].Price.Equal(decimal.NewFromFloat(249.95)))
	assert.Equal(t, 2, got.Items[0].Quantity)
	require.NotNil(t, got.Items[0].Dims)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "missing-user")
	require.Error(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_SanitizesLegacyRecords(t *testing.T) {
	repo, mr := setupTestRedis(t)

	// Stored record from an older write path: untrimmed category and a
	// partial dimension set (zero height).
	raw := `{
		"id": "cart-002",
		"user_id": "user-002",
		"currency": "AUD",
		"items": [
			{
				"product_id": "prod-9",
				"name": "Radiator",
				"price": "80",
				"quantity": 1,
				"category": "  Radiator  ",
				"dims": {"weight": 8, "length": 80, "width": 60, "height": 0}
			}
		]
	}`
	require.NoError(t, mr.Set("cart:user-002", raw))

	got, err := repo.Get(context.Background(), "user-002")
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Radiator", got.Items[0].Category)
	assert.Nil(t, got.Items[0].Dims)
}

func TestCartRepository_Get_CorruptJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("cart:user-003", "{not json"))

	_, err := repo.Get(context.Background(), "user-003")
	assert.Error(t, err)
}

func TestCartRepository_Save_RoundTrip(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.ID, got.ID)
	require.Len(t, got.Items, 1)

	// TTL is applied on save.
	mr.FastForward(25 * time.Hour)
	_, err = repo.Get(context.Background(), cart.UserID)
	assert.Error(t, err)
}

func TestCartRepository_Delete(t *testing.T) {
	repo, _ := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.Save(context.Background(), cart))
	require.NoError(t, repo.Delete(context.Background(), cart.UserID))

	_, err := repo.Get(context.Background(), cart.UserID)
	require.Error(t, err)

	// Deleting a missing cart is not an error.
	assert.NoError(t, repo.Delete(context.Background(), "missing-user"))
}
