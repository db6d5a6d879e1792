package repository

import (
	"context"

	"github.com/wreckyard/checkout/internal/domain"
)

// CartRepository defines the interface for cart persistence operations.
type CartRepository interface {
	// Get retrieves a cart by its user ID.
	Get(ctx context.Context, userID string) (*domain.Cart, error)

	// Save persists a cart to the store, overwriting any existing cart for the user.
	Save(ctx context.Context, cart *domain.Cart) error

	// Delete removes a cart from the store by the user ID.
	Delete(ctx context.Context, userID string) error
}

// FollowUpRepository records operational incidents that need manual attention
// after a degraded or failed finalization.
type FollowUpRepository interface {
	// Create persists a follow-up row.
	Create(ctx context.Context, fu *domain.FollowUp) error

	// ListOpen returns the most recent unresolved follow-ups.
	ListOpen(ctx context.Context, limit int) ([]domain.FollowUp, error)

	// Resolve marks a follow-up as handled.
	Resolve(ctx context.Context, id string) error
}
