package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/wreckyard/checkout/internal/domain"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
)

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by both the
// production pool and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// FollowUpRepository implements repository.FollowUpRepository using PostgreSQL.
type FollowUpRepository struct {
	db DB
}

// NewFollowUpRepository creates a new PostgreSQL-backed follow-up repository.
func NewFollowUpRepository(db DB) *FollowUpRepository {
	return &FollowUpRepository{db: db}
}

// Create inserts a new follow-up row.
func (r *FollowUpRepository) Create(ctx context.Context, fu *domain.FollowUp) error {
	query := `
		INSERT INTO followups (id, payment_id, kind, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.db.Exec(ctx, query, fu.ID, fu.PaymentID, fu.Kind, fu.Detail, fu.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert followup: %w", err)
	}

	return nil
}

// ListOpen returns the most recent unresolved follow-ups, newest first.
func (r *FollowUpRepository) ListOpen(ctx context.Context, limit int) ([]domain.FollowUp, error) {
	query := `
		SELECT id, payment_id, kind, detail, created_at
		FROM followups
		WHERE resolved_at IS NULL
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query followups: %w", err)
	}
	defer rows.Close()

	var out []domain.FollowUp
	for rows.Next() {
		var fu domain.FollowUp
		if err := rows.Scan(&fu.ID, &fu.PaymentID, &fu.Kind, &fu.Detail, &fu.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		out = append(out, fu)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate followups: %w", err)
	}

	return out, nil
}

// Resolve marks a follow-up as handled.
func (r *FollowUpRepository) Resolve(ctx context.Context, id string) error {
	query := `
		UPDATE followups
		SET resolved_at = now()
		WHERE id = $1 AND resolved_at IS NULL`

	tag, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("resolve followup: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFound("followup", id)
	}

	return nil
}

// GetByID retrieves a follow-up by id.
func (r *FollowUpRepository) GetByID(ctx context.Context, id string) (*domain.FollowUp, error) {
	query := `
		SELECT id, payment_id, kind, detail, created_at
		FROM followups
		WHERE id = $1`

	var fu domain.FollowUp
	err := r.db.QueryRow(ctx, query, id).Scan(&fu.ID, &fu.PaymentID, &fu.Kind, &fu.Detail, &fu.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("followup", id)
		}
		return nil, fmt.Errorf("query followup: %w", err)
	}

	return &fu, nil
}
