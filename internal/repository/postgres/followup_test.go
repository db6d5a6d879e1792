package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wreckyard/checkout/internal/domain"
	"github.com/wreckyard/checkout/pkg/database"
	apperrors "github.com/wreckyard/checkout/pkg/errors"
)

func newTestRepo(t *testing.T) (*FollowUpRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewFollowUpRepository(mock)
	return repo, mock
}

func sampleFollowUp() *domain.FollowUp {
	return &domain.FollowUp{
		ID:        "fu-001",
		PaymentID: "pay-abc123",
		Kind:      domain.FollowUpOrderRecordFailed,
		Detail:    "order service returned 503 after payment capture",
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestFollowUpRepository_Create_Success(t *testing.T) {
	repo, mock := newTestRepo(t)
	fu := sampleFollowUp()

	mock.ExpectExec("INSERT INTO followups").
		WithArgs(fu.ID, fu.PaymentID, fu.Kind, fu.Detail, fu.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Create(context.Background(), fu)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowUpRepository_Create_DBError(t *testing.T) {
	repo, mock := newTestRepo(t)
	fu := sampleFollowUp()

	mock.ExpectExec("INSERT INTO followups").
		WithArgs(fu.ID, fu.PaymentID, fu.Kind, fu.Detail, fu.CreatedAt).
		WillReturnError(errors.New("connection refused"))

	err := repo.Create(context.Background(), fu)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert followup")
}

func TestFollowUpRepository_ListOpen(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "payment_id", "kind", "detail", "created_at"}).
		AddRow("fu-002", "pay-2", domain.FollowUpFulfillmentDegraded, "submission timeout", now).
		AddRow("fu-001", "pay-1", domain.FollowUpOrderRecordFailed, "order service down", now.Add(-time.Hour))

	mock.ExpectQuery("SELECT id, payment_id, kind, detail, created_at").
		WithArgs(10).
		WillReturnRows(rows)

	got, err := repo.ListOpen(context.Background(), 10)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fu-002", got[0].ID)
	assert.Equal(t, domain.FollowUpFulfillmentDegraded, got[0].Kind)
	assert.Equal(t, "fu-001", got[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowUpRepository_ListOpen_Empty(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT id, payment_id, kind, detail, created_at").
		WithArgs(10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_id", "kind", "detail", "created_at"}))

	got, err := repo.ListOpen(context.Background(), 10)

	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFollowUpRepository_Resolve_Success(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("UPDATE followups").
		WithArgs("fu-001").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := repo.Resolve(context.Background(), "fu-001")

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFollowUpRepository_Resolve_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectExec("UPDATE followups").
		WithArgs("fu-missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Resolve(context.Background(), "fu-missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFollowUpRepository_GetByID(t *testing.T) {
	repo, mock := newTestRepo(t)
	now := time.Now().UTC()

	rows := pgxmock.NewRows([]string{"id", "payment_id", "kind", "detail", "created_at"}).
		AddRow("fu-001", "pay-1", domain.FollowUpOrderRecordFailed, "order service down", now)

	mock.ExpectQuery("SELECT id, payment_id, kind, detail, created_at").
		WithArgs("fu-001").
		WillReturnRows(rows)

	got, err := repo.GetByID(context.Background(), "fu-001")

	require.NoError(t, err)
	assert.Equal(t, "pay-1", got.PaymentID)
}

func TestFollowUpRepository_GetByID_NotFound(t *testing.T) {
	repo, mock := newTestRepo(t)

	mock.ExpectQuery("SELECT id, payment_id, kind, detail, created_at").
		WithArgs("fu-missing").
		WillReturnRows(pgxmock.NewRows([]string{"id", "payment_id", "kind", "detail", "created_at"}))

	_, err := repo.GetByID(context.Background(), "fu-missing")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
