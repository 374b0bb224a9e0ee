package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

func newPermitRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestPermitRepositoryCreateAssignsNumberOnce(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	created := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO permits")).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "created_at", "updated_at"}).
			AddRow(int64(42), created, created))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permits SET permit_no = $1 WHERE id = $2 AND permit_no = ''")).
		WithArgs("PRM-2025-000042", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	permit := &models.Permit{
		Type:                 models.PermitTypePestControl,
		CompanyID:            "company-1",
		AllowedActivities:    "public_health_pest_control,grain_pests",
		RestrictedActivities: "termite_control",
	}
	require.NoError(t, repo.Create(context.Background(), permit))
	require.Equal(t, "PRM-2025-000042", permit.PermitNo)
	require.Equal(t, models.StatusOrderReceived, permit.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permits SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyTransition(context.Background(), TransitionUpdate{
		ID:             "permit-1",
		ExpectedStatus: models.StatusPaymentPending,
		NewStatus:      models.StatusPaymentCompleted,
		Set: map[string]interface{}{
			"payment_receipt_file": "receipts/permit-1/receipt.pdf",
			"payment_date":         time.Now(),
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryApplyTransitionGuardMiss(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE permits SET status = ")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyTransition(context.Background(), TransitionUpdate{
		ID:             "permit-1",
		ExpectedStatus: models.StatusPaymentCompleted,
		NewStatus:      models.StatusIssued,
	})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM permits")).
		WithArgs("order_received", "pest_control").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	rows := sqlmock.NewRows([]string{"id", "seq", "permit_no", "permit_type", "status", "company_id", "allowed_activities", "restricted_activities", "created_at", "updated_at"}).
		AddRow("permit-1", int64(1), "PRM-2025-000001", "pest_control", "order_received", "company-1", "", "", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, seq, permit_no")).
		WithArgs("order_received", "pest_control").
		WillReturnRows(rows)

	permits, total, err := repo.List(context.Background(), models.PermitFilter{
		Status: []models.PermitStatus{models.StatusOrderReceived},
		Type:   models.PermitTypePestControl,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, permits, 1)
	require.Equal(t, "PRM-2025-000001", permits[0].PermitNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPermitRepositoryDeleteMissing(t *testing.T) {
	db, mock, cleanup := newPermitRepoMock(t)
	defer cleanup()

	repo := NewPermitRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM permits WHERE id = $1")).
		WithArgs("permit-404").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "permit-404")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
