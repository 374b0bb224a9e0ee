package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

func newChangeLogRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestChangeLogRepositoryCreatePermitLog(t *testing.T) {
	db, mock, cleanup := newChangeLogRepoMock(t)
	defer cleanup()

	repo := NewChangeLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO permit_change_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	oldStatus := models.StatusPaymentPending
	newStatus := models.StatusPaymentCompleted
	entry := &models.PermitChangeLog{
		PermitID:  "permit-1",
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "payment confirmed",
	}
	require.NoError(t, repo.CreatePermitLog(context.Background(), entry))
	require.NotEmpty(t, entry.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeLogRepositoryListPermitLogsByKind(t *testing.T) {
	db, mock, cleanup := newChangeLogRepoMock(t)
	defer cleanup()

	repo := NewChangeLogRepository(db)
	rows := sqlmock.NewRows([]string{"id", "permit_id", "kind", "old_status", "new_status", "note", "meta", "user_id", "user_name", "attachment", "created_at"}).
		AddRow("log-1", "permit-1", "status_change", "payment_pending", "payment_completed", "", nil, nil, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, permit_id, kind")).
		WithArgs("permit-1", "status_change").
		WillReturnRows(rows)

	entries, err := repo.ListPermitLogs(context.Background(), "permit-1", models.PermitChangeStatus)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, models.PermitChangeStatus, entries[0].Kind)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestChangeLogRepositoryCreateCompanyAndEngineerLogs(t *testing.T) {
	db, mock, cleanup := newChangeLogRepoMock(t)
	defer cleanup()

	repo := NewChangeLogRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO company_change_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateCompanyLog(context.Background(), &models.CompanyChangeLog{
		CompanyID: "company-1",
		Kind:      models.CompanyChangeExtensionRequested,
		Note:      "extension requested",
	}))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO engineer_status_logs")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, repo.CreateEngineerLog(context.Background(), &models.EngineerStatusLog{
		EngineerID: "engineer-1",
		Kind:       models.EngineerStatusTermiteCert,
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}
