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

func newCompanyRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func companyRows(id, name, number string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "number", "address", "phone", "email", "activities", "engineer_id", "created_at", "updated_at"}).
		AddRow(id, name, number, "", "", "", "", nil, time.Now(), time.Now())
}

func TestCompanyRepositoryUpsertCreates(t *testing.T) {
	db, mock, cleanup := newCompanyRepoMock(t)
	defer cleanup()

	repo := NewCompanyRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, number")).
		WithArgs("Acme", "TL-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO companies")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	company := &models.Company{Name: "Acme", Number: "TL-1"}
	created, err := repo.Upsert(context.Background(), company)
	require.NoError(t, err)
	require.True(t, created)
	require.NotEmpty(t, company.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryUpsertUpdatesInPlace(t *testing.T) {
	db, mock, cleanup := newCompanyRepoMock(t)
	defer cleanup()

	repo := NewCompanyRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, number")).
		WithArgs("Acme", "TL-1").
		WillReturnRows(companyRows("company-1", "Acme", "TL-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE companies SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	company := &models.Company{Name: "Acme", Number: "TL-1", Phone: "555-0101"}
	created, err := repo.Upsert(context.Background(), company)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "company-1", company.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryLatestIssuedActivities(t *testing.T) {
	db, mock, cleanup := newCompanyRepoMock(t)
	defer cleanup()

	repo := NewCompanyRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT allowed_activities FROM permits")).
		WithArgs("company-1", "pest_control", "issued").
		WillReturnRows(sqlmock.NewRows([]string{"allowed_activities"}).
			AddRow("public_health_pest_control,grain_pests"))

	activities, err := repo.LatestIssuedActivities(context.Background(), "company-1")
	require.NoError(t, err)
	require.Equal(t, "public_health_pest_control,grain_pests", activities)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCompanyRepositoryLatestIssuedActivitiesNone(t *testing.T) {
	db, mock, cleanup := newCompanyRepoMock(t)
	defer cleanup()

	repo := NewCompanyRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT allowed_activities FROM permits")).
		WithArgs("company-1", "pest_control", "issued").
		WillReturnError(sql.ErrNoRows)

	activities, err := repo.LatestIssuedActivities(context.Background(), "company-1")
	require.NoError(t, err)
	require.Empty(t, activities)
	require.NoError(t, mock.ExpectationsWereMet())
}
