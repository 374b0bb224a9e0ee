package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

const companyColumns = `id, name, number, address, phone, email, activities, engineer_id, created_at, updated_at`

// CompanyRepository persists companies.
type CompanyRepository struct {
	db *sqlx.DB
}

// NewCompanyRepository constructs the repository.
func NewCompanyRepository(db *sqlx.DB) *CompanyRepository {
	return &CompanyRepository{db: db}
}

// Create inserts a new company row.
func (r *CompanyRepository) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = uuid.NewString()
	}
	const query = `INSERT INTO companies
	(id, name, number, address, phone, email, activities, engineer_id)
	VALUES (:id, :name, :number, :address, :phone, :email, :activities, :engineer_id)`
	if _, err := r.db.NamedExecContext(ctx, query, company); err != nil {
		return fmt.Errorf("create company: %w", err)
	}
	return nil
}

// Update rewrites mutable columns of an existing company.
func (r *CompanyRepository) Update(ctx context.Context, company *models.Company) error {
	const query = `UPDATE companies SET
	name = :name, number = :number, address = :address, phone = :phone,
	email = :email, activities = :activities, engineer_id = :engineer_id, updated_at = NOW()
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, company)
	if err != nil {
		return fmt.Errorf("update company: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check company update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID fetches a company by identifier.
func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*models.Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE id = $1`, companyColumns)
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, id); err != nil {
		return nil, err
	}
	return &company, nil
}

// GetByNameNumber fetches a company by its (name, license number) identity.
func (r *CompanyRepository) GetByNameNumber(ctx context.Context, name, number string) (*models.Company, error) {
	query := fmt.Sprintf(`SELECT %s FROM companies WHERE name = $1 AND number = $2`, companyColumns)
	var company models.Company
	if err := r.db.GetContext(ctx, &company, query, name, number); err != nil {
		return nil, err
	}
	return &company, nil
}

// Upsert resolves the (name, number) identity: matching rows get their
// mutable fields refreshed in place, otherwise a new row is created. The
// returned bool reports whether a row was created.
func (r *CompanyRepository) Upsert(ctx context.Context, company *models.Company) (bool, error) {
	existing, err := r.GetByNameNumber(ctx, company.Name, company.Number)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, fmt.Errorf("lookup company: %w", err)
		}
		if err := r.Create(ctx, company); err != nil {
			return false, err
		}
		return true, nil
	}

	company.ID = existing.ID
	company.CreatedAt = existing.CreatedAt
	if company.Activities == "" {
		company.Activities = existing.Activities
	}
	if company.EngineerID == nil {
		company.EngineerID = existing.EngineerID
	}
	if err := r.Update(ctx, company); err != nil {
		return false, err
	}
	return false, nil
}

// List returns companies matching the filter plus the total match count.
func (r *CompanyRepository) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error) {
	args := make([]interface{}, 0, 2)
	where := ""
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = " WHERE name ILIKE $1 OR number ILIKE $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM companies"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count companies: %w", err)
	}

	orderBy := "name"
	switch filter.SortBy {
	case "name", "number", "created_at":
		orderBy = filter.SortBy
	}
	direction := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		direction = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM companies%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		companyColumns, where, orderBy, direction, pageSize, (page-1)*pageSize)

	var companies []models.Company
	if err := r.db.SelectContext(ctx, &companies, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list companies: %w", err)
	}
	return companies, total, nil
}

// LatestIssuedActivities returns the allowed-activities list of the
// company's most recently issued pest-control permit, or "" when none
// exists. Drives the activity labels on the company list view.
func (r *CompanyRepository) LatestIssuedActivities(ctx context.Context, companyID string) (string, error) {
	const query = `SELECT allowed_activities FROM permits
	WHERE company_id = $1 AND permit_type = $2 AND status = $3
	ORDER BY issue_date DESC NULLS LAST, created_at DESC LIMIT 1`
	var activities string
	err := r.db.GetContext(ctx, &activities, query, companyID, models.PermitTypePestControl, models.StatusIssued)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest issued activities: %w", err)
	}
	return activities, nil
}

// PermitValidities returns, per permit type, the company's latest issued
// permit validity window.
func (r *CompanyRepository) PermitValidities(ctx context.Context, companyID string) ([]models.CompanyPermitValidity, error) {
	const query = `SELECT DISTINCT ON (permit_type) permit_type, permit_no, issue_date, expiry_date
	FROM permits
	WHERE company_id = $1 AND status = $2
	ORDER BY permit_type, issue_date DESC NULLS LAST, created_at DESC`
	var validities []models.CompanyPermitValidity
	if err := r.db.SelectContext(ctx, &validities, query, companyID, models.StatusIssued); err != nil {
		return nil, fmt.Errorf("company permit validities: %w", err)
	}
	return validities, nil
}
