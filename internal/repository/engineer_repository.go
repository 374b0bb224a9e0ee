package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

const engineerColumns = `id, name, email, phone, public_health_cert_file, termite_cert_file, created_at, updated_at`

// EngineerRepository persists engineers and their certificate file columns.
type EngineerRepository struct {
	db *sqlx.DB
}

// NewEngineerRepository constructs the repository.
func NewEngineerRepository(db *sqlx.DB) *EngineerRepository {
	return &EngineerRepository{db: db}
}

// Create inserts a new engineer row.
func (r *EngineerRepository) Create(ctx context.Context, engineer *models.Engineer) error {
	if engineer.ID == "" {
		engineer.ID = uuid.NewString()
	}
	const query = `INSERT INTO engineers
	(id, name, email, phone, public_health_cert_file, termite_cert_file)
	VALUES (:id, :name, :email, :phone, :public_health_cert_file, :termite_cert_file)`
	if _, err := r.db.NamedExecContext(ctx, query, engineer); err != nil {
		return fmt.Errorf("create engineer: %w", err)
	}
	return nil
}

// Update rewrites mutable columns of an existing engineer.
func (r *EngineerRepository) Update(ctx context.Context, engineer *models.Engineer) error {
	const query = `UPDATE engineers SET
	name = :name, email = :email, phone = :phone,
	public_health_cert_file = :public_health_cert_file,
	termite_cert_file = :termite_cert_file, updated_at = NOW()
	WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, engineer)
	if err != nil {
		return fmt.Errorf("update engineer: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check engineer update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetByID fetches an engineer by identifier.
func (r *EngineerRepository) GetByID(ctx context.Context, id string) (*models.Engineer, error) {
	query := fmt.Sprintf(`SELECT %s FROM engineers WHERE id = $1`, engineerColumns)
	var engineer models.Engineer
	if err := r.db.GetContext(ctx, &engineer, query, id); err != nil {
		return nil, err
	}
	return &engineer, nil
}

// GetByEmail fetches an engineer by unique email.
func (r *EngineerRepository) GetByEmail(ctx context.Context, email string) (*models.Engineer, error) {
	query := fmt.Sprintf(`SELECT %s FROM engineers WHERE email = $1`, engineerColumns)
	var engineer models.Engineer
	if err := r.db.GetContext(ctx, &engineer, query, email); err != nil {
		return nil, err
	}
	return &engineer, nil
}

// List returns engineers matching the filter plus the total match count.
func (r *EngineerRepository) List(ctx context.Context, filter models.EngineerFilter) ([]models.Engineer, int, error) {
	args := make([]interface{}, 0, 2)
	where := ""
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where = " WHERE name ILIKE $1 OR email ILIKE $1"
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM engineers"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count engineers: %w", err)
	}

	orderBy := "name"
	switch filter.SortBy {
	case "name", "email", "created_at":
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

	query := fmt.Sprintf(`SELECT %s FROM engineers%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		engineerColumns, where, orderBy, direction, pageSize, (page-1)*pageSize)

	var engineers []models.Engineer
	if err := r.db.SelectContext(ctx, &engineers, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list engineers: %w", err)
	}
	return engineers, total, nil
}
