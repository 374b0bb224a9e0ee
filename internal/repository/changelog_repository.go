package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

// ChangeLogRepository persists the append-only audit trails. Rows are never
// updated or deleted; history views are filtered reads of these tables.
type ChangeLogRepository struct {
	db *sqlx.DB
}

// NewChangeLogRepository constructs the repository.
func NewChangeLogRepository(db *sqlx.DB) *ChangeLogRepository {
	return &ChangeLogRepository{db: db}
}

// CreatePermitLog appends one permit change entry.
func (r *ChangeLogRepository) CreatePermitLog(ctx context.Context, entry *models.PermitChangeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO permit_change_logs
	(id, permit_id, kind, old_status, new_status, note, meta, user_id, user_name, attachment)
	VALUES (:id, :permit_id, :kind, :old_status, :new_status, :note, :meta, :user_id, :user_name, :attachment)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create permit change log: %w", err)
	}
	return nil
}

// ListPermitLogs returns a permit's entries oldest first, optionally
// restricted to the given kinds.
func (r *ChangeLogRepository) ListPermitLogs(ctx context.Context, permitID string, kinds ...models.PermitChangeKind) ([]models.PermitChangeLog, error) {
	args := []interface{}{permitID}
	query := `SELECT id, permit_id, kind, old_status, new_status, note, meta, user_id, user_name, attachment, created_at
	FROM permit_change_logs WHERE permit_id = $1`
	if len(kinds) > 0 {
		placeholders := make([]string, len(kinds))
		for i, kind := range kinds {
			args = append(args, kind)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += fmt.Sprintf(" AND kind IN (%s)", strings.Join(placeholders, ","))
	}
	query += " ORDER BY created_at ASC"

	var entries []models.PermitChangeLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list permit change logs: %w", err)
	}
	return entries, nil
}

// CreateCompanyLog appends one company change entry.
func (r *ChangeLogRepository) CreateCompanyLog(ctx context.Context, entry *models.CompanyChangeLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO company_change_logs
	(id, company_id, kind, note, user_id, user_name, attachment)
	VALUES (:id, :company_id, :kind, :note, :user_id, :user_name, :attachment)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create company change log: %w", err)
	}
	return nil
}

// ListCompanyLogs returns a company's entries oldest first.
func (r *ChangeLogRepository) ListCompanyLogs(ctx context.Context, companyID string) ([]models.CompanyChangeLog, error) {
	const query = `SELECT id, company_id, kind, note, user_id, user_name, attachment, created_at
	FROM company_change_logs WHERE company_id = $1 ORDER BY created_at ASC`
	var entries []models.CompanyChangeLog
	if err := r.db.SelectContext(ctx, &entries, query, companyID); err != nil {
		return nil, fmt.Errorf("list company change logs: %w", err)
	}
	return entries, nil
}

// CreateEngineerLog appends one engineer status entry.
func (r *ChangeLogRepository) CreateEngineerLog(ctx context.Context, entry *models.EngineerStatusLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	const query = `INSERT INTO engineer_status_logs
	(id, engineer_id, kind, note, user_id, user_name)
	VALUES (:id, :engineer_id, :kind, :note, :user_id, :user_name)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create engineer status log: %w", err)
	}
	return nil
}

// ListEngineerLogs returns an engineer's entries oldest first.
func (r *ChangeLogRepository) ListEngineerLogs(ctx context.Context, engineerID string) ([]models.EngineerStatusLog, error) {
	const query = `SELECT id, engineer_id, kind, note, user_id, user_name, created_at
	FROM engineer_status_logs WHERE engineer_id = $1 ORDER BY created_at ASC`
	var entries []models.EngineerStatusLog
	if err := r.db.SelectContext(ctx, &entries, query, engineerID); err != nil {
		return nil, fmt.Errorf("list engineer status logs: %w", err)
	}
	return entries, nil
}
