package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

const permitColumns = `id, seq, permit_no, permit_type, status, company_id, engineer_id,
       allowed_activities, restricted_activities, other_activities, request_email, bundle_file,
       payment_link, payment_reference, payment_email, payment_receipt_file, payment_date,
       inspection_payment_link, inspection_payment_reference, inspection_payment_email,
       inspection_payment_receipt_file, inspection_payment_date,
       inspection_result, unapproved_reason, approved_by, rejected_by, remarks,
       issue_date, expiry_date, created_at, updated_at`

// PermitRepository persists permit clearances and their documents.
type PermitRepository struct {
	db *sqlx.DB
}

// NewPermitRepository constructs the repository.
func NewPermitRepository(db *sqlx.DB) *PermitRepository {
	return &PermitRepository{db: db}
}

// Create inserts a new permit and assigns the permit number from the
// database sequence. The number is derived once here and never rewritten.
func (r *PermitRepository) Create(ctx context.Context, permit *models.Permit) error {
	if permit.ID == "" {
		permit.ID = uuid.NewString()
	}
	if permit.Status == "" {
		permit.Status = models.StatusOrderReceived
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin permit create: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insert = `INSERT INTO permits
	(id, permit_type, status, company_id, engineer_id,
	 allowed_activities, restricted_activities, other_activities, request_email, bundle_file,
	 payment_link, payment_reference, payment_email,
	 inspection_payment_link, inspection_payment_reference, inspection_payment_email,
	 unapproved_reason, remarks)
	VALUES (:id, :permit_type, :status, :company_id, :engineer_id,
	 :allowed_activities, :restricted_activities, :other_activities, :request_email, :bundle_file,
	 :payment_link, :payment_reference, :payment_email,
	 :inspection_payment_link, :inspection_payment_reference, :inspection_payment_email,
	 :unapproved_reason, :remarks)
	RETURNING seq, created_at, updated_at`

	rows, err := tx.NamedQuery(insert, permit)
	if err != nil {
		return fmt.Errorf("create permit: %w", err)
	}
	if rows.Next() {
		if err := rows.Scan(&permit.Seq, &permit.CreatedAt, &permit.UpdatedAt); err != nil {
			rows.Close() //nolint:errcheck
			return fmt.Errorf("scan permit sequence: %w", err)
		}
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close permit insert: %w", err)
	}

	permit.PermitNo = models.FormatPermitNo(permit.CreatedAt.Year(), permit.Seq)
	if _, err := tx.ExecContext(ctx,
		`UPDATE permits SET permit_no = $1 WHERE id = $2 AND permit_no = ''`,
		permit.PermitNo, permit.ID,
	); err != nil {
		return fmt.Errorf("assign permit number: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit permit create: %w", err)
	}
	return nil
}

// GetByID fetches a permit by identifier.
func (r *PermitRepository) GetByID(ctx context.Context, id string) (*models.Permit, error) {
	query := fmt.Sprintf(`SELECT %s FROM permits WHERE id = $1`, permitColumns)
	var permit models.Permit
	if err := r.db.GetContext(ctx, &permit, query, id); err != nil {
		return nil, err
	}
	return &permit, nil
}

// List returns permits matching the filter plus the total match count.
func (r *PermitRepository) List(ctx context.Context, filter models.PermitFilter) ([]models.Permit, int, error) {
	args := make([]interface{}, 0, 6)
	conditions := make([]string, 0, 4)

	if len(filter.Status) > 0 {
		placeholders := make([]string, len(filter.Status))
		for i, status := range filter.Status {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("permit_type = $%d", len(args)))
	}
	if filter.CompanyID != "" {
		args = append(args, filter.CompanyID)
		conditions = append(conditions, fmt.Sprintf("company_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		conditions = append(conditions, fmt.Sprintf("permit_no ILIKE $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM permits"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count permits: %w", err)
	}

	orderBy := "created_at"
	switch filter.SortBy {
	case "permit_no", "status", "permit_type", "created_at", "expiry_date":
		orderBy = filter.SortBy
	}
	direction := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		direction = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 200 {
		pageSize = 50
	}

	query := fmt.Sprintf(`SELECT %s FROM permits%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		permitColumns, where, orderBy, direction, pageSize, (page-1)*pageSize)

	var permits []models.Permit
	if err := r.db.SelectContext(ctx, &permits, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list permits: %w", err)
	}
	return permits, total, nil
}

// TransitionUpdate groups the column changes of one guarded transition.
// Set maps column names to new values; ExpectedStatus implements the
// optimistic guard: the update only lands when the row is still in that
// status.
type TransitionUpdate struct {
	ID             string
	ExpectedStatus models.PermitStatus
	NewStatus      models.PermitStatus
	Set            map[string]interface{}
}

// ApplyTransition performs the status-guarded update. Returns sql.ErrNoRows
// when the permit moved out of the expected status concurrently (or does not
// exist), so the caller can abort without partial effects.
func (r *PermitRepository) ApplyTransition(ctx context.Context, update TransitionUpdate) error {
	setParts := []string{"status = :new_status", "updated_at = NOW()"}
	params := map[string]interface{}{
		"id":              update.ID,
		"expected_status": update.ExpectedStatus,
		"new_status":      update.NewStatus,
	}

	columns := make([]string, 0, len(update.Set))
	for column := range update.Set {
		columns = append(columns, column)
	}
	sort.Strings(columns)
	for _, column := range columns {
		setParts = append(setParts, fmt.Sprintf("%s = :%s", column, column))
		params[column] = update.Set[column]
	}

	query := fmt.Sprintf("UPDATE permits SET %s WHERE id = :id AND status = :expected_status",
		strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("apply permit transition: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permit transition rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a permit. Dependent review, document, and change-log rows
// go with it via ON DELETE CASCADE.
func (r *PermitRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM permits WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete permit: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check permit delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddDocument stores one discrete attachment row.
func (r *PermitRepository) AddDocument(ctx context.Context, doc *models.PermitDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	const query = `INSERT INTO permit_documents (id, permit_id, file_name, file_path, kind)
	VALUES (:id, :permit_id, :file_name, :file_path, :kind)`
	if _, err := r.db.NamedExecContext(ctx, query, doc); err != nil {
		return fmt.Errorf("add permit document: %w", err)
	}
	return nil
}

// ListDocuments returns the discrete attachments of a permit, oldest first.
func (r *PermitRepository) ListDocuments(ctx context.Context, permitID string) ([]models.PermitDocument, error) {
	const query = `SELECT id, permit_id, file_name, file_path, kind, created_at
	FROM permit_documents WHERE permit_id = $1 ORDER BY created_at ASC`
	var docs []models.PermitDocument
	if err := r.db.SelectContext(ctx, &docs, query, permitID); err != nil {
		return nil, fmt.Errorf("list permit documents: %w", err)
	}
	return docs, nil
}
