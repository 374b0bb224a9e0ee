package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hcsd/permit-clearance-api/internal/models"
)

// ReviewRepository persists inspector reviews. The permit_id unique
// constraint enforces the at-most-one-review-per-permit rule.
type ReviewRepository struct {
	db *sqlx.DB
}

// NewReviewRepository constructs the repository.
func NewReviewRepository(db *sqlx.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

// Upsert writes the review for a permit, overwriting a prior decision while
// preserving the one-time receive marker.
func (r *ReviewRepository) Upsert(ctx context.Context, review *models.InspectorReview) error {
	if review.ID == "" {
		review.ID = uuid.NewString()
	}
	const query = `INSERT INTO inspector_reviews
	(id, permit_id, inspector_id, approved, comments, received_at, received_by)
	VALUES (:id, :permit_id, :inspector_id, :approved, :comments, :received_at, :received_by)
	ON CONFLICT (permit_id) DO UPDATE SET
	inspector_id = EXCLUDED.inspector_id,
	approved = EXCLUDED.approved,
	comments = EXCLUDED.comments,
	received_at = COALESCE(inspector_reviews.received_at, EXCLUDED.received_at),
	received_by = COALESCE(inspector_reviews.received_by, EXCLUDED.received_by),
	updated_at = NOW()`
	if _, err := r.db.NamedExecContext(ctx, query, review); err != nil {
		return fmt.Errorf("upsert inspector review: %w", err)
	}
	return nil
}

// GetByPermit fetches the review of a permit, nil when none exists yet.
func (r *ReviewRepository) GetByPermit(ctx context.Context, permitID string) (*models.InspectorReview, error) {
	const query = `SELECT id, permit_id, inspector_id, approved, comments, received_at, received_by, created_at, updated_at
	FROM inspector_reviews WHERE permit_id = $1`
	var review models.InspectorReview
	if err := r.db.GetContext(ctx, &review, query, permitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get inspector review: %w", err)
	}
	return &review, nil
}

// MarkReceived records the one-time hand-over to the inspector. Returns
// sql.ErrNoRows when the permit was already received, so the caller can
// reject the duplicate.
func (r *ReviewRepository) MarkReceived(ctx context.Context, permitID, inspectorID, receivedBy string, at time.Time) error {
	const query = `INSERT INTO inspector_reviews
	(id, permit_id, inspector_id, approved, comments, received_at, received_by)
	VALUES ($1, $2, $3, FALSE, '', $4, $5)
	ON CONFLICT (permit_id) DO UPDATE SET
	inspector_id = EXCLUDED.inspector_id,
	received_at = EXCLUDED.received_at,
	received_by = EXCLUDED.received_by,
	updated_at = NOW()
	WHERE inspector_reviews.received_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, uuid.NewString(), permitID, inspectorID, at, receivedBy)
	if err != nil {
		return fmt.Errorf("mark review received: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check review received rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
