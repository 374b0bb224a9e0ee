package dto

import (
	"github.com/hcsd/permit-clearance-api/internal/models"
)

// FileUpload carries one uploaded file through the service layer.
type FileUpload struct {
	Filename string
	Content  []byte
}

// CompanyIntake is the embedded company payload of a permit intake; it feeds
// the upsert-by-(name, number) resolution.
type CompanyIntake struct {
	Name    string `json:"name" validate:"required"`
	Number  string `json:"number" validate:"required"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// CreatePermitRequest is the full intake payload.
type CreatePermitRequest struct {
	PermitType      models.PermitType `json:"permit_type" validate:"required"`
	Company         CompanyIntake     `json:"company" validate:"required"`
	EngineerID      string            `json:"engineer_id" validate:"required"`
	OtherActivities string            `json:"other_activities"`
	RequestEmail    string            `json:"request_email" validate:"omitempty,email"`
	Documents       []FileUpload      `json:"-"`
}

// PermitActionRequest is the state-dependent payload of the single action
// dispatch endpoint. Which fields matter depends on the action; the engine
// validates per action.
type PermitActionRequest struct {
	Action models.PermitAction `json:"action"`

	Link      string      `json:"link"`
	Reference string      `json:"reference"`
	Email     string      `json:"email" validate:"omitempty,email"`
	Receipt   *FileUpload `json:"-"`

	Decision string       `json:"decision"`
	Notes    string       `json:"notes"`
	Photos   []FileUpload `json:"-"`

	Remarks   string       `json:"remarks"`
	Documents []FileUpload `json:"-"`

	RequestEmail string `json:"request_email" validate:"omitempty,email"`

	IssueDate  string `json:"issue_date"`
	ExpiryDate string `json:"expiry_date"`
}

// PermitQuery mirrors supported listing filters.
type PermitQuery struct {
	Status    []models.PermitStatus
	Type      models.PermitType
	CompanyID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// PermitListItem is the clearance dashboard row, cached per query.
type PermitListItem struct {
	ID          string              `json:"id"`
	PermitNo    string              `json:"permit_no"`
	PermitType  models.PermitType   `json:"permit_type"`
	Status      models.PermitStatus `json:"status"`
	CompanyID   string              `json:"company_id"`
	CompanyName string              `json:"company_name,omitempty"`
	CreatedAt   string              `json:"created_at"`
}

// PermitDetailResponse aggregates the permit view: entity, review, split
// activity lists, and the relevant change-log slices.
type PermitDetailResponse struct {
	Permit               *models.Permit           `json:"permit"`
	Review               *models.InspectorReview  `json:"review,omitempty"`
	AllowedActivities    []string                 `json:"allowed_activities"`
	RestrictedActivities []string                 `json:"restricted_activities"`
	Documents            []models.PermitDocument  `json:"documents"`
	StatusHistory        []models.PermitChangeLog `json:"status_history"`
	DetailHistory        []models.PermitChangeLog `json:"detail_history"`
}
