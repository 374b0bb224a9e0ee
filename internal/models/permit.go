package models

import (
	"fmt"
	"time"
)

// PermitType enumerates the regulated activity categories a clearance can
// cover.
type PermitType string

const (
	PermitTypePestControl        PermitType = "pest_control"
	PermitTypePesticideTransport PermitType = "pesticide_transport"
	PermitTypeWasteDisposal      PermitType = "waste_disposal"
)

// ValidPermitType reports whether t is a known permit type.
func ValidPermitType(t PermitType) bool {
	switch t {
	case PermitTypePestControl, PermitTypePesticideTransport, PermitTypeWasteDisposal:
		return true
	}
	return false
}

// PermitStatus captures the workflow states of a clearance.
type PermitStatus string

const (
	StatusOrderReceived            PermitStatus = "order_received"
	StatusInspectionPaymentPending PermitStatus = "inspection_payment_pending"
	StatusReviewPending            PermitStatus = "review_pending"
	StatusApproved                 PermitStatus = "approved"
	StatusNeedsCompletion          PermitStatus = "needs_completion"
	StatusInspectionPending        PermitStatus = "inspection_pending"
	StatusInspectionCompleted      PermitStatus = "inspection_completed"
	StatusPaymentPending           PermitStatus = "payment_pending"
	StatusPaymentCompleted         PermitStatus = "payment_completed"
	StatusIssued                   PermitStatus = "issued"
	StatusDisposalApproved         PermitStatus = "disposal_approved"
	StatusDisposalRejected         PermitStatus = "disposal_rejected"
)

// StatusOrder is the canonical display ordering of workflow states.
var StatusOrder = []PermitStatus{
	StatusOrderReceived,
	StatusInspectionPaymentPending,
	StatusReviewPending,
	StatusApproved,
	StatusNeedsCompletion,
	StatusInspectionPending,
	StatusInspectionCompleted,
	StatusPaymentPending,
	StatusPaymentCompleted,
	StatusIssued,
	StatusDisposalApproved,
	StatusDisposalRejected,
}

// IsFinal reports whether a permit in this status accepts no further
// transitions other than delete.
func (s PermitStatus) IsFinal() bool {
	switch s {
	case StatusIssued, StatusDisposalApproved, StatusDisposalRejected:
		return true
	}
	return false
}

// PermitAction names the mutating operations of the lifecycle engine.
type PermitAction string

const (
	ActionCreate                    PermitAction = "create"
	ActionUpdateRequestEmail        PermitAction = "update_request_email"
	ActionSendInspectionPaymentLink PermitAction = "send_inspection_payment_link"
	ActionInspectionPayment         PermitAction = "inspection_payment"
	ActionReceiveForInspection      PermitAction = "receive_for_inspection"
	ActionSubmitInspectionReport    PermitAction = "submit_inspection_report"
	ActionApprove                   PermitAction = "approve"
	ActionNeedsCompletion           PermitAction = "needs_completion"
	ActionCompleteMissing           PermitAction = "complete_missing"
	ActionSendPaymentLink           PermitAction = "send_payment_link"
	ActionPayment                   PermitAction = "payment"
	ActionIssue                     PermitAction = "issue"
	ActionUpdatePermitDetails       PermitAction = "update_permit_details"
	ActionDelete                    PermitAction = "delete"
)

// InspectionDecision values recorded by submit_inspection_report.
const (
	InspectionApproved = "approved"
	InspectionRejected = "rejected"
)

// edge is one allowed transition: acting on a permit in From moves it to To.
// From == To models actions that are legal in a state without changing it.
type edge struct {
	From PermitStatus
	To   PermitStatus
}

// Pest-control permits carry the full inspection sub-flow. Transport and
// waste-disposal permits skip it: inspection payment hands the file straight
// to the reviewing inspector, and waste-disposal review ends in a disposal
// verdict instead of the issuance track.
var transitions = map[PermitType]map[PermitAction][]edge{
	PermitTypePestControl: {
		ActionUpdateRequestEmail:        anyNonFinalSelf(),
		ActionSendInspectionPaymentLink: {{StatusOrderReceived, StatusInspectionPaymentPending}, {StatusInspectionPaymentPending, StatusInspectionPaymentPending}},
		ActionInspectionPayment:         {{StatusInspectionPaymentPending, StatusInspectionPending}},
		ActionReceiveForInspection:      {{StatusInspectionPending, StatusInspectionPending}},
		ActionSubmitInspectionReport:    {{StatusInspectionPending, StatusInspectionCompleted}},
		ActionApprove:                   {{StatusReviewPending, StatusApproved}},
		ActionNeedsCompletion:           {{StatusReviewPending, StatusNeedsCompletion}},
		ActionCompleteMissing:           {{StatusNeedsCompletion, StatusReviewPending}},
		ActionSendPaymentLink:           {{StatusInspectionCompleted, StatusPaymentPending}},
		ActionPayment:                   {{StatusPaymentPending, StatusPaymentCompleted}},
		ActionIssue:                     {{StatusPaymentCompleted, StatusIssued}},
		ActionUpdatePermitDetails:       {{StatusPaymentCompleted, StatusPaymentCompleted}, {StatusIssued, StatusIssued}},
	},
	PermitTypePesticideTransport: {
		ActionUpdateRequestEmail:        anyNonFinalSelf(),
		ActionSendInspectionPaymentLink: {{StatusOrderReceived, StatusInspectionPaymentPending}, {StatusInspectionPaymentPending, StatusInspectionPaymentPending}},
		ActionInspectionPayment:         {{StatusInspectionPaymentPending, StatusReviewPending}},
		ActionApprove:                   {{StatusReviewPending, StatusApproved}},
		ActionNeedsCompletion:           {{StatusReviewPending, StatusNeedsCompletion}},
		ActionCompleteMissing:           {{StatusNeedsCompletion, StatusReviewPending}},
		ActionSendPaymentLink:           {{StatusApproved, StatusPaymentPending}},
		ActionPayment:                   {{StatusPaymentPending, StatusPaymentCompleted}},
		ActionIssue:                     {{StatusPaymentCompleted, StatusIssued}},
		ActionUpdatePermitDetails:       {{StatusPaymentCompleted, StatusPaymentCompleted}, {StatusIssued, StatusIssued}},
	},
	PermitTypeWasteDisposal: {
		ActionUpdateRequestEmail:        anyNonFinalSelf(),
		ActionSendInspectionPaymentLink: {{StatusOrderReceived, StatusInspectionPaymentPending}, {StatusInspectionPaymentPending, StatusInspectionPaymentPending}},
		ActionInspectionPayment:         {{StatusInspectionPaymentPending, StatusReviewPending}},
		ActionApprove:                   {{StatusReviewPending, StatusDisposalApproved}},
		ActionNeedsCompletion:           {{StatusReviewPending, StatusNeedsCompletion}},
		ActionCompleteMissing:           {{StatusNeedsCompletion, StatusReviewPending}},
	},
}

func anyNonFinalSelf() []edge {
	edges := make([]edge, 0, len(StatusOrder))
	for _, s := range StatusOrder {
		if !s.IsFinal() {
			edges = append(edges, edge{s, s})
		}
	}
	return edges
}

// Transition resolves the target status for applying action to a permit of
// the given type currently in from. ok is false when the (type, action,
// state) triple is not in the allowed table.
func Transition(t PermitType, action PermitAction, from PermitStatus) (PermitStatus, bool) {
	actions, ok := transitions[t]
	if !ok {
		return "", false
	}
	for _, e := range actions[action] {
		if e.From == from {
			return e.To, true
		}
	}
	return "", false
}

// HasInspectionFlow reports whether this permit type routes through the
// on-site inspection states.
func (t PermitType) HasInspectionFlow() bool {
	return t == PermitTypePestControl
}

// BundlesDocuments reports whether completion documents are appended to the
// request bundle rather than stored as discrete attachments.
func (t PermitType) BundlesDocuments() bool {
	return t == PermitTypePestControl
}

// FormatPermitNo renders the public permit number from the creation year and
// the internal sequence.
func FormatPermitNo(year int, seq int64) string {
	return fmt.Sprintf("PRM-%d-%06d", year, seq)
}

// Permit is the central clearance entity.
type Permit struct {
	ID       string       `db:"id" json:"id"`
	Seq      int64        `db:"seq" json:"-"`
	PermitNo string       `db:"permit_no" json:"permit_no"`
	Type     PermitType   `db:"permit_type" json:"permit_type"`
	Status   PermitStatus `db:"status" json:"status"`

	CompanyID  string  `db:"company_id" json:"company_id"`
	EngineerID *string `db:"engineer_id" json:"engineer_id,omitempty"`

	AllowedActivities    string `db:"allowed_activities" json:"allowed_activities"`
	RestrictedActivities string `db:"restricted_activities" json:"restricted_activities"`
	OtherActivities      string `db:"other_activities" json:"other_activities"`

	RequestEmail string  `db:"request_email" json:"request_email"`
	BundleFile   *string `db:"bundle_file" json:"bundle_file,omitempty"`

	PaymentLink        string     `db:"payment_link" json:"payment_link"`
	PaymentReference   string     `db:"payment_reference" json:"payment_reference"`
	PaymentEmail       string     `db:"payment_email" json:"payment_email"`
	PaymentReceiptFile *string    `db:"payment_receipt_file" json:"payment_receipt_file,omitempty"`
	PaymentDate        *time.Time `db:"payment_date" json:"payment_date,omitempty"`

	InspectionPaymentLink        string     `db:"inspection_payment_link" json:"inspection_payment_link"`
	InspectionPaymentReference   string     `db:"inspection_payment_reference" json:"inspection_payment_reference"`
	InspectionPaymentEmail       string     `db:"inspection_payment_email" json:"inspection_payment_email"`
	InspectionPaymentReceiptFile *string    `db:"inspection_payment_receipt_file" json:"inspection_payment_receipt_file,omitempty"`
	InspectionPaymentDate        *time.Time `db:"inspection_payment_date" json:"inspection_payment_date,omitempty"`

	InspectionResult *string `db:"inspection_result" json:"inspection_result,omitempty"`
	UnapprovedReason string  `db:"unapproved_reason" json:"unapproved_reason"`

	ApprovedBy *string `db:"approved_by" json:"approved_by,omitempty"`
	RejectedBy *string `db:"rejected_by" json:"rejected_by,omitempty"`
	Remarks    string  `db:"remarks" json:"remarks"`

	IssueDate  *time.Time `db:"issue_date" json:"issue_date,omitempty"`
	ExpiryDate *time.Time `db:"expiry_date" json:"expiry_date,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// PermitDocument is one discrete uploaded attachment for permit types that
// do not bundle.
type PermitDocument struct {
	ID        string    `db:"id" json:"id"`
	PermitID  string    `db:"permit_id" json:"permit_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FilePath  string    `db:"file_path" json:"file_path"`
	Kind      string    `db:"kind" json:"kind"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Document kinds stored in permit_documents.
const (
	DocumentKindRequest         = "request"
	DocumentKindCompletion      = "completion"
	DocumentKindInspectionPhoto = "inspection_photo"
)

// PermitFilter constrains permit listing queries.
type PermitFilter struct {
	Status    []PermitStatus
	Type      PermitType
	CompanyID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
