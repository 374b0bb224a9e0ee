package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hcsd/permit-clearance-api/internal/authz"
	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	"github.com/hcsd/permit-clearance-api/internal/repository"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
	"github.com/hcsd/permit-clearance-api/pkg/export"
)

const dateLayout = "2006-01-02"

type permitStore interface {
	Create(ctx context.Context, permit *models.Permit) error
	GetByID(ctx context.Context, id string) (*models.Permit, error)
	List(ctx context.Context, filter models.PermitFilter) ([]models.Permit, int, error)
	ApplyTransition(ctx context.Context, update repository.TransitionUpdate) error
	Delete(ctx context.Context, id string) error
	AddDocument(ctx context.Context, doc *models.PermitDocument) error
	ListDocuments(ctx context.Context, permitID string) ([]models.PermitDocument, error)
}

type companyStore interface {
	Upsert(ctx context.Context, company *models.Company) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Company, error)
}

type engineerStore interface {
	GetByID(ctx context.Context, id string) (*models.Engineer, error)
}

type reviewStore interface {
	Upsert(ctx context.Context, review *models.InspectorReview) error
	GetByPermit(ctx context.Context, permitID string) (*models.InspectorReview, error)
	MarkReceived(ctx context.Context, permitID, inspectorID, receivedBy string, at time.Time) error
}

type permitAuditor interface {
	CreatePermitLog(ctx context.Context, entry *models.PermitChangeLog) error
	CreateCompanyLog(ctx context.Context, entry *models.CompanyChangeLog) error
	ListPermitLogs(ctx context.Context, permitID string, kinds ...models.PermitChangeKind) ([]models.PermitChangeLog, error)
}

type documentFiles interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	DeleteDir(dir string) error
}

type listCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type transitionObserver interface {
	ObservePermitTransition(action, permitType string)
	RecordCacheOperation(hit bool, duration time.Duration)
}

type certificateRenderer interface {
	Render(cert export.PermitCertificate) ([]byte, error)
}

type datasetRenderer interface {
	Render(ds export.Dataset) ([]byte, error)
}

// PermitServiceDeps groups the collaborators of the lifecycle engine.
type PermitServiceDeps struct {
	Permits   permitStore
	Companies companyStore
	Engineers engineerStore
	Reviews   reviewStore
	Audit     permitAuditor
	Files     documentFiles
	Cache     listCache
	Metrics   transitionObserver
	Gate      *authz.Gate
	Logger    *zap.Logger
	ListTTL   time.Duration
}

// PermitService is the lifecycle engine: every mutating operation checks the
// actor's capability, the permit's current state against the transition
// table, and the payload, then applies the change atomically and appends the
// fixed change-log sequence. Any failed check aborts with zero mutation and
// zero log entries.
type PermitService struct {
	permits    permitStore
	companies  companyStore
	engineers  engineerStore
	reviews    reviewStore
	audit      permitAuditor
	files      documentFiles
	cache      listCache
	metrics    transitionObserver
	gate       *authz.Gate
	validate   *validator.Validate
	logger     *zap.Logger
	listTTL    time.Duration
	strategies map[models.PermitType]documentStrategy
	pdf        certificateRenderer
	csv        datasetRenderer
}

// NewPermitService constructs the engine.
func NewPermitService(deps PermitServiceDeps) *PermitService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Gate == nil {
		deps.Gate = authz.New()
	}
	if deps.ListTTL <= 0 {
		deps.ListTTL = 5 * time.Minute
	}
	s := &PermitService{
		permits:   deps.Permits,
		companies: deps.Companies,
		engineers: deps.Engineers,
		reviews:   deps.Reviews,
		audit:     deps.Audit,
		files:     deps.Files,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		gate:      deps.Gate,
		validate:  validator.New(),
		logger:    deps.Logger,
		listTTL:   deps.ListTTL,
		pdf:       export.NewPermitPDFRenderer(),
		csv:       export.NewCSVExporter(),
	}
	s.strategies = map[models.PermitType]documentStrategy{
		models.PermitTypePestControl:        &bundleStrategy{svc: s},
		models.PermitTypePesticideTransport: &discreteStrategy{svc: s},
		models.PermitTypeWasteDisposal:      &discreteStrategy{svc: s},
	}
	return s
}

func (s *PermitService) role(actor *models.JWTClaims) (models.UserRole, error) {
	if actor == nil {
		return "", appErrors.ErrUnauthorized
	}
	role, ok := authz.ResolveRole(string(actor.Role))
	if !ok {
		return "", appErrors.ErrForbidden
	}
	return role, nil
}

// Create runs the full intake: company upsert, engineer certification
// gating, activity stamping, document storage, and the created audit entry.
func (s *PermitService) Create(ctx context.Context, req dto.CreatePermitRequest, actor *models.JWTClaims) (*models.Permit, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	if !s.gate.CanDataEntry(role) {
		return nil, appErrors.ErrForbidden
	}

	details := s.collectValidation(req)
	if !models.ValidPermitType(req.PermitType) {
		details = append(details, "permit_type: unknown permit type")
	}
	for _, doc := range req.Documents {
		if !allowedDocExt(doc.Filename) {
			details = append(details, fmt.Sprintf("documents: extension not allowed for %s", doc.Filename))
		}
	}
	if err := appErrors.Validation(details); err != nil {
		return nil, err
	}

	engineer, err := s.engineers.GetByID(ctx, req.EngineerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrEngineerNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load engineer")
	}
	if !engineer.HasPublicHealthCert() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "engineer lacks public health certificate")
	}

	allowed := models.AllowedActivitiesFor(engineer.HasPublicHealthCert(), engineer.HasTermiteCert())
	restricted := models.RestrictedActivities(allowed)

	company := &models.Company{
		Name:       strings.TrimSpace(req.Company.Name),
		Number:     strings.TrimSpace(req.Company.Number),
		Address:    req.Company.Address,
		Phone:      req.Company.Phone,
		Email:      req.Company.Email,
		Activities: models.JoinActivities(allowed),
		EngineerID: &engineer.ID,
	}
	companyCreated, err := s.companies.Upsert(ctx, company)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve company")
	}
	if companyCreated {
		s.emitCompanyLog(ctx, &models.CompanyChangeLog{
			CompanyID: company.ID,
			Kind:      models.CompanyChangeCreated,
			Note:      "created during permit intake",
			UserID:    &actor.UserID,
			UserName:  &actor.FullName,
		})
	}

	permit := &models.Permit{
		ID:                     uuid.NewString(),
		Type:                   req.PermitType,
		Status:                 models.StatusOrderReceived,
		CompanyID:              company.ID,
		EngineerID:             &engineer.ID,
		AllowedActivities:      models.JoinActivities(allowed),
		RestrictedActivities:   models.JoinActivities(restricted),
		OtherActivities:        req.OtherActivities,
		RequestEmail:           req.RequestEmail,
		PaymentEmail:           req.RequestEmail,
		InspectionPaymentEmail: req.RequestEmail,
	}

	var intakeDocs []models.PermitDocument
	if len(req.Documents) > 0 {
		intakeDocs, err = s.strategies[permit.Type].AttachIntake(ctx, permit, req.Documents)
		if err != nil {
			return nil, err
		}
	}

	if err := s.permits.Create(ctx, permit); err != nil {
		if derr := s.files.DeleteDir("documents/" + permit.ID); derr != nil {
			s.logger.Warn("cleanup intake documents", zap.Error(derr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create permit")
	}
	for i := range intakeDocs {
		if err := s.permits.AddDocument(ctx, &intakeDocs[i]); err != nil {
			s.logger.Warn("record intake document", zap.Error(err))
		}
	}

	status := permit.Status
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeCreated,
		NewStatus: &status,
		Note:      "permit request received",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	if len(req.Documents) > 0 {
		s.emitPermitLog(ctx, &models.PermitChangeLog{
			PermitID:   permit.ID,
			Kind:       models.PermitChangeDocumentUpload,
			Note:       fmt.Sprintf("%d request document(s) uploaded", len(req.Documents)),
			UserID:     &actor.UserID,
			UserName:   &actor.FullName,
			Attachment: permit.BundleFile,
		})
	}
	s.afterMutation(ctx, models.ActionCreate, permit.Type)
	return permit, nil
}

// Action dispatches one named lifecycle action against a permit. Unknown
// actions are no-ops that return the unchanged permit.
func (s *PermitService) Action(ctx context.Context, permitID string, req dto.PermitActionRequest, actor *models.JWTClaims) (*models.Permit, error) {
	role, err := s.role(actor)
	if err != nil {
		return nil, err
	}
	permit, err := s.loadPermit(ctx, permitID)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case models.ActionUpdateRequestEmail:
		err = s.updateRequestEmail(ctx, permit, req, role, actor)
	case models.ActionSendInspectionPaymentLink:
		err = s.sendInspectionPaymentLink(ctx, permit, req, role, actor)
	case models.ActionInspectionPayment:
		err = s.inspectionPayment(ctx, permit, req, role, actor)
	case models.ActionReceiveForInspection:
		err = s.receiveForInspection(ctx, permit, role, actor)
	case models.ActionSubmitInspectionReport:
		err = s.submitInspectionReport(ctx, permit, req, role, actor)
	case models.ActionApprove:
		err = s.review(ctx, permit, req, role, actor, true)
	case models.ActionNeedsCompletion:
		err = s.review(ctx, permit, req, role, actor, false)
	case models.ActionCompleteMissing:
		err = s.completeMissing(ctx, permit, req, role, actor)
	case models.ActionSendPaymentLink:
		err = s.sendPaymentLink(ctx, permit, req, role, actor)
	case models.ActionPayment:
		err = s.payment(ctx, permit, req, role, actor)
	case models.ActionIssue:
		err = s.issue(ctx, permit, role, actor)
	case models.ActionUpdatePermitDetails:
		err = s.updatePermitDetails(ctx, permit, req, role, actor)
	default:
		return permit, nil
	}
	if err != nil {
		return nil, err
	}
	return s.loadPermit(ctx, permit.ID)
}

// Delete hard-deletes a permit; dependent rows cascade and stored files are
// removed best effort.
func (s *PermitService) Delete(ctx context.Context, permitID string, actor *models.JWTClaims) error {
	role, err := s.role(actor)
	if err != nil {
		return err
	}
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	permit, err := s.loadPermit(ctx, permitID)
	if err != nil {
		return err
	}
	if err := s.permits.Delete(ctx, permit.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrPermitNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete permit")
	}
	for _, dir := range []string{"documents/" + permit.ID, "receipts/" + permit.ID} {
		if err := s.files.DeleteDir(dir); err != nil {
			s.logger.Warn("remove permit files", zap.String("dir", dir), zap.Error(err))
		}
	}
	s.afterMutation(ctx, models.ActionDelete, permit.Type)
	return nil
}

func (s *PermitService) loadPermit(ctx context.Context, id string) (*models.Permit, error) {
	permit, err := s.permits.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrPermitNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load permit")
	}
	return permit, nil
}

// target resolves the transition table; the returned error carries the
// action-specific precondition message.
func (s *PermitService) target(permit *models.Permit, action models.PermitAction) (models.PermitStatus, error) {
	next, ok := models.Transition(permit.Type, action, permit.Status)
	if !ok {
		if action == models.ActionIssue {
			return "", appErrors.ErrNotReadyToIssue
		}
		return "", appErrors.Clone(appErrors.ErrPreconditionFailed,
			fmt.Sprintf("%s not allowed while %s", action, permit.Status))
	}
	return next, nil
}

func (s *PermitService) updateRequestEmail(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanDataEntry(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionUpdateRequestEmail)
	if err != nil {
		return err
	}
	email := strings.TrimSpace(req.RequestEmail)
	if email == "" {
		return appErrors.Validation([]string{"request_email: required"})
	}
	// Payment notification addresses track the request email.
	err = s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set: map[string]interface{}{
			"request_email":            email,
			"payment_email":            email,
			"inspection_payment_email": email,
		},
	})
	if err != nil {
		return s.transitionErr(err)
	}
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID: permit.ID,
		Kind:     models.PermitChangeDetails,
		Note:     "request email updated to " + email,
		UserID:   &actor.UserID,
		UserName: &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionUpdateRequestEmail, permit.Type)
	return nil
}

func (s *PermitService) sendInspectionPaymentLink(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionSendInspectionPaymentLink)
	if err != nil {
		return err
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return appErrors.Validation([]string{"reference: required"})
	}
	set := map[string]interface{}{
		"inspection_payment_reference": reference,
		"inspection_payment_link":      strings.TrimSpace(req.Link),
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		set["inspection_payment_email"] = email
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}
	entry := &models.PermitChangeLog{
		PermitID: permit.ID,
		Kind:     models.PermitChangeDetails,
		Note:     "inspection payment reference recorded",
		UserID:   &actor.UserID,
		UserName: &actor.FullName,
	}
	if next != permit.Status {
		oldStatus, newStatus := permit.Status, next
		entry.Kind = models.PermitChangeStatus
		entry.OldStatus = &oldStatus
		entry.NewStatus = &newStatus
		entry.Note = "inspection payment link sent"
	}
	s.emitPermitLog(ctx, entry)
	s.afterMutation(ctx, models.ActionSendInspectionPaymentLink, permit.Type)
	return nil
}

func (s *PermitService) inspectionPayment(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionInspectionPayment)
	if err != nil {
		return err
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		reference = permit.InspectionPaymentReference
	}
	details := make([]string, 0, 2)
	if reference == "" {
		details = append(details, "reference: required")
	}
	if req.Receipt == nil {
		details = append(details, "receipt: required")
	} else if !allowedDocExt(req.Receipt.Filename) {
		details = append(details, "receipt: extension not allowed")
	}
	if err := appErrors.Validation(details); err != nil {
		return err
	}

	receiptPath, err := s.saveReceipt(permit.ID, "inspection", req.Receipt)
	if err != nil {
		return err
	}
	now := time.Now()
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set: map[string]interface{}{
			"inspection_payment_reference":    reference,
			"inspection_payment_receipt_file": receiptPath,
			"inspection_payment_date":         now,
		},
	}); err != nil {
		return s.transitionErr(err)
	}
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:   permit.ID,
		Kind:       models.PermitChangeStatus,
		OldStatus:  &oldStatus,
		NewStatus:  &newStatus,
		Note:       "inspection payment confirmed",
		UserID:     &actor.UserID,
		UserName:   &actor.FullName,
		Attachment: &receiptPath,
	})
	s.afterMutation(ctx, models.ActionInspectionPayment, permit.Type)
	return nil
}

func (s *PermitService) receiveForInspection(ctx context.Context, permit *models.Permit, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanInspect(role) {
		return appErrors.ErrForbidden
	}
	if _, err := s.target(permit, models.ActionReceiveForInspection); err != nil {
		return err
	}
	review, err := s.reviews.GetByPermit(ctx, permit.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if review != nil && review.ReceivedAt != nil {
		return appErrors.ErrAlreadyReceived
	}
	if err := s.reviews.MarkReceived(ctx, permit.ID, actor.UserID, actor.FullName, time.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrAlreadyReceived
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record receipt")
	}
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID: permit.ID,
		Kind:     models.PermitChangeDetails,
		Note:     "received for inspection",
		Meta:     models.EncodeMeta(models.ReceiveMeta{ReceivedBy: actor.FullName}),
		UserID:   &actor.UserID,
		UserName: &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionReceiveForInspection, permit.Type)
	return nil
}

func (s *PermitService) submitInspectionReport(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanInspect(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionSubmitInspectionReport)
	if err != nil {
		return err
	}
	if permit.InspectionResult != nil {
		return appErrors.ErrReportSubmitted
	}
	review, err := s.reviews.GetByPermit(ctx, permit.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load review")
	}
	if review != nil && review.InspectorID != actor.UserID && !s.gate.CanAdmin(role) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the assigned inspector may submit the report")
	}

	decision := strings.ToLower(strings.TrimSpace(req.Decision))
	details := make([]string, 0, 2)
	if decision != models.InspectionApproved && decision != models.InspectionRejected {
		details = append(details, "decision: must be approved or rejected")
	}
	if decision == models.InspectionRejected && strings.TrimSpace(req.Notes) == "" {
		details = append(details, "notes: required when rejecting")
	}
	for _, photo := range req.Photos {
		if !allowedPhotoExt(photo.Filename) {
			details = append(details, fmt.Sprintf("photos: extension not allowed for %s", photo.Filename))
		}
	}
	if err := appErrors.Validation(details); err != nil {
		return err
	}

	unapproved := ""
	if decision == models.InspectionRejected {
		unapproved = strings.TrimSpace(req.Notes)
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set: map[string]interface{}{
			"inspection_result": decision,
			"unapproved_reason": unapproved,
		},
	}); err != nil {
		return s.transitionErr(err)
	}

	if err := s.reviews.Upsert(ctx, &models.InspectorReview{
		PermitID:    permit.ID,
		InspectorID: actor.UserID,
		Approved:    decision == models.InspectionApproved,
		Comments:    strings.TrimSpace(req.Notes),
	}); err != nil {
		s.logger.Warn("persist inspection review", zap.Error(err))
	}

	photoCount := 0
	for _, photo := range req.Photos {
		path, err := s.saveDocumentFile(permit.ID, photo)
		if err != nil {
			s.logger.Warn("store inspection photo", zap.Error(err))
			continue
		}
		if err := s.permits.AddDocument(ctx, &models.PermitDocument{
			PermitID: permit.ID,
			FileName: photo.Filename,
			FilePath: path,
			Kind:     models.DocumentKindInspectionPhoto,
		}); err != nil {
			s.logger.Warn("record inspection photo", zap.Error(err))
			continue
		}
		photoCount++
	}

	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "inspection report submitted",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID: permit.ID,
		Kind:     models.PermitChangeDetails,
		Note:     "inspection decision: " + decision,
		Meta:     models.EncodeMeta(models.ReportMeta{Decision: decision, Notes: strings.TrimSpace(req.Notes), Photos: photoCount}),
		UserID:   &actor.UserID,
		UserName: &actor.FullName,
	})
	if photoCount > 0 {
		s.emitPermitLog(ctx, &models.PermitChangeLog{
			PermitID: permit.ID,
			Kind:     models.PermitChangeDocumentUpload,
			Note:     fmt.Sprintf("%d inspection photo(s) uploaded", photoCount),
			UserID:   &actor.UserID,
			UserName: &actor.FullName,
		})
	}
	s.afterMutation(ctx, models.ActionSubmitInspectionReport, permit.Type)
	return nil
}

// review handles the pre-inspection approve / needs_completion decision.
func (s *PermitService) review(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims, approve bool) error {
	if !s.gate.CanInspect(role) {
		return appErrors.ErrForbidden
	}
	action := models.ActionApprove
	if !approve {
		action = models.ActionNeedsCompletion
	}
	next, err := s.target(permit, action)
	if err != nil {
		return err
	}
	remarks := strings.TrimSpace(req.Remarks)
	if !approve && remarks == "" {
		return appErrors.Validation([]string{"remarks: required when returning for completion"})
	}

	set := map[string]interface{}{"remarks": remarks}
	if approve {
		set["approved_by"] = actor.FullName
	} else {
		set["rejected_by"] = actor.FullName
		set["unapproved_reason"] = remarks
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}

	if err := s.reviews.Upsert(ctx, &models.InspectorReview{
		PermitID:    permit.ID,
		InspectorID: actor.UserID,
		Approved:    approve,
		Comments:    remarks,
	}); err != nil {
		s.logger.Warn("persist review decision", zap.Error(err))
	}

	note := "review approved"
	if !approve {
		note = "returned for completion: " + remarks
	}
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      note,
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.afterMutation(ctx, action, permit.Type)
	return nil
}

func (s *PermitService) completeMissing(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanDataEntry(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionCompleteMissing)
	if err != nil {
		return err
	}
	notes := strings.TrimSpace(req.Notes)
	if len(req.Documents) == 0 && notes == "" {
		return appErrors.Validation([]string{"documents or notes: at least one required"})
	}
	details := make([]string, 0, 1)
	for _, doc := range req.Documents {
		if !allowedDocExt(doc.Filename) {
			details = append(details, fmt.Sprintf("documents: extension not allowed for %s", doc.Filename))
		}
	}
	if err := appErrors.Validation(details); err != nil {
		return err
	}

	var attachment *string
	if len(req.Documents) > 0 {
		attachment, err = s.strategies[permit.Type].AttachCompletion(ctx, permit, req.Documents)
		if err != nil {
			return err
		}
	}

	set := map[string]interface{}{}
	if attachment != nil && permit.Type.BundlesDocuments() {
		set["bundle_file"] = *attachment
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}

	if len(req.Documents) > 0 {
		s.emitPermitLog(ctx, &models.PermitChangeLog{
			PermitID:   permit.ID,
			Kind:       models.PermitChangeDocumentUpload,
			Note:       fmt.Sprintf("%d completion document(s) uploaded", len(req.Documents)),
			UserID:     &actor.UserID,
			UserName:   &actor.FullName,
			Attachment: attachment,
		})
	}
	if notes != "" {
		s.emitPermitLog(ctx, &models.PermitChangeLog{
			PermitID: permit.ID,
			Kind:     models.PermitChangeDetails,
			Note:     notes,
			UserID:   &actor.UserID,
			UserName: &actor.FullName,
		})
	}
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "resubmitted for review",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionCompleteMissing, permit.Type)
	return nil
}

func (s *PermitService) sendPaymentLink(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionSendPaymentLink)
	if err != nil {
		return err
	}
	if permit.Type.HasInspectionFlow() {
		if permit.InspectionResult == nil || *permit.InspectionResult != models.InspectionApproved {
			return appErrors.Clone(appErrors.ErrPreconditionFailed, "inspection report not approved")
		}
	}
	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return appErrors.Validation([]string{"reference: required"})
	}
	set := map[string]interface{}{
		"payment_reference": reference,
		"payment_link":      strings.TrimSpace(req.Link),
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		set["payment_email"] = email
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "payment link sent",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionSendPaymentLink, permit.Type)
	return nil
}

func (s *PermitService) payment(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionPayment)
	if err != nil {
		return err
	}
	details := make([]string, 0, 2)
	if permit.PaymentReference == "" && strings.TrimSpace(req.Reference) == "" {
		details = append(details, "reference: no payment reference recorded")
	}
	if req.Receipt == nil {
		details = append(details, "receipt: required")
	} else if !allowedDocExt(req.Receipt.Filename) {
		details = append(details, "receipt: extension not allowed")
	}
	if err := appErrors.Validation(details); err != nil {
		return err
	}

	receiptPath, err := s.saveReceipt(permit.ID, "payment", req.Receipt)
	if err != nil {
		return err
	}
	set := map[string]interface{}{
		"payment_receipt_file": receiptPath,
	}
	if reference := strings.TrimSpace(req.Reference); reference != "" {
		set["payment_reference"] = reference
	}
	if permit.PaymentDate == nil {
		set["payment_date"] = time.Now()
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:   permit.ID,
		Kind:       models.PermitChangePayment,
		Note:       "payment receipt recorded",
		UserID:     &actor.UserID,
		UserName:   &actor.FullName,
		Attachment: &receiptPath,
	})
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "payment completed",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionPayment, permit.Type)
	return nil
}

func (s *PermitService) issue(ctx context.Context, permit *models.Permit, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionIssue)
	if err != nil {
		return err
	}
	set := map[string]interface{}{}
	if permit.IssueDate == nil {
		set["issue_date"] = time.Now()
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}
	oldStatus, newStatus := permit.Status, next
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID:  permit.ID,
		Kind:      models.PermitChangeStatus,
		OldStatus: &oldStatus,
		NewStatus: &newStatus,
		Note:      "permit issued",
		UserID:    &actor.UserID,
		UserName:  &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionIssue, permit.Type)
	return nil
}

func (s *PermitService) updatePermitDetails(ctx context.Context, permit *models.Permit, req dto.PermitActionRequest, role models.UserRole, actor *models.JWTClaims) error {
	if !s.gate.CanAdmin(role) {
		return appErrors.ErrForbidden
	}
	next, err := s.target(permit, models.ActionUpdatePermitDetails)
	if err != nil {
		return err
	}
	set := map[string]interface{}{}
	details := make([]string, 0, 2)
	if req.IssueDate != "" {
		issue, err := time.Parse(dateLayout, req.IssueDate)
		if err != nil {
			details = append(details, "issue_date: invalid date")
		} else {
			set["issue_date"] = issue
		}
	}
	if req.ExpiryDate != "" {
		expiry, err := time.Parse(dateLayout, req.ExpiryDate)
		if err != nil {
			details = append(details, "expiry_date: invalid date")
		} else {
			set["expiry_date"] = expiry
		}
	}
	if err := appErrors.Validation(details); err != nil {
		return err
	}
	if len(set) == 0 {
		return appErrors.Validation([]string{"issue_date or expiry_date: at least one required"})
	}
	if err := s.permits.ApplyTransition(ctx, repository.TransitionUpdate{
		ID:             permit.ID,
		ExpectedStatus: permit.Status,
		NewStatus:      next,
		Set:            set,
	}); err != nil {
		return s.transitionErr(err)
	}
	s.emitPermitLog(ctx, &models.PermitChangeLog{
		PermitID: permit.ID,
		Kind:     models.PermitChangeDetails,
		Note:     "issue/expiry dates updated",
		UserID:   &actor.UserID,
		UserName: &actor.FullName,
	})
	s.afterMutation(ctx, models.ActionUpdatePermitDetails, permit.Type)
	return nil
}

// transitionErr maps the optimistic-guard miss onto the precondition error.
func (s *PermitService) transitionErr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "permit changed concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
}

func (s *PermitService) emitPermitLog(ctx context.Context, entry *models.PermitChangeLog) {
	if s.audit == nil || entry == nil {
		return
	}
	if err := s.audit.CreatePermitLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist permit change log", zap.Error(err))
	}
}

func (s *PermitService) emitCompanyLog(ctx context.Context, entry *models.CompanyChangeLog) {
	if s.audit == nil || entry == nil {
		return
	}
	if err := s.audit.CreateCompanyLog(ctx, entry); err != nil {
		s.logger.Warn("failed to persist company change log", zap.Error(err))
	}
}

// afterMutation invalidates cached list views and counts the transition.
func (s *PermitService) afterMutation(ctx context.Context, action models.PermitAction, permitType models.PermitType) {
	if s.cache != nil {
		if err := s.cache.DeleteByPattern(ctx, permitListKeyPattern); err != nil {
			s.logger.Warn("invalidate permit list cache", zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObservePermitTransition(string(action), string(permitType))
	}
}

func (s *PermitService) collectValidation(req interface{}) []string {
	return collectValidationDetails(s.validate.Struct(req))
}
