package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	"github.com/hcsd/permit-clearance-api/pkg/storage"
)

type companyDirectoryStub struct {
	companies  map[string]*models.Company
	issued     map[string]string
	validities map[string][]models.CompanyPermitValidity
}

func newCompanyDirectoryStub() *companyDirectoryStub {
	return &companyDirectoryStub{
		companies:  make(map[string]*models.Company),
		issued:     make(map[string]string),
		validities: make(map[string][]models.CompanyPermitValidity),
	}
}

func (c *companyDirectoryStub) Create(ctx context.Context, company *models.Company) error {
	if company.ID == "" {
		company.ID = "company-" + company.Number
	}
	stored := *company
	c.companies[company.ID] = &stored
	return nil
}

func (c *companyDirectoryStub) Update(ctx context.Context, company *models.Company) error {
	if _, ok := c.companies[company.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *company
	c.companies[company.ID] = &stored
	return nil
}

func (c *companyDirectoryStub) GetByID(ctx context.Context, id string) (*models.Company, error) {
	company, ok := c.companies[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *company
	return &clone, nil
}

func (c *companyDirectoryStub) GetByNameNumber(ctx context.Context, name, number string) (*models.Company, error) {
	for _, company := range c.companies {
		if company.Name == name && company.Number == number {
			clone := *company
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (c *companyDirectoryStub) List(ctx context.Context, filter models.CompanyFilter) ([]models.Company, int, error) {
	result := make([]models.Company, 0, len(c.companies))
	for _, company := range c.companies {
		result = append(result, *company)
	}
	return result, len(result), nil
}

func (c *companyDirectoryStub) LatestIssuedActivities(ctx context.Context, companyID string) (string, error) {
	return c.issued[companyID], nil
}

func (c *companyDirectoryStub) PermitValidities(ctx context.Context, companyID string) ([]models.CompanyPermitValidity, error) {
	return c.validities[companyID], nil
}

type companyAuditStub struct {
	logs []*models.CompanyChangeLog
}

func (a *companyAuditStub) CreateCompanyLog(ctx context.Context, entry *models.CompanyChangeLog) error {
	a.logs = append(a.logs, entry)
	return nil
}

func (a *companyAuditStub) ListCompanyLogs(ctx context.Context, companyID string) ([]models.CompanyChangeLog, error) {
	result := make([]models.CompanyChangeLog, 0, len(a.logs))
	for _, entry := range a.logs {
		if entry.CompanyID == companyID {
			result = append(result, *entry)
		}
	}
	return result, nil
}

type companyFixture struct {
	svc       *CompanyService
	companies *companyDirectoryStub
	engineers *engineerStoreStub
	audit     *companyAuditStub
}

func newCompanyFixture(t *testing.T) *companyFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	phCert := "engineers/eng-1/public_health_cert.pdf"
	termiteCert := "engineers/eng-2/termite_cert.pdf"
	engineers := &engineerStoreStub{engineers: map[string]*models.Engineer{
		"eng-1": {ID: "eng-1", Name: "Lena Haddad", Email: "lena@example.com", PublicHealthCertFile: &phCert},
		"eng-2": {ID: "eng-2", Name: "Omar Said", Email: "omar@example.com", PublicHealthCertFile: &phCert, TermiteCertFile: &termiteCert},
	}}

	f := &companyFixture{
		companies: newCompanyDirectoryStub(),
		engineers: engineers,
		audit:     &companyAuditStub{},
	}
	f.svc = NewCompanyService(f.companies, f.engineers, f.audit, files, nil, nil)
	return f
}

func createCompanyRequest() dto.CreateCompanyRequest {
	return dto.CreateCompanyRequest{
		Name:       "Acme Pest Solutions",
		Number:     "TL-1",
		EngineerID: "eng-1",
		Activities: []string{models.ActivityPublicHealth},
	}
}

func TestCompanyCreateRecordsChangeLog(t *testing.T) {
	f := newCompanyFixture(t)

	company, err := f.svc.Create(context.Background(), createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)
	require.NotEmpty(t, company.ID)
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, models.CompanyChangeCreated, f.audit.logs[0].Kind)
}

func TestCompanyCreateRejectsTermiteWithoutCert(t *testing.T) {
	f := newCompanyFixture(t)

	req := createCompanyRequest()
	req.Activities = []string{models.ActivityTermite}
	_, err := f.svc.Create(context.Background(), req, claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "termite certificate")

	req.EngineerID = "eng-2"
	_, err = f.svc.Create(context.Background(), req, claims("DATA_ENTRY"))
	require.NoError(t, err)
}

func TestCompanyCreateRejectsDuplicateIdentity(t *testing.T) {
	f := newCompanyFixture(t)

	_, err := f.svc.Create(context.Background(), createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), createCompanyRequest(), claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "already registered")
}

func TestCompanyUpdateLogsChangedFieldsAndEngineerSwap(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, company.ID, dto.UpdateCompanyRequest{
		Name:       company.Name,
		Number:     company.Number,
		Address:    "12 Harbor Road",
		EngineerID: "eng-2",
	}, claims("ADMIN"))
	require.NoError(t, err)
	require.Equal(t, "12 Harbor Road", updated.Address)
	require.NotNil(t, updated.EngineerID)
	require.Equal(t, "eng-2", *updated.EngineerID)

	kinds := make([]models.CompanyChangeKind, 0, len(f.audit.logs))
	for _, entry := range f.audit.logs {
		kinds = append(kinds, entry.Kind)
	}
	require.Contains(t, kinds, models.CompanyChangeUpdated)
	require.Contains(t, kinds, models.CompanyChangeEngineerChanged)
}

func TestCompanyUpdateRequiresAdmin(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, company.ID, dto.UpdateCompanyRequest{
		Name:   company.Name,
		Number: company.Number,
	}, claims("DATA_ENTRY"))
	require.Error(t, err)
}

func TestCompanyExtensionRequestStoresAttachment(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)

	err = f.svc.RequestExtension(ctx, company.ID, dto.ExtensionRequest{
		Note:       "season extension",
		Attachment: &dto.FileUpload{Filename: "request.pdf", Content: []byte("pdf")},
	}, claims("DATA_ENTRY"))
	require.NoError(t, err)

	last := f.audit.logs[len(f.audit.logs)-1]
	require.Equal(t, models.CompanyChangeExtensionRequested, last.Kind)
	require.NotNil(t, last.Attachment)

	err = f.svc.RequestExtension(ctx, company.ID, dto.ExtensionRequest{
		Attachment: &dto.FileUpload{Filename: "malware.exe", Content: []byte("x")},
	}, claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "extension not allowed")
}

func TestCompanyListCarriesIssuedActivityLabels(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)
	f.companies.issued[company.ID] = "termite_control"

	items, pagination, err := f.svc.List(ctx, dto.CompanyQuery{}, claims("INSPECTOR"))
	require.NoError(t, err)
	require.Equal(t, 1, pagination.TotalCount)
	require.Len(t, items, 1)
	// Termite without public health gets public health prepended.
	require.Equal(t, []string{"Public Health Pest Control", "Termite Control"}, items[0].ActivityLabels)
}

func TestCompanyDetailAggregatesView(t *testing.T) {
	f := newCompanyFixture(t)
	ctx := context.Background()

	company, err := f.svc.Create(ctx, createCompanyRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)
	f.companies.validities[company.ID] = []models.CompanyPermitValidity{
		{PermitType: models.PermitTypePestControl, PermitNo: "PRM-2026-000001"},
	}

	detail, err := f.svc.Get(ctx, company.ID, claims("ADMIN"))
	require.NoError(t, err)
	require.Equal(t, company.ID, detail.Company.ID)
	require.NotNil(t, detail.Engineer)
	require.Len(t, detail.Validities, 1)
	require.Len(t, detail.ChangeLog, 1)
}
