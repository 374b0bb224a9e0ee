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

type engineerDirectoryStub struct {
	engineers map[string]*models.Engineer
}

func newEngineerDirectoryStub() *engineerDirectoryStub {
	return &engineerDirectoryStub{engineers: make(map[string]*models.Engineer)}
}

func (e *engineerDirectoryStub) Create(ctx context.Context, engineer *models.Engineer) error {
	stored := *engineer
	e.engineers[engineer.ID] = &stored
	return nil
}

func (e *engineerDirectoryStub) Update(ctx context.Context, engineer *models.Engineer) error {
	if _, ok := e.engineers[engineer.ID]; !ok {
		return sql.ErrNoRows
	}
	stored := *engineer
	e.engineers[engineer.ID] = &stored
	return nil
}

func (e *engineerDirectoryStub) GetByID(ctx context.Context, id string) (*models.Engineer, error) {
	engineer, ok := e.engineers[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *engineer
	return &clone, nil
}

func (e *engineerDirectoryStub) GetByEmail(ctx context.Context, email string) (*models.Engineer, error) {
	for _, engineer := range e.engineers {
		if engineer.Email == email {
			clone := *engineer
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (e *engineerDirectoryStub) List(ctx context.Context, filter models.EngineerFilter) ([]models.Engineer, int, error) {
	result := make([]models.Engineer, 0, len(e.engineers))
	for _, engineer := range e.engineers {
		result = append(result, *engineer)
	}
	return result, len(result), nil
}

type engineerAuditStub struct {
	logs []*models.EngineerStatusLog
}

func (a *engineerAuditStub) CreateEngineerLog(ctx context.Context, entry *models.EngineerStatusLog) error {
	a.logs = append(a.logs, entry)
	return nil
}

func (a *engineerAuditStub) ListEngineerLogs(ctx context.Context, engineerID string) ([]models.EngineerStatusLog, error) {
	result := make([]models.EngineerStatusLog, 0, len(a.logs))
	for _, entry := range a.logs {
		if entry.EngineerID == engineerID {
			result = append(result, *entry)
		}
	}
	return result, nil
}

type engineerFixture struct {
	svc       *EngineerService
	engineers *engineerDirectoryStub
	audit     *engineerAuditStub
}

func newEngineerFixture(t *testing.T) *engineerFixture {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	f := &engineerFixture{
		engineers: newEngineerDirectoryStub(),
		audit:     &engineerAuditStub{},
	}
	f.svc = NewEngineerService(f.engineers, f.audit, files, nil, nil)
	return f
}

func createEngineerRequest() dto.CreateEngineerRequest {
	return dto.CreateEngineerRequest{
		Name:             "Lena Haddad",
		Email:            "lena@example.com",
		PublicHealthCert: &dto.FileUpload{Filename: "ph_cert.pdf", Content: []byte("cert")},
	}
}

func TestEngineerCreateRequiresPublicHealthCert(t *testing.T) {
	f := newEngineerFixture(t)

	req := createEngineerRequest()
	req.PublicHealthCert = nil
	_, err := f.svc.Create(context.Background(), req, claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "public_health_cert")
}

func TestEngineerCreateWithBothCerts(t *testing.T) {
	f := newEngineerFixture(t)

	req := createEngineerRequest()
	req.TermiteCert = &dto.FileUpload{Filename: "termite_cert.pdf", Content: []byte("cert")}
	engineer, err := f.svc.Create(context.Background(), req, claims("DATA_ENTRY"))
	require.NoError(t, err)
	require.True(t, engineer.HasPublicHealthCert())
	require.True(t, engineer.HasTermiteCert())

	require.Len(t, f.audit.logs, 3)
	require.Equal(t, models.EngineerStatusCreated, f.audit.logs[0].Kind)
}

func TestEngineerCreateRejectsDuplicateEmail(t *testing.T) {
	f := newEngineerFixture(t)

	_, err := f.svc.Create(context.Background(), createEngineerRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)
	_, err = f.svc.Create(context.Background(), createEngineerRequest(), claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "already registered")
}

func TestUploadTermiteCertRequiresPublicHealthOnFile(t *testing.T) {
	f := newEngineerFixture(t)
	ctx := context.Background()

	f.engineers.engineers["eng-bare"] = &models.Engineer{ID: "eng-bare", Name: "No Cert", Email: "bare@example.com"}

	_, err := f.svc.UploadCert(ctx, "eng-bare", dto.UploadCertRequest{
		Kind: dto.CertKindTermite,
		File: &dto.FileUpload{Filename: "termite.pdf", Content: []byte("cert")},
	}, claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "public health certificate")

	_, err = f.svc.UploadCert(ctx, "eng-bare", dto.UploadCertRequest{
		Kind: dto.CertKindPublicHealth,
		File: &dto.FileUpload{Filename: "ph.pdf", Content: []byte("cert")},
	}, claims("DATA_ENTRY"))
	require.NoError(t, err)

	engineer, err := f.svc.UploadCert(ctx, "eng-bare", dto.UploadCertRequest{
		Kind: dto.CertKindTermite,
		File: &dto.FileUpload{Filename: "termite.pdf", Content: []byte("cert")},
	}, claims("DATA_ENTRY"))
	require.NoError(t, err)
	require.True(t, engineer.HasTermiteCert())
}

func TestUploadCertRejectsUnknownKind(t *testing.T) {
	f := newEngineerFixture(t)

	engineer, err := f.svc.Create(context.Background(), createEngineerRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)

	_, err = f.svc.UploadCert(context.Background(), engineer.ID, dto.UploadCertRequest{
		Kind: "electrical",
		File: &dto.FileUpload{Filename: "cert.pdf", Content: []byte("cert")},
	}, claims("DATA_ENTRY"))
	require.ErrorContains(t, err, "unknown certificate kind")
}

func TestEngineerDetailDerivesActivities(t *testing.T) {
	f := newEngineerFixture(t)
	ctx := context.Background()

	engineer, err := f.svc.Create(ctx, createEngineerRequest(), claims("DATA_ENTRY"))
	require.NoError(t, err)

	detail, err := f.svc.Get(ctx, engineer.ID, claims("INSPECTOR"))
	require.NoError(t, err)
	require.Equal(t, []string{models.ActivityPublicHealth, models.ActivityGrainPests}, detail.AllowedActivities)
	require.Len(t, detail.StatusLog, 2)
}
