package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	"github.com/hcsd/permit-clearance-api/internal/models"
	"github.com/hcsd/permit-clearance-api/pkg/bundle"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
)

var docExts = map[string]struct{}{
	".pdf":  {},
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

var photoExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
}

func allowedDocExt(filename string) bool {
	_, ok := docExts[strings.ToLower(filepath.Ext(filename))]
	return ok
}

func allowedPhotoExt(filename string) bool {
	_, ok := photoExts[strings.ToLower(filepath.Ext(filename))]
	return ok
}

// documentStrategy is the per-permit-type document policy: pest-control
// permits keep one appendable bundle, the other types keep discrete
// attachment rows.
type documentStrategy interface {
	// AttachIntake stores the intake uploads and returns the document rows
	// to record once the permit row exists.
	AttachIntake(ctx context.Context, permit *models.Permit, files []dto.FileUpload) ([]models.PermitDocument, error)
	// AttachCompletion stores completion uploads; the returned attachment is
	// the bundle path when the type bundles, nil otherwise.
	AttachCompletion(ctx context.Context, permit *models.Permit, files []dto.FileUpload) (*string, error)
}

type bundleStrategy struct {
	svc *PermitService
}

func (b *bundleStrategy) AttachIntake(_ context.Context, permit *models.Permit, files []dto.FileUpload) ([]models.PermitDocument, error) {
	data, err := bundle.Build(toBundleFiles(files))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build document bundle")
	}
	path := bundlePath(permit.ID)
	if _, err := b.svc.files.Save(path, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document bundle")
	}
	permit.BundleFile = &path
	return nil, nil
}

func (b *bundleStrategy) AttachCompletion(_ context.Context, permit *models.Permit, files []dto.FileUpload) (*string, error) {
	path := bundlePath(permit.ID)
	var data []byte
	if permit.BundleFile != nil && *permit.BundleFile != "" {
		path = *permit.BundleFile
		existing, err := b.svc.readFile(path)
		if err != nil {
			return nil, err
		}
		data, err = bundle.Append(existing, toBundleFiles(files))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to append to document bundle")
		}
	} else {
		var err error
		data, err = bundle.Build(toBundleFiles(files))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build document bundle")
		}
	}
	if _, err := b.svc.files.Save(path, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document bundle")
	}
	return &path, nil
}

type discreteStrategy struct {
	svc *PermitService
}

func (d *discreteStrategy) AttachIntake(_ context.Context, permit *models.Permit, files []dto.FileUpload) ([]models.PermitDocument, error) {
	docs := make([]models.PermitDocument, 0, len(files))
	for _, file := range files {
		path, err := d.svc.saveDocumentFile(permit.ID, file)
		if err != nil {
			return nil, err
		}
		docs = append(docs, models.PermitDocument{
			PermitID: permit.ID,
			FileName: filepath.Base(file.Filename),
			FilePath: path,
			Kind:     models.DocumentKindRequest,
		})
	}
	return docs, nil
}

func (d *discreteStrategy) AttachCompletion(ctx context.Context, permit *models.Permit, files []dto.FileUpload) (*string, error) {
	for _, file := range files {
		path, err := d.svc.saveDocumentFile(permit.ID, file)
		if err != nil {
			return nil, err
		}
		if err := d.svc.permits.AddDocument(ctx, &models.PermitDocument{
			PermitID: permit.ID,
			FileName: filepath.Base(file.Filename),
			FilePath: path,
			Kind:     models.DocumentKindCompletion,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record completion document")
		}
	}
	return nil, nil
}

func bundlePath(permitID string) string {
	return fmt.Sprintf("documents/%s/bundle.zip", permitID)
}

func toBundleFiles(files []dto.FileUpload) []bundle.File {
	out := make([]bundle.File, 0, len(files))
	for _, f := range files {
		out = append(out, bundle.File{Name: f.Filename, Content: f.Content})
	}
	return out
}

func (s *PermitService) saveDocumentFile(permitID string, file dto.FileUpload) (string, error) {
	path := fmt.Sprintf("documents/%s/%s", permitID, filepath.Base(file.Filename))
	if _, err := s.files.Save(path, file.Content); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store document")
	}
	return path, nil
}

func (s *PermitService) saveReceipt(permitID, prefix string, file *dto.FileUpload) (string, error) {
	path := fmt.Sprintf("receipts/%s/%s_%s", permitID, prefix, filepath.Base(file.Filename))
	if _, err := s.files.Save(path, file.Content); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store receipt")
	}
	return path, nil
}

func (s *PermitService) readFile(path string) ([]byte, error) {
	f, err := s.files.Open(path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open stored file")
	}
	defer f.Close() //nolint:errcheck
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read stored file")
	}
	return data, nil
}
