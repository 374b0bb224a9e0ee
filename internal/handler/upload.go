package handler

import (
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/hcsd/permit-clearance-api/internal/dto"
	appErrors "github.com/hcsd/permit-clearance-api/pkg/errors"
)

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

func readUpload(header *multipart.FileHeader, maxSize int64) (*dto.FileUpload, error) {
	if maxSize > 0 && header.Size > maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("%s exceeds the maximum upload size", header.Filename))
	}
	file, err := header.Open()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	defer file.Close() //nolint:errcheck
	content, err := io.ReadAll(file)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	return &dto.FileUpload{Filename: header.Filename, Content: content}, nil
}

// formFile returns the single named upload or nil when the field is absent.
func formFile(c *gin.Context, field string, maxSize int64) (*dto.FileUpload, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil
	}
	return readUpload(header, maxSize)
}

// formFiles returns every upload under the named field.
func formFiles(c *gin.Context, field string, maxSize int64) ([]dto.FileUpload, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, nil
	}
	headers := form.File[field]
	uploads := make([]dto.FileUpload, 0, len(headers))
	for _, header := range headers {
		upload, err := readUpload(header, maxSize)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *upload)
	}
	return uploads, nil
}
