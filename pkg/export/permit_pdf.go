package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PermitCertificate holds the fields printed onto the clearance document.
type PermitCertificate struct {
	PermitNo             string
	PermitType           string
	CompanyName          string
	CompanyNumber        string
	EngineerName         string
	Status               string
	IssueDate            string
	ExpiryDate           string
	AllowedActivities    []string
	RestrictedActivities []string
	OtherActivities      string
}

// PermitPDFRenderer renders a printable permit clearance certificate.
type PermitPDFRenderer struct{}

// NewPermitPDFRenderer constructs a certificate renderer.
func NewPermitPDFRenderer() *PermitPDFRenderer {
	return &PermitPDFRenderer{}
}

// Render creates the certificate PDF for a permit.
func (r *PermitPDFRenderer) Render(cert PermitCertificate) ([]byte, error) {
	if cert.PermitNo == "" {
		return nil, fmt.Errorf("permit number required")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 20, 15)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(0, 10, "PERMIT CLEARANCE CERTIFICATE", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(0, 8, cert.PermitNo, "", 1, "C", false, 0, "")
	pdf.Ln(6)

	rows := [][2]string{
		{"Permit Type", cert.PermitType},
		{"Company", cert.CompanyName},
		{"License Number", cert.CompanyNumber},
		{"Engineer", cert.EngineerName},
		{"Status", strings.ToUpper(cert.Status)},
		{"Issue Date", cert.IssueDate},
		{"Expiry Date", cert.ExpiryDate},
	}
	pdf.SetFont("Arial", "", 10)
	for _, row := range rows {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(55, 8, row[0], "1", 0, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(125, 8, row[1], "1", 1, "", false, 0, "")
	}
	pdf.Ln(6)

	r.activitySection(pdf, "Allowed Activities", cert.AllowedActivities)
	r.activitySection(pdf, "Restricted Activities", cert.RestrictedActivities)
	if cert.OtherActivities != "" {
		pdf.SetFont("Arial", "B", 11)
		pdf.CellFormat(0, 8, "Other Activities", "", 1, "", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.MultiCell(0, 6, cert.OtherActivities, "", "", false)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render permit certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *PermitPDFRenderer) activitySection(pdf *gofpdf.Fpdf, title string, activities []string) {
	pdf.SetFont("Arial", "B", 11)
	pdf.CellFormat(0, 8, title, "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	if len(activities) == 0 {
		pdf.CellFormat(0, 6, "- none -", "", 1, "", false, 0, "")
	}
	for _, activity := range activities {
		pdf.CellFormat(0, 6, "  - "+activity, "", 1, "", false, 0, "")
	}
	pdf.Ln(3)
}
