// Package documents is a minimal plain-text stand-in for the clinic's
// printable-template renderer, which is an external collaborator. It exists
// so document issuance has a working end-to-end path in dev.
package documents

import (
	"bytes"
	"context"
	"fmt"
	"text/template"

	"github.com/mirclinic/clinic-core/internal/visit"
)

var templates = map[visit.DocumentKind]*template.Template{
	visit.DocPrescription: template.Must(template.New("prescription").Parse(
		"PRESCRIPTION\nPatient: {{.PatientName}}\nDiagnosis: {{.Diagnosis}}\nRx: {{.TreatmentNote}}\nIssued: {{.PaidAt.Format \"2006-01-02\"}}\n")),
	visit.DocReceipt: template.Must(template.New("receipt").Parse(
		"RECEIPT\nPatient: {{.PatientName}}\nConsultation: {{.ConsultationFee}}\nTests: {{.TestFee}}\nTotal: {{.TotalDue}}\nPaid: {{.PaidAt.Format \"2006-01-02 15:04\"}}\n")),
	visit.DocCertificate: template.Must(template.New("certificate").Parse(
		"MEDICAL CERTIFICATE\nPatient: {{.PatientName}}\nDiagnosis: {{.Diagnosis}}\nSeen: {{.IntakeAt.Format \"2006-01-02\"}}\n")),
	visit.DocReferral: template.Must(template.New("referral").Parse(
		"REFERRAL\nPatient: {{.PatientName}}\nDiagnosis: {{.Diagnosis}}\nFindings: {{.TestResult}}\n")),
}

type TextRenderer struct{}

func NewTextRenderer() *TextRenderer {
	return &TextRenderer{}
}

func (r *TextRenderer) Render(_ context.Context, v *visit.Visit, kind visit.DocumentKind) ([]byte, error) {
	tmpl, ok := templates[kind]
	if !ok {
		return nil, fmt.Errorf("no template for document kind %q", kind)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return nil, fmt.Errorf("execute %s template: %w", kind, err)
	}
	return buf.Bytes(), nil
}
