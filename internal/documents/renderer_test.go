package documents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirclinic/clinic-core/internal/visit"
)

func paidVisit() *visit.Visit {
	paidAt := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	return &visit.Visit{
		PatientName:     "Hong Gildong",
		Status:          visit.StatusPaid,
		Diagnosis:       "sprain",
		TreatmentNote:   "ibuprofen 400mg",
		TestResult:      "negative",
		ConsultationFee: 15000,
		TestFee:         30000,
		TotalDue:        45000,
		IntakeAt:        time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		PaidAt:          &paidAt,
	}
}

func TestRenderReceipt(t *testing.T) {
	out, err := NewTextRenderer().Render(context.Background(), paidVisit(), visit.DocReceipt)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "RECEIPT")
	assert.Contains(t, text, "Hong Gildong")
	assert.Contains(t, text, "Total: 45000")
	assert.Contains(t, text, "2026-03-02 11:30")
}

func TestRenderAllKinds(t *testing.T) {
	r := NewTextRenderer()
	for _, kind := range []visit.DocumentKind{
		visit.DocPrescription, visit.DocReceipt, visit.DocCertificate, visit.DocReferral,
	} {
		out, err := r.Render(context.Background(), paidVisit(), kind)
		require.NoError(t, err, "kind %s", kind)
		assert.True(t, strings.Contains(string(out), "Hong Gildong"), "kind %s", kind)
	}
}

func TestRenderUnknownKind(t *testing.T) {
	_, err := NewTextRenderer().Render(context.Background(), paidVisit(), visit.DocumentKind("invoice"))
	assert.Error(t, err)
}
