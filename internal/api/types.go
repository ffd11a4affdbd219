package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/mirclinic/clinic-core/internal/reservation"
	"github.com/mirclinic/clinic-core/internal/visit"
)

type CreateReservationRequest struct {
	Name         string `json:"name"`
	Contact      string `json:"contact"`
	Date         string `json:"date"` // YYYY-MM-DD
	Slot         string `json:"slot"` // HH:MM
	Note         string `json:"note"`
	ConsentGiven bool   `json:"consent_given"`
	Type         string `json:"type"` // reservation | inquiry
}

type UpdateReservationRequest struct {
	Date string `json:"date"`
	Slot string `json:"slot"`
	Note string `json:"note"`
}

type ReservationResponse struct {
	ID           uuid.UUID `json:"id"`
	AccountID    *string   `json:"account_id,omitempty"`
	Name         string    `json:"name"`
	Contact      string    `json:"contact"`
	Date         string    `json:"date,omitempty"`
	Slot         string    `json:"slot,omitempty"`
	Note         string    `json:"note"`
	Type         string    `json:"type"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func toReservationResponse(r *reservation.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:        r.ID,
		AccountID: r.AccountID,
		Name:      r.Name,
		Contact:   r.Contact,
		Slot:      r.Slot,
		Note:      r.Note,
		Type:      string(r.Type),
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if !r.Date.IsZero() {
		resp.Date = r.Date.Format("2006-01-02")
	}
	return resp
}

type RegisterVisitRequest struct {
	PatientID string `json:"patient_id"`
}

type VersionedRequest struct {
	Version int64 `json:"version"`
}

type ForwardRequest struct {
	Version        int64  `json:"version"`
	ChiefComplaint string `json:"chief_complaint"`
	Diagnosis      string `json:"diagnosis"`
	TreatmentNote  string `json:"treatment_note"`
}

type TestOrderRequest struct {
	Version int64  `json:"version"`
	Order   string `json:"order"`
}

type TestResultRequest struct {
	Version int64  `json:"version"`
	Result  string `json:"result"`
}

type VisitResponse struct {
	ID          uuid.UUID `json:"id"`
	PatientID   uuid.UUID `json:"patient_id"`
	PatientName string    `json:"patient_name"`
	Status      string    `json:"status"`
	TestStatus  string    `json:"test_status,omitempty"`
	TestOrder   string    `json:"test_order,omitempty"`
	TestResult  string    `json:"test_result,omitempty"`

	ChiefComplaint string `json:"chief_complaint,omitempty"`
	Diagnosis      string `json:"diagnosis,omitempty"`
	TreatmentNote  string `json:"treatment_note,omitempty"`

	ConsultationFee int64 `json:"consultation_fee,omitempty"`
	TestFee         int64 `json:"test_fee,omitempty"`
	TotalDue        int64 `json:"total_due,omitempty"`

	IntakeAt  time.Time  `json:"intake_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	PaidAt    *time.Time `json:"paid_at,omitempty"`

	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toVisitResponse(v *visit.Visit) VisitResponse {
	return VisitResponse{
		ID:              v.ID,
		PatientID:       v.PatientID,
		PatientName:     v.PatientName,
		Status:          string(v.Status),
		TestStatus:      string(v.TestStatus),
		TestOrder:       v.TestOrder,
		TestResult:      v.TestResult,
		ChiefComplaint:  v.ChiefComplaint,
		Diagnosis:       v.Diagnosis,
		TreatmentNote:   v.TreatmentNote,
		ConsultationFee: v.ConsultationFee,
		TestFee:         v.TestFee,
		TotalDue:        v.TotalDue,
		IntakeAt:        v.IntakeAt,
		StartedAt:       v.StartedAt,
		PaidAt:          v.PaidAt,
		Version:         v.Version,
		UpdatedAt:       v.UpdatedAt,
	}
}

func toVisitResponses(visits []visit.Visit) []VisitResponse {
	out := make([]VisitResponse, 0, len(visits))
	for i := range visits {
		out = append(out, toVisitResponse(&visits[i]))
	}
	return out
}

func toReservationResponses(reservations []reservation.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(reservations))
	for i := range reservations {
		out = append(out, toReservationResponse(&reservations[i]))
	}
	return out
}

type ErrorResponse struct {
	Error        string `json:"error"`
	Details      string `json:"details,omitempty"`
	ConflictWith string `json:"conflict_with,omitempty"`
}
