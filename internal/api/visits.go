package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mirclinic/clinic-core/internal/visit"
)

func registerVisitHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RegisterVisitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		v, err := svc.Register(r.Context(), patientID)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toVisitResponse(v))
	}
}

func getVisitHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		v, err := svc.Get(r.Context(), id)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func callVisitHandler(svc *visit.Service) http.HandlerFunc {
	return versionedTransitionHandler(func(r *http.Request, id uuid.UUID, version int64) (*visit.Visit, error) {
		return svc.Call(r.Context(), id, version)
	})
}

func forwardVisitHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req ForwardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		v, err := svc.SendForward(r.Context(), id, req.Version, visit.ClinicalNotes{
			ChiefComplaint: req.ChiefComplaint,
			Diagnosis:      req.Diagnosis,
			TreatmentNote:  req.TreatmentNote,
		})
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func completeVisitHandler(svc *visit.Service) http.HandlerFunc {
	return versionedTransitionHandler(func(r *http.Request, id uuid.UUID, version int64) (*visit.Visit, error) {
		return svc.CompleteTreatment(r.Context(), id, version)
	})
}

func paymentHandler(svc *visit.Service) http.HandlerFunc {
	return versionedTransitionHandler(func(r *http.Request, id uuid.UUID, version int64) (*visit.Visit, error) {
		return svc.ProcessPayment(r.Context(), id, version)
	})
}

func testOrderHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req TestOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		v, err := svc.OrderTest(r.Context(), id, req.Version, req.Order)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func testResultHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req TestResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		v, err := svc.RecordTestResult(r.Context(), id, req.Version, req.Result)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func issueDocumentHandler(svc *visit.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		kind, err := visit.ParseDocumentKind(chi.URLParam(r, "kind"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_document_kind", err.Error())
			return
		}

		doc, err := svc.IssueDocument(r.Context(), id, kind)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(doc)
	}
}

func versionedTransitionHandler(do func(r *http.Request, id uuid.UUID, version int64) (*visit.Visit, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
			return
		}

		var req VersionedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		v, err := do(r, id, req.Version)
		if err != nil {
			handleVisitError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toVisitResponse(v))
	}
}

func handleVisitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, visit.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, visit.ErrVisitNotFound):
		writeError(w, http.StatusNotFound, "visit_not_found", err.Error())
	case errors.Is(err, visit.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, visit.ErrVersionConflict):
		writeError(w, http.StatusConflict, "version_conflict", err.Error())
	case errors.Is(err, visit.ErrNotPaid):
		writeError(w, http.StatusConflict, "visit_not_paid", err.Error())
	case errors.Is(err, visit.ErrNoTestOrder),
		errors.Is(err, visit.ErrOrderTextRequired):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary failure, please try again shortly")
	}
}
