package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	redisclient "github.com/mirclinic/clinic-core/internal/redis"
	"github.com/mirclinic/clinic-core/internal/reservation"
	"github.com/mirclinic/clinic-core/internal/schedule"
)

func availabilityHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		slots, err := svc.Availability(r.Context(), date)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, slots)
	}
}

func createReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		in := reservation.CreateInput{
			AccountID:    GetAccountID(r.Context()),
			Name:         req.Name,
			Contact:      req.Contact,
			Slot:         req.Slot,
			Note:         req.Note,
			ConsentGiven: req.ConsentGiven,
			Type:         reservation.Type(req.Type),
		}
		if req.Date != "" {
			date, err := time.Parse(schedule.DateLayout, req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			in.Date = date
		}

		created, err := svc.Create(r.Context(), in)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toReservationResponse(created))
	}
}

func updateReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		var req UpdateReservationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		var date time.Time
		if req.Date != "" {
			parsed, err := time.Parse(schedule.DateLayout, req.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			date = parsed
		}

		updated, err := svc.Modify(r.Context(), id, date, req.Slot, req.Note)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(updated))
	}
}

func confirmReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		confirmed, err := svc.Confirm(r.Context(), id)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponse(confirmed))
	}
}

func cancelReservationHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r)
		if !ok {
			return
		}

		if err := svc.Cancel(r.Context(), id); err != nil {
			handleReservationError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listReservationsHandler(svc *reservation.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateParam(w, r)
		if !ok {
			return
		}

		reservations, err := svc.ListByDate(r.Context(), date)
		if err != nil {
			handleReservationError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toReservationResponses(reservations))
	}
}

func handleReservationError(w http.ResponseWriter, err error) {
	var conflict *reservation.ConflictError

	switch {
	case errors.As(err, &conflict):
		resp := ErrorResponse{
			Error:   "duplicate_reservation",
			Details: "an active reservation already exists for this identity",
		}
		if conflict.ExistingID != uuid.Nil {
			resp.ConflictWith = conflict.ExistingID.String()
		}
		writeJSON(w, http.StatusConflict, resp)
	case errors.Is(err, reservation.ErrConsentRequired),
		errors.Is(err, reservation.ErrDateSlotRequired),
		errors.Is(err, reservation.ErrIdentityRequired),
		errors.Is(err, reservation.ErrUnknownSlot):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, reservation.ErrSlotFull):
		writeError(w, http.StatusConflict, "slot_full", err.Error())
	case errors.Is(err, reservation.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, reservation.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "temporary failure, please try again shortly")
	}
}

func parseDateParam(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing_date", "date query parameter is required")
		return time.Time{}, false
	}
	date, err := time.Parse(schedule.DateLayout, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}

func parseIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "id must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}
