package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirclinic/clinic-core/internal/config"
	"github.com/mirclinic/clinic-core/internal/observability/metrics"
	redisclient "github.com/mirclinic/clinic-core/internal/redis"
	"github.com/mirclinic/clinic-core/internal/schedule"
)

var (
	ErrConsentRequired  = errors.New("consent to data processing is required")
	ErrDateSlotRequired = errors.New("date and slot are required for a reservation")
	ErrIdentityRequired = errors.New("an account or a name and contact is required")
	ErrUnknownSlot      = errors.New("slot is not bookable on that date")
	ErrSlotFull         = errors.New("slot is at capacity")
	ErrSlotBeingBooked  = errors.New("slot is currently being booked, please retry")
)

// ConflictError reports that the requester already holds an active
// reservation. The caller surfaces the existing record to the requester
// instead of resolving the conflict silently.
type ConflictError struct {
	ExistingID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("an active reservation already exists: %s", e.ExistingID)
}

// ChangeNotifier fans a collection change out to live station views.
type ChangeNotifier interface {
	Notify(ctx context.Context, collection string)
}

type Service struct {
	repo    Repository
	locker  redisclient.Locker
	cal     schedule.Calendar
	cfg     config.Config
	metrics *metrics.BookingMetrics
	changes ChangeNotifier
}

func NewService(repo Repository, locker redisclient.Locker, cal schedule.Calendar, cfg config.Config, m *metrics.BookingMetrics, changes ChangeNotifier) *Service {
	return &Service{
		repo:    repo,
		locker:  locker,
		cal:     cal,
		cfg:     cfg,
		metrics: m,
		changes: changes,
	}
}

type CreateInput struct {
	AccountID    *string
	Name         string
	Contact      string
	Date         time.Time
	Slot         string
	Note         string
	ConsentGiven bool
	Type         Type
}

// Create validates and persists a new submission. For type "reservation" the
// duplicate guard and the capacity check both run, and the capacity check
// plus insert execute inside the per-slot lock so concurrent requesters
// cannot each take the last unit. The guard read is only a fast path for a
// friendly conflict response; identity uniqueness is enforced by the store's
// partial unique indexes, so two racing Creates for the same identity cannot
// both land even when they target different slots.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Reservation, error) {
	if !in.ConsentGiven {
		return nil, ErrConsentRequired
	}
	if in.Type == "" {
		in.Type = TypeReservation
	}

	rec := &Reservation{
		AccountID:    in.AccountID,
		Name:         in.Name,
		Contact:      in.Contact,
		Note:         in.Note,
		ConsentGiven: true,
		Type:         in.Type,
	}

	if in.Type == TypeInquiry {
		created, err := s.repo.Create(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("create inquiry: %w", err)
		}
		s.notify(ctx)
		return created, nil
	}

	if in.Date.IsZero() || in.Slot == "" {
		return nil, ErrDateSlotRequired
	}
	if in.AccountID == nil && (in.Name == "" || in.Contact == "") {
		return nil, ErrIdentityRequired
	}

	date := dayOf(in.Date)
	if !s.cal.HasSlot(date, in.Slot) {
		return nil, ErrUnknownSlot
	}

	if err := s.checkDuplicate(ctx, in.AccountID, in.Name, in.Contact, uuid.Nil); err != nil {
		s.metrics.ObserveBooking("conflict")
		return nil, err
	}

	rec.Date = date
	rec.Slot = in.Slot

	var created *Reservation

	err := s.locker.WithSlotLock(ctx, date.Format(schedule.DateLayout), in.Slot, func(lockCtx context.Context) error {
		// Re-check capacity inside the critical section
		n, err := s.repo.CountActiveForSlot(lockCtx, date, in.Slot)
		if err != nil {
			return fmt.Errorf("count slot bookings: %w", err)
		}
		if n >= s.cfg.SlotCapacity {
			return ErrSlotFull
		}

		created, err = s.repo.Create(lockCtx, rec)
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.ObserveBooking("contended")
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotFull) {
			s.metrics.ObserveBooking("capacity")
		}
		if errors.Is(err, ErrDuplicateIdentity) {
			s.metrics.ObserveBooking("conflict")
			return nil, s.conflictFor(ctx, in.AccountID, in.Name, in.Contact, uuid.Nil)
		}
		return nil, err
	}

	s.metrics.ObserveBooking("created")
	s.notify(ctx)
	return created, nil
}

// Modify overwrites date, slot and note of an existing record. Identity and
// ownership fields are preserved. Unlike the portal this service grew out
// of, the edit path re-runs the duplicate guard (excluding the edited
// record) and re-checks capacity whenever the target slot changes.
func (s *Service) Modify(ctx context.Context, id uuid.UUID, newDate time.Time, newSlot, newNote string) (*Reservation, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	if existing.Type == TypeInquiry {
		updated, err := s.repo.UpdateBooking(ctx, id, existing.Date, existing.Slot, newNote)
		if err != nil {
			return nil, fmt.Errorf("update inquiry: %w", err)
		}
		s.notify(ctx)
		return updated, nil
	}

	if newDate.IsZero() || newSlot == "" {
		return nil, ErrDateSlotRequired
	}

	date := dayOf(newDate)
	if !s.cal.HasSlot(date, newSlot) {
		return nil, ErrUnknownSlot
	}

	if err := s.checkDuplicate(ctx, existing.AccountID, existing.Name, existing.Contact, existing.ID); err != nil {
		s.metrics.ObserveBooking("conflict")
		return nil, err
	}

	// Same slot: only the note can change, no capacity concern.
	if date.Equal(dayOf(existing.Date)) && newSlot == existing.Slot {
		updated, err := s.repo.UpdateBooking(ctx, id, date, newSlot, newNote)
		if err != nil {
			return nil, fmt.Errorf("update reservation: %w", err)
		}
		s.notify(ctx)
		return updated, nil
	}

	var updated *Reservation

	err = s.locker.WithSlotLock(ctx, date.Format(schedule.DateLayout), newSlot, func(lockCtx context.Context) error {
		n, err := s.repo.CountActiveForSlot(lockCtx, date, newSlot)
		if err != nil {
			return fmt.Errorf("count slot bookings: %w", err)
		}
		if n >= s.cfg.SlotCapacity {
			return ErrSlotFull
		}

		updated, err = s.repo.UpdateBooking(lockCtx, id, date, newSlot, newNote)
		if err != nil {
			return fmt.Errorf("update reservation: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			s.metrics.ObserveBooking("contended")
			return nil, ErrSlotBeingBooked
		}
		if errors.Is(err, ErrSlotFull) {
			s.metrics.ObserveBooking("capacity")
		}
		if errors.Is(err, ErrDuplicateIdentity) {
			s.metrics.ObserveBooking("conflict")
			return nil, s.conflictFor(ctx, existing.AccountID, existing.Name, existing.Contact, existing.ID)
		}
		return nil, err
	}

	s.notify(ctx)
	return updated, nil
}

// Confirm moves a new reservation to confirmed. Confirming twice is a no-op.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}
	if existing.Status == StatusConfirmed {
		return existing, nil
	}

	updated, err := s.repo.UpdateStatus(ctx, id, StatusNew, StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}

	s.notify(ctx)
	return updated, nil
}

// Cancel removes the record permanently. No soft delete, no retained history.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return err
		}
		return fmt.Errorf("delete reservation: %w", err)
	}

	s.metrics.ObserveBooking("cancelled")
	s.notify(ctx)
	return nil
}

// Availability returns the day's slot sequence annotated with booked counts.
func (s *Service) Availability(ctx context.Context, date time.Time) ([]schedule.SlotAvailability, error) {
	day := dayOf(date)
	slots := s.cal.SlotsFor(day)
	if len(slots) == 0 {
		return []schedule.SlotAvailability{}, nil
	}

	booked, err := s.repo.ListActiveSlotsByDate(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}

	return schedule.Annotate(slots, schedule.Tally(booked), s.cfg.SlotCapacity), nil
}

// ListByDate returns the day's records for the appointment-list view.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]Reservation, error) {
	result, err := s.repo.ListByDate(ctx, dayOf(date))
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return result, nil
}

// checkDuplicate runs the two sequential existence checks: by account
// reference across any date, then by exact (name, contact) match across any
// date. The second check covers guests and the same person booking under a
// different account.
func (s *Service) checkDuplicate(ctx context.Context, accountID *string, name, contact string, exclude uuid.UUID) error {
	if accountID != nil && *accountID != "" {
		existing, err := s.repo.FindActiveByAccount(ctx, *accountID, exclude)
		if err != nil && !errors.Is(err, ErrReservationNotFound) {
			return fmt.Errorf("check account reservations: %w", err)
		}
		if existing != nil {
			return &ConflictError{ExistingID: existing.ID}
		}
	}

	if name != "" && contact != "" {
		existing, err := s.repo.FindActiveByNameContact(ctx, name, contact, exclude)
		if err != nil && !errors.Is(err, ErrReservationNotFound) {
			return fmt.Errorf("check name/contact reservations: %w", err)
		}
		if existing != nil {
			return &ConflictError{ExistingID: existing.ID}
		}
	}

	return nil
}

// conflictFor resolves the record that won an insert race so the caller can
// surface it. If the winner is already gone again, the conflict is reported
// without a reference.
func (s *Service) conflictFor(ctx context.Context, accountID *string, name, contact string, exclude uuid.UUID) error {
	if err := s.checkDuplicate(ctx, accountID, name, contact, exclude); err != nil {
		return err
	}
	return &ConflictError{}
}

func (s *Service) notify(ctx context.Context) {
	if s.changes == nil {
		return
	}
	s.changes.Notify(ctx, Collection)
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
