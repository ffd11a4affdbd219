package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrDuplicateIdentity is the store rejecting an insert that would give
	// an identity a second active reservation. The partial unique indexes on
	// (account_id) and (name, contact) are the authority for this invariant;
	// the service's guard read is only a fast path.
	ErrDuplicateIdentity = errors.New("an active reservation already exists for this identity")
)

// Repository contains all DB interactions needed by the service.
// The FindActive* lookups power the duplicate guard and are filtered to
// status in (new, confirmed); exclude lets the edit path skip the record
// being edited (pass uuid.Nil for none).
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	FindActiveByAccount(ctx context.Context, accountID string, exclude uuid.UUID) (*Reservation, error)
	FindActiveByNameContact(ctx context.Context, name, contact string, exclude uuid.UUID) (*Reservation, error)

	// Capacity reads
	CountActiveForSlot(ctx context.Context, date time.Time, slot string) (int, error)
	ListActiveSlotsByDate(ctx context.Context, date time.Time) ([]string, error)

	// Station views
	ListByDate(ctx context.Context, date time.Time) ([]Reservation, error)

	// Mutations
	Create(ctx context.Context, r *Reservation) (*Reservation, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, date time.Time, slot, note string) (*Reservation, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Reservation, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
