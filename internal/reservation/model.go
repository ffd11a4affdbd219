package reservation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusNew       Status = "new"
	StatusConfirmed Status = "confirmed"
)

type Type string

const (
	TypeReservation Type = "reservation"
	TypeInquiry     Type = "inquiry"
)

// Collection is the change-feed topic for reservation records.
const Collection = "reservations"

// Reservation is a patient-submitted booking or inquiry. Identity is either
// an authenticated account reference or the (Name, Contact) pair for guests.
// Cancellation is a hard delete; there is no cancelled status.
type Reservation struct {
	ID           uuid.UUID
	AccountID    *string
	Name         string
	Contact      string
	Date         time.Time // calendar day; zero for inquiries
	Slot         string    // "HH:MM"; empty for inquiries
	Note         string
	ConsentGiven bool
	Type         Type
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the record blocks another booking by the same
// identity.
func (r *Reservation) Active() bool {
	return r.Status == StatusNew || r.Status == StatusConfirmed
}
