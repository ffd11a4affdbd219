package visit

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusReception  Status = "reception"
	StatusConsulting Status = "consulting"
	StatusTreatment  Status = "treatment"
	StatusTesting    Status = "testing" // queue display only, not part of the primary graph
	StatusCompleted  Status = "completed"
	StatusPaid       Status = "paid"
)

// TestStatus tracks diagnostic test orders independently of the primary
// status and never blocks its advancement.
type TestStatus string

const (
	TestNone      TestStatus = ""
	TestOrdered   TestStatus = "ordered"
	TestCompleted TestStatus = "completed"
)

// Collection is the change-feed topic for visit records.
const Collection = "visits"

// transitions is the single authoritative transition table. Every mutation
// site validates against it; an edge not listed here cannot happen. There is
// no backward edge and no cancellation edge, and paid has no exit.
var transitions = map[Status][]Status{
	StatusReception:  {StatusConsulting},
	StatusConsulting: {StatusTreatment},
	StatusTreatment:  {StatusCompleted},
	StatusCompleted:  {StatusPaid},
	StatusPaid:       {},
}

// CanTransition reports whether from → to is a sanctioned edge.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status accepts no further transition.
func Terminal(s Status) bool {
	return len(transitions[s]) == 0
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClinicalNotes are the opaque text fields entered at the consulting station.
type ClinicalNotes struct {
	ChiefComplaint string
	Diagnosis      string
	TreatmentNote  string
}

// Visit records one patient's progression through the in-clinic workflow.
// Version is the optimistic-concurrency token: every mutation is a
// compare-and-swap on (ID, Version) so concurrent station edits are detected
// instead of silently overwriting each other.
type Visit struct {
	ID          uuid.UUID
	PatientID   uuid.UUID
	PatientName string // denormalized for queue display
	Status      Status
	TestStatus  TestStatus
	TestOrder   string
	TestResult  string

	ChiefComplaint string
	Diagnosis      string
	TreatmentNote  string

	ConsultationFee int64
	TestFee         int64
	TotalDue        int64

	IntakeAt  time.Time
	StartedAt *time.Time
	PaidAt    *time.Time

	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTestOrder reports whether a diagnostic test was ordered on the visit.
// The test fee is charged if and only if this holds at payment time.
func (v *Visit) HasTestOrder() bool {
	return v.TestStatus != TestNone
}
