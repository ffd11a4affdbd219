package visit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound = errors.New("patient not found")
	ErrVisitNotFound   = errors.New("visit not found")
)

// Repository contains all DB interactions needed by the service. Every
// mutation takes the caller's version and updates only when both the version
// and the expected current status still match, returning ErrVisitNotFound on
// zero rows; the service disambiguates stale-version from missing-record.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)

	CreateVisit(ctx context.Context, patientID uuid.UUID, patientName string, intakeAt time.Time) (*Visit, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)

	// Station views, intake order ascending
	ListByStatuses(ctx context.Context, statuses []Status) ([]Visit, error)

	// Primary-status transitions (compare-and-swap on id, version, status)
	StartConsulting(ctx context.Context, id uuid.UUID, version int64, startedAt time.Time) (*Visit, error)
	ForwardToTreatment(ctx context.Context, id uuid.UUID, version int64, notes ClinicalNotes) (*Visit, error)
	CompleteTreatment(ctx context.Context, id uuid.UUID, version int64) (*Visit, error)
	RecordPayment(ctx context.Context, id uuid.UUID, version int64, consultationFee, testFee, totalDue int64, paidAt time.Time) (*Visit, error)

	// Secondary test-tracking flag
	SetTestOrder(ctx context.Context, id uuid.UUID, version int64, order string) (*Visit, error)
	SetTestResult(ctx context.Context, id uuid.UUID, version int64, result string, status TestStatus) (*Visit, error)
}
