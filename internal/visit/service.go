package visit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mirclinic/clinic-core/internal/config"
	"github.com/mirclinic/clinic-core/internal/observability/metrics"
)

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrVersionConflict   = errors.New("visit was modified by another station, reload and retry")
	ErrNotPaid           = errors.New("document issuance requires a paid visit")
	ErrNoTestOrder       = errors.New("no test order exists on the visit")
	ErrOrderTextRequired = errors.New("test order text is required")
)

// DocumentKind names the printable artifacts issued from a paid visit.
type DocumentKind string

const (
	DocPrescription DocumentKind = "prescription"
	DocReceipt      DocumentKind = "receipt"
	DocCertificate  DocumentKind = "certificate"
	DocReferral     DocumentKind = "referral"
)

func ParseDocumentKind(s string) (DocumentKind, error) {
	switch DocumentKind(s) {
	case DocPrescription, DocReceipt, DocCertificate, DocReferral:
		return DocumentKind(s), nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// DocumentRenderer produces a printable artifact from a paid visit. The
// template engine behind it is an external collaborator.
type DocumentRenderer interface {
	Render(ctx context.Context, v *Visit, kind DocumentKind) ([]byte, error)
}

// ChangeNotifier fans a collection change out to live station views.
type ChangeNotifier interface {
	Notify(ctx context.Context, collection string)
}

type Service struct {
	repo     Repository
	cfg      config.Config
	renderer DocumentRenderer
	metrics  *metrics.BookingMetrics
	changes  ChangeNotifier
	now      func() time.Time
}

func NewService(repo Repository, cfg config.Config, renderer DocumentRenderer, m *metrics.BookingMetrics, changes ChangeNotifier) *Service {
	return &Service{
		repo:     repo,
		cfg:      cfg,
		renderer: renderer,
		metrics:  m,
		changes:  changes,
		now:      time.Now,
	}
}

// Register creates a visit at intake after resolving the patient in the
// directory. The new record starts at reception.
func (s *Service) Register(ctx context.Context, patientID uuid.UUID) (*Visit, error) {
	patient, err := s.repo.GetPatientByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	v, err := s.repo.CreateVisit(ctx, patient.ID, patient.Name, s.now())
	if err != nil {
		return nil, fmt.Errorf("create visit: %w", err)
	}

	s.notify(ctx)
	return v, nil
}

// Call moves a waiting patient into the consulting room and stamps the
// consultation start time.
func (s *Service) Call(ctx context.Context, id uuid.UUID, version int64) (*Visit, error) {
	if _, err := s.guard(ctx, id, version, StatusConsulting); err != nil {
		return nil, err
	}

	v, err := s.repo.StartConsulting(ctx, id, version, s.now())
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "start consulting")
	}

	s.metrics.ObserveTransition(string(StatusReception), string(StatusConsulting))
	s.notify(ctx)
	return v, nil
}

// SendForward saves the clinical notes entered at the consulting station and
// moves the visit to treatment in the same mutation.
func (s *Service) SendForward(ctx context.Context, id uuid.UUID, version int64, notes ClinicalNotes) (*Visit, error) {
	if _, err := s.guard(ctx, id, version, StatusTreatment); err != nil {
		return nil, err
	}

	v, err := s.repo.ForwardToTreatment(ctx, id, version, notes)
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "forward to treatment")
	}

	s.metrics.ObserveTransition(string(StatusConsulting), string(StatusTreatment))
	s.notify(ctx)
	return v, nil
}

// CompleteTreatment queues the visit for billing.
func (s *Service) CompleteTreatment(ctx context.Context, id uuid.UUID, version int64) (*Visit, error) {
	if _, err := s.guard(ctx, id, version, StatusCompleted); err != nil {
		return nil, err
	}

	v, err := s.repo.CompleteTreatment(ctx, id, version)
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "complete treatment")
	}

	s.metrics.ObserveTransition(string(StatusTreatment), string(StatusCompleted))
	s.notify(ctx)
	return v, nil
}

// OrderTest flags a diagnostic test on the visit. The flag is orthogonal to
// the primary status and never blocks its advancement.
func (s *Service) OrderTest(ctx context.Context, id uuid.UUID, version int64, order string) (*Visit, error) {
	if order == "" {
		return nil, ErrOrderTextRequired
	}

	v, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if v.Status == StatusPaid {
		return nil, ErrInvalidTransition
	}

	updated, err := s.repo.SetTestOrder(ctx, id, version, order)
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "set test order")
	}

	s.notify(ctx)
	return updated, nil
}

// RecordTestResult saves the result text. A non-empty result completes the
// test order automatically.
func (s *Service) RecordTestResult(ctx context.Context, id uuid.UUID, version int64, result string) (*Visit, error) {
	v, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if !v.HasTestOrder() {
		return nil, ErrNoTestOrder
	}

	status := TestOrdered
	if result != "" {
		status = TestCompleted
	}

	updated, err := s.repo.SetTestResult(ctx, id, version, result, status)
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "set test result")
	}

	s.notify(ctx)
	return updated, nil
}

// ProcessPayment settles a visit awaiting payment: the flat consultation fee
// plus the test fee if and only if a test order exists. Irreversible.
func (s *Service) ProcessPayment(ctx context.Context, id uuid.UUID, version int64) (*Visit, error) {
	v, err := s.guard(ctx, id, version, StatusPaid)
	if err != nil {
		return nil, err
	}

	consultationFee := s.cfg.ConsultationFee
	var testFee int64
	if v.HasTestOrder() {
		testFee = s.cfg.TestFee
	}
	total := consultationFee + testFee

	updated, err := s.repo.RecordPayment(ctx, id, version, consultationFee, testFee, total, s.now())
	if err != nil {
		return nil, s.mapRace(ctx, id, err, "record payment")
	}

	s.metrics.ObserveTransition(string(StatusCompleted), string(StatusPaid))
	s.notify(ctx)
	return updated, nil
}

// IssueDocument renders a printable artifact. Read-only; permitted only once
// the visit is paid.
func (s *Service) IssueDocument(ctx context.Context, id uuid.UUID, kind DocumentKind) ([]byte, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load visit: %w", err)
	}
	if v.Status != StatusPaid {
		return nil, ErrNotPaid
	}

	doc, err := s.renderer.Render(ctx, v, kind)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", kind, err)
	}
	return doc, nil
}

// Get returns one visit by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load visit: %w", err)
	}
	return v, nil
}

// Queue returns visits matching the given statuses in intake order.
func (s *Service) Queue(ctx context.Context, statuses []Status) ([]Visit, error) {
	visits, err := s.repo.ListByStatuses(ctx, statuses)
	if err != nil {
		return nil, fmt.Errorf("list visits: %w", err)
	}
	return visits, nil
}

// guard loads the visit and validates both the version token and the
// transition table before any mutation is attempted.
func (s *Service) guard(ctx context.Context, id uuid.UUID, version int64, to Status) (*Visit, error) {
	v, err := s.load(ctx, id, version)
	if err != nil {
		return nil, err
	}
	if !CanTransition(v.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, to)
	}
	return v, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID, version int64) (*Visit, error) {
	v, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrVisitNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load visit: %w", err)
	}
	if v.Version != version {
		return nil, ErrVersionConflict
	}
	return v, nil
}

// mapRace interprets a zero-row CAS update: if the record still exists the
// write lost a race (stale version or concurrent transition), otherwise it
// is genuinely gone.
func (s *Service) mapRace(ctx context.Context, id uuid.UUID, err error, op string) error {
	if !errors.Is(err, ErrVisitNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if _, getErr := s.repo.GetByID(ctx, id); getErr == nil {
		return ErrVersionConflict
	}
	return ErrVisitNotFound
}

func (s *Service) notify(ctx context.Context) {
	if s.changes == nil {
		return
	}
	s.changes.Notify(ctx, Collection)
}
