package visit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const visitColumns = `id, patient_id, patient_name, status, test_status, test_order, test_result,
	chief_complaint, diagnosis, treatment_note,
	consultation_fee, test_fee, total_due,
	intake_at, started_at, paid_at, version, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var email *string

	err := row.Scan(
		&p.ID,
		&p.Name,
		&email,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	p.Email = email
	return &p, nil
}

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	var testStatus, testOrder, testResult *string
	var cc, dx, tx *string
	var consultFee, testFee, totalDue *int64
	var startedAt, paidAt *time.Time

	err := row.Scan(
		&v.ID,
		&v.PatientID,
		&v.PatientName,
		&v.Status,
		&testStatus,
		&testOrder,
		&testResult,
		&cc,
		&dx,
		&tx,
		&consultFee,
		&testFee,
		&totalDue,
		&v.IntakeAt,
		&startedAt,
		&paidAt,
		&v.Version,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrVisitNotFound
		}
		return nil, err
	}

	if testStatus != nil {
		v.TestStatus = TestStatus(*testStatus)
	}
	v.TestOrder = deref(testOrder)
	v.TestResult = deref(testResult)
	v.ChiefComplaint = deref(cc)
	v.Diagnosis = deref(dx)
	v.TreatmentNote = deref(tx)
	if consultFee != nil {
		v.ConsultationFee = *consultFee
	}
	if testFee != nil {
		v.TestFee = *testFee
	}
	if totalDue != nil {
		v.TotalDue = *totalDue
	}
	v.StartedAt = startedAt
	v.PaidAt = paidAt
	return &v, nil
}

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) CreateVisit(ctx context.Context, patientID uuid.UUID, patientName string, intakeAt time.Time) (*Visit, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO visits (id, patient_id, patient_name, status, intake_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, 'reception', $4, 1, now(), now())
		RETURNING `+visitColumns+`
	`, id, patientID, patientName, intakeAt)

	return scanVisit(row)
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE id = $1
	`, id)
	return scanVisit(row)
}

func (r *PgRepository) ListByStatuses(ctx context.Context, statuses []Status) ([]Visit, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = string(s)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+visitColumns+`
		FROM visits
		WHERE status IN (`+strings.Join(placeholders, ", ")+`)
		ORDER BY intake_at ASC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *v)
	}
	return result, rows.Err()
}

func (r *PgRepository) StartConsulting(ctx context.Context, id uuid.UUID, version int64, startedAt time.Time) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET status = 'consulting',
		    started_at = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND status = 'reception'
		RETURNING `+visitColumns+`
	`, id, version, startedAt)

	return scanVisit(row)
}

func (r *PgRepository) ForwardToTreatment(ctx context.Context, id uuid.UUID, version int64, notes ClinicalNotes) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET status = 'treatment',
		    chief_complaint = $3,
		    diagnosis = $4,
		    treatment_note = $5,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND status = 'consulting'
		RETURNING `+visitColumns+`
	`, id, version, notes.ChiefComplaint, notes.Diagnosis, notes.TreatmentNote)

	return scanVisit(row)
}

func (r *PgRepository) CompleteTreatment(ctx context.Context, id uuid.UUID, version int64) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET status = 'completed',
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND status = 'treatment'
		RETURNING `+visitColumns+`
	`, id, version)

	return scanVisit(row)
}

func (r *PgRepository) RecordPayment(ctx context.Context, id uuid.UUID, version int64, consultationFee, testFee, totalDue int64, paidAt time.Time) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET status = 'paid',
		    consultation_fee = $3,
		    test_fee = $4,
		    total_due = $5,
		    paid_at = $6,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND status = 'completed'
		RETURNING `+visitColumns+`
	`, id, version, consultationFee, testFee, totalDue, paidAt)

	return scanVisit(row)
}

func (r *PgRepository) SetTestOrder(ctx context.Context, id uuid.UUID, version int64, order string) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET test_status = 'ordered',
		    test_order = $3,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND status <> 'paid'
		RETURNING `+visitColumns+`
	`, id, version, order)

	return scanVisit(row)
}

func (r *PgRepository) SetTestResult(ctx context.Context, id uuid.UUID, version int64, result string, status TestStatus) (*Visit, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE visits
		SET test_result = $3,
		    test_status = $4,
		    version = version + 1,
		    updated_at = now()
		WHERE id = $1
		  AND version = $2
		  AND test_status IS NOT NULL
		RETURNING `+visitColumns+`
	`, id, version, result, string(status))

	return scanVisit(row)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
