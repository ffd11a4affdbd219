package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

const reservationColumns = `id, account_id, name, contact, date, slot, note, consent_given, type, status, created_at, updated_at`

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation
	var accountID *string
	var date *time.Time
	var slot *string

	err := row.Scan(
		&r.ID,
		&accountID,
		&r.Name,
		&r.Contact,
		&date,
		&slot,
		&r.Note,
		&r.ConsentGiven,
		&r.Type,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}

	r.AccountID = accountID
	if date != nil {
		r.Date = *date
	}
	if slot != nil {
		r.Slot = *slot
	}
	return &r, nil
}

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *PgRepository) FindActiveByAccount(ctx context.Context, accountID string, exclude uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE account_id = $1
		  AND status IN ('new', 'confirmed')
		  AND id <> $2
		LIMIT 1
	`, accountID, exclude)
	return scanReservation(row)
}

func (r *PgRepository) FindActiveByNameContact(ctx context.Context, name, contact string, exclude uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE name = $1
		  AND contact = $2
		  AND status IN ('new', 'confirmed')
		  AND id <> $3
		LIMIT 1
	`, name, contact, exclude)
	return scanReservation(row)
}

func (r *PgRepository) CountActiveForSlot(ctx context.Context, date time.Time, slot string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM reservations
		WHERE date = $1
		  AND slot = $2
		  AND type = 'reservation'
		  AND status IN ('new', 'confirmed')
	`, date, slot).Scan(&n)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *PgRepository) ListActiveSlotsByDate(ctx context.Context, date time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT slot
		FROM reservations
		WHERE date = $1
		  AND slot IS NOT NULL
		  AND type = 'reservation'
		  AND status IN ('new', 'confirmed')
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *PgRepository) ListByDate(ctx context.Context, date time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reservationColumns+`
		FROM reservations
		WHERE date = $1
		ORDER BY slot ASC, created_at ASC
	`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}
	return result, rows.Err()
}

func (r *PgRepository) Create(ctx context.Context, res *Reservation) (*Reservation, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservations (id, account_id, name, contact, date, slot, note, consent_given, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'new', now(), now())
		RETURNING `+reservationColumns+`
	`, id, res.AccountID, res.Name, res.Contact, nullableDate(res.Date), nullableString(res.Slot), res.Note, res.ConsentGiven, res.Type)

	created, err := scanReservation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateBooking(ctx context.Context, id uuid.UUID, date time.Time, slot, note string) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reservations
		SET date = $2,
		    slot = $3,
		    note = $4,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+reservationColumns+`
	`, id, nullableDate(date), nullableString(slot), note)

	updated, err := scanReservation(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateIdentity
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+reservationColumns+`
	`, id, to, from)

	return scanReservation(row)
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM reservations
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrReservationNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
