package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mirclinic/clinic-core/internal/config"
	"github.com/mirclinic/clinic-core/internal/db"
	"github.com/mirclinic/clinic-core/internal/schedule"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	cal, err := schedule.NewCalendar(cfg)
	if err != nil {
		log.Fatalf("calendar config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedPatients(context.Background(), pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedReservations(context.Background(), pool, cal, cfg.SlotCapacity, 14); err != nil {
		log.Fatalf("seed reservations: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, id, name, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

// seedReservations fills the next `days` open clinic days with partly booked
// slots. Never more than capacity per slot so the seeded data respects the
// same rule the booking path enforces.
func seedReservations(ctx context.Context, pool *pgxpool.Pool, cal schedule.Calendar, capacity, days int) error {
	log.Printf("seeding reservations over %d days", days)

	day := time.Now().UTC().Truncate(24 * time.Hour)
	seeded := 0

	for d := 0; d < days; d++ {
		date := day.AddDate(0, 0, d)
		slots := cal.SlotsFor(date)
		if len(slots) == 0 {
			continue
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for _, slot := range slots {
			// Leave headroom on every slot
			n := gofakeit.Number(0, capacity-1)
			for i := 0; i < n; i++ {
				status := "new"
				if gofakeit.Bool() {
					status = "confirmed"
				}
				// ON CONFLICT: the store allows one active reservation per
				// identity, and random names can collide
				tag, err := tx.Exec(ctx, `
					INSERT INTO reservations (id, account_id, name, contact, date, slot, note, consent_given, type, status, created_at, updated_at)
					VALUES ($1, NULL, $2, $3, $4, $5, $6, true, 'reservation', $7, now(), now())
					ON CONFLICT DO NOTHING
				`, uuid.New(), gofakeit.Name(), fmt.Sprintf("010-%04d-%04d", gofakeit.Number(0, 9999), gofakeit.Number(0, 9999)),
					date, slot, gofakeit.Sentence(6), status)
				if err != nil {
					_ = tx.Rollback(ctx)
					return err
				}
				seeded += int(tag.RowsAffected())
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}
	}

	log.Printf("reservations seeded: %d", seeded)
	return nil
}
