package reservation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirclinic/clinic-core/internal/config"
	redisclient "github.com/mirclinic/clinic-core/internal/redis"
	"github.com/mirclinic/clinic-core/internal/schedule"
)

type fakeRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Reservation
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*Reservation)}
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) FindActiveByAccount(_ context.Context, accountID string, exclude uuid.UUID) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == exclude || !r.Active() {
			continue
		}
		if r.AccountID != nil && *r.AccountID == accountID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (f *fakeRepo) FindActiveByNameContact(_ context.Context, name, contact string, exclude uuid.UUID) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.ID == exclude || !r.Active() {
			continue
		}
		if r.Name == name && r.Contact == contact {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrReservationNotFound
}

func (f *fakeRepo) CountActiveForSlot(_ context.Context, date time.Time, slot string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.records {
		if r.Type == TypeReservation && r.Active() && r.Date.Equal(date) && r.Slot == slot {
			n++
		}
	}
	return n, nil
}

func (f *fakeRepo) ListActiveSlotsByDate(_ context.Context, date time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slots []string
	for _, r := range f.records {
		if r.Type == TypeReservation && r.Active() && r.Date.Equal(date) {
			slots = append(slots, r.Slot)
		}
	}
	return slots, nil
}

func (f *fakeRepo) ListByDate(_ context.Context, date time.Time) ([]Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Reservation
	for _, r := range f.records {
		if r.Date.Equal(date) {
			out = append(out, *r)
		}
	}
	return out, nil
}

// activeIdentityTaken mirrors the store's partial unique indexes: at most one
// active reservation per account and per (name, contact). Callers must hold
// f.mu.
func (f *fakeRepo) activeIdentityTaken(r *Reservation) bool {
	if r.Type != TypeReservation {
		return false
	}
	for _, existing := range f.records {
		if existing.Type != TypeReservation || !existing.Active() {
			continue
		}
		if r.AccountID != nil && existing.AccountID != nil && *r.AccountID == *existing.AccountID {
			return true
		}
		if existing.Name == r.Name && existing.Contact == r.Contact {
			return true
		}
	}
	return false
}

func (f *fakeRepo) Create(_ context.Context, r *Reservation) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.activeIdentityTaken(r) {
		return nil, ErrDuplicateIdentity
	}
	cp := *r
	cp.ID = uuid.New()
	cp.Status = StatusNew
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.records[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *fakeRepo) UpdateBooking(_ context.Context, id uuid.UUID, date time.Time, slot, note string) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	r.Date = date
	r.Slot = slot
	r.Note = note
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) (*Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok || r.Status != from {
		return nil, ErrReservationNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.records[id]; !ok {
		return ErrReservationNotFound
	}
	delete(f.records, id)
	return nil
}

type notifyRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (n *notifyRecorder) Notify(_ context.Context, collection string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, collection)
}

func (n *notifyRecorder) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func testConfig() config.Config {
	return config.Config{
		OpenTime:         "08:30",
		CloseTime:        "17:30",
		PartialCloseTime: "12:30",
		BreakStart:       "13:00",
		BreakEnd:         "14:00",
		SlotInterval:     30 * time.Minute,
		ClosedWeekday:    time.Sunday,
		PartialWeekday:   time.Saturday,
		SlotCapacity:     2,
	}
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *notifyRecorder) {
	t.Helper()

	cfg := testConfig()
	cal, err := schedule.NewCalendar(cfg)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := redisclient.NewRedisSlotLocker(client, 5*time.Second)

	repo := newFakeRepo()
	notifier := &notifyRecorder{}
	return NewService(repo, locker, cal, cfg, nil, notifier), repo, notifier
}

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func validInput() CreateInput {
	return CreateInput{
		Name:         "Hong Gildong",
		Contact:      "010-1234-5678",
		Date:         monday,
		Slot:         "09:00",
		ConsentGiven: true,
		Type:         TypeReservation,
	}
}

func TestCreateReservation(t *testing.T) {
	svc, _, notifier := newTestService(t)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, StatusNew, created.Status)
	assert.Equal(t, "09:00", created.Slot)
	assert.True(t, created.Date.Equal(monday))
	assert.Equal(t, 1, notifier.count())
}

func TestCreateRequiresConsent(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validInput()
	in.ConsentGiven = false

	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrConsentRequired)
}

func TestCreateReservationRequiresDateAndSlot(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validInput()
	in.Date = time.Time{}
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrDateSlotRequired)

	in = validInput()
	in.Slot = ""
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrDateSlotRequired)
}

func TestCreateRejectsUnknownSlot(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validInput()
	in.Slot = "13:00" // inside the break window
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnknownSlot)

	in = validInput()
	in.Date = monday.AddDate(0, 0, 6) // Sunday
	_, err = svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrUnknownSlot)
}

func TestCreateInquirySkipsDateAndSlot(t *testing.T) {
	svc, _, _ := newTestService(t)

	created, err := svc.Create(context.Background(), CreateInput{
		Name:         "Hong Gildong",
		Contact:      "010-1234-5678",
		Note:         "question about pricing",
		ConsentGiven: true,
		Type:         TypeInquiry,
	})
	require.NoError(t, err)
	assert.Equal(t, TypeInquiry, created.Type)
	assert.True(t, created.Date.IsZero())
	assert.Empty(t, created.Slot)
}

func TestCreateRejectsDuplicateIdentity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// Same name and contact, different day: still blocked.
	in := validInput()
	in.Date = monday.AddDate(0, 0, 1)
	in.Slot = "10:00"

	_, err = svc.Create(ctx, in)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingID)
}

func TestCreateRejectsDuplicateAccount(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	account := "account-42"

	in := validInput()
	in.AccountID = &account
	first, err := svc.Create(ctx, in)
	require.NoError(t, err)

	in2 := validInput()
	in2.AccountID = &account
	in2.Name = "Different Name"
	in2.Contact = "010-9999-0000"
	in2.Slot = "10:00"

	_, err = svc.Create(ctx, in2)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, first.ID, conflict.ExistingID)
}

func TestCreateEnforcesSlotCapacity(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		in := validInput()
		in.Name = "Patient " + string(rune('A'+i))
		in.Contact = "010-0000-000" + string(rune('0'+i))
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	in := validInput()
	in.Name = "Patient C"
	in.Contact = "010-0000-0002"
	_, err := svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestCreateAnonymousRequiresNameAndContact(t *testing.T) {
	svc, _, _ := newTestService(t)

	in := validInput()
	in.Name = ""
	_, err := svc.Create(context.Background(), in)
	assert.ErrorIs(t, err, ErrIdentityRequired)
}

func TestModifyReRunsDuplicateGuardExcludingSelf(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	// Moving your own reservation must not trip the guard on itself.
	updated, err := svc.Modify(ctx, created.ID, monday, "10:00", "moved")
	require.NoError(t, err)
	assert.Equal(t, "10:00", updated.Slot)
	assert.Equal(t, "moved", updated.Note)
}

func TestModifyChecksCapacityOnTargetSlot(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Fill 10:00 to capacity with other people.
	for i := 0; i < 2; i++ {
		in := validInput()
		in.Name = "Other " + string(rune('A'+i))
		in.Contact = "010-7777-000" + string(rune('0'+i))
		in.Slot = "10:00"
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Modify(ctx, created.ID, monday, "10:00", "")
	assert.ErrorIs(t, err, ErrSlotFull)
}

func TestModifySameSlotUpdatesNoteOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.Modify(ctx, created.ID, monday, "09:00", "new note")
	require.NoError(t, err)
	assert.Equal(t, "new note", updated.Note)
	assert.Equal(t, "09:00", updated.Slot)
}

func TestModifyUnknownReservation(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Modify(context.Background(), uuid.New(), monday, "09:00", "")
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestConfirmIsIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)

	again, err := svc.Confirm(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, again.Status)
}

func TestCancelDeletesRecord(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, created.ID))

	_, err = repo.GetByID(ctx, created.ID)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	// Cancelled identity can book again.
	_, err = svc.Create(ctx, validInput())
	assert.NoError(t, err)
}

func TestCancelUnknownReservation(t *testing.T) {
	svc, _, _ := newTestService(t)
	assert.ErrorIs(t, svc.Cancel(context.Background(), uuid.New()), ErrReservationNotFound)
}

func TestAvailabilityAnnotatesBookedCounts(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		in := validInput()
		in.Name = "Patient " + string(rune('A'+i))
		in.Contact = "010-0000-000" + string(rune('0'+i))
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	slots, err := svc.Availability(ctx, monday)
	require.NoError(t, err)
	require.NotEmpty(t, slots)

	byName := make(map[string]int)
	for i, s := range slots {
		byName[s.Slot] = i
	}

	nineAM := slots[byName["09:00"]]
	assert.Equal(t, 2, nineAM.Booked)
	assert.True(t, nineAM.AtCapacity)

	tenAM := slots[byName["10:00"]]
	assert.Equal(t, 0, tenAM.Booked)
	assert.False(t, tenAM.AtCapacity)
}

func TestAvailabilityClosedDay(t *testing.T) {
	svc, _, _ := newTestService(t)

	slots, err := svc.Availability(context.Background(), monday.AddDate(0, 0, 6))
	require.NoError(t, err)
	assert.Empty(t, slots)
}

// gatedRepo delays the first two duplicate-guard reads until both have
// started, so both requesters observe an empty store before either inserts.
type gatedRepo struct {
	*fakeRepo
	mu      sync.Mutex
	gated   int
	waiting int
	release chan struct{}
}

func (g *gatedRepo) FindActiveByNameContact(ctx context.Context, name, contact string, exclude uuid.UUID) (*Reservation, error) {
	g.mu.Lock()
	if g.gated > 0 {
		g.gated--
		g.waiting++
		if g.waiting == 2 {
			close(g.release)
		}
		g.mu.Unlock()
		<-g.release
	} else {
		g.mu.Unlock()
	}
	return g.fakeRepo.FindActiveByNameContact(ctx, name, contact, exclude)
}

func TestConcurrentCreatesForSameIdentity(t *testing.T) {
	cfg := testConfig()
	cal, err := schedule.NewCalendar(cfg)
	require.NoError(t, err)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	locker := redisclient.NewRedisSlotLocker(client, 5*time.Second)

	repo := &gatedRepo{fakeRepo: newFakeRepo(), gated: 2, release: make(chan struct{})}
	svc := NewService(repo, locker, cal, cfg, nil, nil)

	// Different slots, same identity: the per-slot lock cannot arbitrate,
	// only the store's uniqueness rule can.
	inA := validInput()
	inB := validInput()
	inB.Slot = "10:00"

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, in := range []CreateInput{inA, inB} {
		wg.Add(1)
		go func(i int, in CreateInput) {
			defer wg.Done()
			_, errs[i] = svc.Create(context.Background(), in)
		}(i, in)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range errs {
		var conflict *ConflictError
		switch {
		case err == nil:
			successes++
		case errors.As(err, &conflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, conflicts)

	active := 0
	for _, r := range repo.fakeRepo.records {
		if r.Active() {
			active++
		}
	}
	assert.Equal(t, 1, active)
}

func TestConcurrentCreatesNeverExceedCapacity(t *testing.T) {
	svc, repo, _ := newTestService(t)
	ctx := context.Background()

	const attempts = 20
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.Name = "Racer"
			in.Contact = "010-8888-" + string(rune('0'+i%10)) + string(rune('0'+i/10)) + "00"
			// Unique identity per goroutine so only capacity can reject
			in.Name = in.Name + in.Contact
			_, _ = svc.Create(ctx, in)
		}(i)
	}
	wg.Wait()

	n, err := repo.CountActiveForSlot(ctx, monday, "09:00")
	require.NoError(t, err)
	assert.LessOrEqual(t, n, 2)
}
