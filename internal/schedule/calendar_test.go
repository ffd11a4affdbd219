package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirclinic/clinic-core/internal/config"
)

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
	}
}

func mustCalendar(t *testing.T) Calendar {
	t.Helper()
	cal, err := NewCalendar(testConfig())
	require.NoError(t, err)
	return cal
}

// 2026-03-02 is a Monday.
var (
	monday   = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	saturday = time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)
	sunday   = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
)

func TestSlotsForOrdinaryDay(t *testing.T) {
	cal := mustCalendar(t)
	slots := cal.SlotsFor(monday)

	require.NotEmpty(t, slots)
	assert.Equal(t, "08:30", slots[0])
	assert.Equal(t, "17:00", slots[len(slots)-1])
	assert.Len(t, slots, 16)

	// Slots starting inside the break window are omitted, the boundaries
	// around it survive.
	assert.NotContains(t, slots, "13:00")
	assert.NotContains(t, slots, "13:30")
	assert.Contains(t, slots, "12:30")
	assert.Contains(t, slots, "14:00")
}

func TestSlotsForPartialDay(t *testing.T) {
	cal := mustCalendar(t)
	slots := cal.SlotsFor(saturday)

	require.NotEmpty(t, slots)
	assert.Equal(t, "08:30", slots[0])
	assert.Equal(t, "12:00", slots[len(slots)-1])
	assert.Len(t, slots, 8)
}

func TestSlotsForClosedDay(t *testing.T) {
	cal := mustCalendar(t)
	assert.Empty(t, cal.SlotsFor(sunday))
}

func TestSlotsForDeterministic(t *testing.T) {
	cal := mustCalendar(t)
	assert.Equal(t, cal.SlotsFor(monday), cal.SlotsFor(monday))
}

func TestSlotsAreOrderedAndUnique(t *testing.T) {
	cal := mustCalendar(t)
	slots := cal.SlotsFor(monday)

	seen := make(map[string]bool)
	for i, s := range slots {
		assert.False(t, seen[s], "duplicate slot %s", s)
		seen[s] = true
		if i > 0 {
			assert.Less(t, slots[i-1], s)
		}
	}
}

func TestHasSlot(t *testing.T) {
	cal := mustCalendar(t)

	assert.True(t, cal.HasSlot(monday, "08:30"))
	assert.True(t, cal.HasSlot(monday, "17:00"))
	assert.False(t, cal.HasSlot(monday, "17:30"))
	assert.False(t, cal.HasSlot(monday, "13:00"))
	assert.False(t, cal.HasSlot(monday, "08:15"))
	assert.False(t, cal.HasSlot(sunday, "08:30"))
	assert.False(t, cal.HasSlot(saturday, "14:00"))
}

func TestNewCalendarRejectsBadConfig(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"bad open time", func(c *config.Config) { c.OpenTime = "8h30" }},
		{"open after close", func(c *config.Config) { c.OpenTime = "18:00" }},
		{"inverted break", func(c *config.Config) { c.BreakStart = "15:00"; c.BreakEnd = "14:00" }},
		{"zero interval", func(c *config.Config) { c.SlotInterval = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			_, err := NewCalendar(cfg)
			assert.Error(t, err)
		})
	}
}
