package schedule

import (
	"fmt"
	"time"

	"github.com/mirclinic/clinic-core/internal/config"
)

// DateLayout is the wire format for calendar days.
const DateLayout = "2006-01-02"

// Calendar generates the bookable slot sequence for a given day. Output is a
// pure function of the date and the clinic's configured hours: the weekly
// closure day yields no slots, the partial day closes early, and on ordinary
// days slots starting inside the break window are omitted.
type Calendar struct {
	openMin         int
	closeMin        int
	partialCloseMin int
	breakStartMin   int
	breakEndMin     int
	intervalMin     int
	closedDay       time.Weekday
	partialDay      time.Weekday
}

func NewCalendar(cfg config.Config) (Calendar, error) {
	open, err := parseClock(cfg.OpenTime)
	if err != nil {
		return Calendar{}, fmt.Errorf("open time: %w", err)
	}
	close_, err := parseClock(cfg.CloseTime)
	if err != nil {
		return Calendar{}, fmt.Errorf("close time: %w", err)
	}
	partialClose, err := parseClock(cfg.PartialCloseTime)
	if err != nil {
		return Calendar{}, fmt.Errorf("partial close time: %w", err)
	}
	breakStart, err := parseClock(cfg.BreakStart)
	if err != nil {
		return Calendar{}, fmt.Errorf("break start: %w", err)
	}
	breakEnd, err := parseClock(cfg.BreakEnd)
	if err != nil {
		return Calendar{}, fmt.Errorf("break end: %w", err)
	}

	interval := int(cfg.SlotInterval.Minutes())
	if interval <= 0 {
		return Calendar{}, fmt.Errorf("slot interval must be positive, got %s", cfg.SlotInterval)
	}
	if open >= close_ {
		return Calendar{}, fmt.Errorf("open %s must precede close %s", cfg.OpenTime, cfg.CloseTime)
	}
	if breakStart > breakEnd {
		return Calendar{}, fmt.Errorf("break start %s must not follow break end %s", cfg.BreakStart, cfg.BreakEnd)
	}

	return Calendar{
		openMin:         open,
		closeMin:        close_,
		partialCloseMin: partialClose,
		breakStartMin:   breakStart,
		breakEndMin:     breakEnd,
		intervalMin:     interval,
		closedDay:       cfg.ClosedWeekday,
		partialDay:      cfg.PartialWeekday,
	}, nil
}

// SlotsFor returns the ordered slot start times ("HH:MM") for the given date.
// Empty on the weekly closure day.
func (c Calendar) SlotsFor(date time.Time) []string {
	wd := date.Weekday()
	if wd == c.closedDay {
		return nil
	}

	closeMin := c.closeMin
	applyBreak := true
	if wd == c.partialDay {
		closeMin = c.partialCloseMin
		applyBreak = false
	}

	var slots []string
	for m := c.openMin; m < closeMin; m += c.intervalMin {
		// Break window excludes its start boundary, not its end
		if applyBreak && m >= c.breakStartMin && m < c.breakEndMin {
			continue
		}
		slots = append(slots, formatClock(m))
	}
	return slots
}

// HasSlot reports whether slot is a bookable start time on date.
func (c Calendar) HasSlot(date time.Time, slot string) bool {
	for _, s := range c.SlotsFor(date) {
		if s == slot {
			return true
		}
	}
	return false
}

func parseClock(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("parse %q as HH:MM: %w", v, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
