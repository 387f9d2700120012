package policy

import (
	"fmt"
	"strings"
	"time"
)

// window is a parsed, usable BusinessHours.
type window struct {
	startMin int
	endMin   int
	days     map[time.Weekday]bool
	loc      *time.Location
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

var defaultWeekdays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}

// parse converts the window into minutes and a weekday set. Any malformed
// part makes the whole window unusable.
func (b *BusinessHours) parse() (window, error) {
	if b == nil {
		return window{}, fmt.Errorf("business hours not set")
	}
	start, err := parseClock(b.Start)
	if err != nil {
		return window{}, fmt.Errorf("start: %w", err)
	}
	end, err := parseClock(b.End)
	if err != nil {
		return window{}, fmt.Errorf("end: %w", err)
	}
	if start >= end {
		return window{}, fmt.Errorf("start %s must be before end %s", b.Start, b.End)
	}

	w := window{startMin: start, endMin: end, days: make(map[time.Weekday]bool, 7)}
	if len(b.Weekdays) == 0 {
		for _, d := range defaultWeekdays {
			w.days[d] = true
		}
	}
	for _, name := range b.Weekdays {
		d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return window{}, fmt.Errorf("unknown weekday %q", name)
		}
		w.days[d] = true
	}

	if b.Timezone != "" {
		loc, err := time.LoadLocation(b.Timezone)
		if err != nil {
			return window{}, fmt.Errorf("timezone: %w", err)
		}
		w.loc = loc
	}
	return w, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// Clip rolls t forward to the next instant inside the business-hours window.
// Times already inside the window are returned unchanged. A nil or malformed
// window disables clipping.
func (b *BusinessHours) Clip(t time.Time) time.Time {
	w, err := b.parse()
	if err != nil {
		return t
	}
	return w.clip(t)
}

func (w window) clip(t time.Time) time.Time {
	if w.loc != nil {
		t = t.In(w.loc)
	}
	for i := 0; i < 8; i++ {
		day := t.AddDate(0, 0, i)
		if !w.days[day.Weekday()] {
			continue
		}
		y, m, d := day.Date()
		open := time.Date(y, m, d, w.startMin/60, w.startMin%60, 0, 0, day.Location())
		if i > 0 {
			return open
		}
		minute := t.Hour()*60 + t.Minute()
		switch {
		case minute < w.startMin:
			return open
		case minute < w.endMin:
			return t
		}
	}
	return t
}
