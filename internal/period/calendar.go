package period

import (
	"fmt"
	"strings"
	"time"
)

// KeyLayout formats a window's start date into its period key.
const KeyLayout = "2006-01-02"

// Window is one service period, [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
	Key   string
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// Previous returns the window immediately before w.
func (w Window) Previous() Window {
	start := w.Start.AddDate(0, 0, -1)
	return Window{Start: start, End: w.Start, Key: start.Format(KeyLayout)}
}

// Calendar computes daily windows in a fixed location. A period opens at
// StartHour local time and lasts one calendar day, so DST transitions yield
// 23 or 25 hour windows.
type Calendar struct {
	loc       *time.Location
	startHour int
}

// NewCalendar returns a calendar for loc whose days begin at startHour.
func NewCalendar(loc *time.Location, startHour int) (Calendar, error) {
	if loc == nil {
		loc = time.Local
	}
	if startHour < 0 || startHour > 23 {
		return Calendar{}, fmt.Errorf("day start hour must be between 0 and 23, got %d", startHour)
	}
	return Calendar{loc: loc, startHour: startHour}, nil
}

// Location returns the calendar's time zone.
func (c Calendar) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Start returns the start of the period containing t.
func (c Calendar) Start(t time.Time) time.Time {
	local := t.In(c.Location())
	start := time.Date(local.Year(), local.Month(), local.Day(), c.startHour, 0, 0, 0, c.Location())
	if local.Before(start) {
		start = time.Date(local.Year(), local.Month(), local.Day()-1, c.startHour, 0, 0, 0, c.Location())
	}
	return start
}

// End returns the exclusive end of the period that begins at start.
func (c Calendar) End(start time.Time) time.Time {
	return start.AddDate(0, 0, 1)
}

// Key returns the stable identifier stored alongside tokens of the period
// beginning at start.
func (c Calendar) Key(start time.Time) string {
	return start.In(c.Location()).Format(KeyLayout)
}

// Window returns the period containing t.
func (c Calendar) Window(t time.Time) Window {
	start := c.Start(t)
	return Window{Start: start, End: c.End(start), Key: c.Key(start)}
}

// Current returns the period containing clock.Now().
func (c Calendar) Current(clock Clock) Window {
	return c.Window(clock.Now())
}

// ParseDate resolves a YYYY-MM-DD date to the period that begins on it.
func (c Calendar) ParseDate(value string) (Window, error) {
	value = strings.TrimSpace(value)
	day, err := time.ParseInLocation(KeyLayout, value, c.Location())
	if err != nil {
		return Window{}, fmt.Errorf("parse period date %q: %w", value, err)
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), c.startHour, 0, 0, 0, c.Location())
	return Window{Start: start, End: c.End(start), Key: c.Key(start)}, nil
}
