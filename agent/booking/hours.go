// Package booking holds the scheduling rules applied to appointment requests
// before they reach the calendar backend.
package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/tanpawarit/Chative-Dealership-Assistant/agent/contract"
)

var (
	ErrInPast       = errors.New("requested time is in the past")
	ErrClosedDay    = errors.New("dealership is closed that day")
	ErrOutsideHours = errors.New("requested time is outside business hours")
)

type HoursConfig struct {
	TimeZone   string `split_words:"true" default:"America/Chicago"`
	OpenHour   int    `split_words:"true" default:"9"`
	CloseHour  int    `split_words:"true" default:"19"`
	ClosedDays string `split_words:"true" default:"sunday"`
}

// Hours is the weekly opening window in the dealership's time zone.
// An appointment must start at or after Open and end no later than Close.
type Hours struct {
	Location   *time.Location
	Open       int
	Close      int
	ClosedDays map[time.Weekday]bool
}

func (c HoursConfig) Build() (Hours, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.TimeZone))
	if err != nil {
		return Hours{}, fmt.Errorf("%w: time zone %q: %v", contractx.ErrConfig, c.TimeZone, err)
	}
	if c.OpenHour < 0 || c.CloseHour > 24 || c.OpenHour >= c.CloseHour {
		return Hours{}, fmt.Errorf("%w: business hours %d-%d", contractx.ErrConfig, c.OpenHour, c.CloseHour)
	}

	closed := make(map[time.Weekday]bool)
	for _, raw := range strings.Split(c.ClosedDays, ",") {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		day, ok := weekdays[raw]
		if !ok {
			return Hours{}, fmt.Errorf("%w: unknown closed day %q", contractx.ErrConfig, raw)
		}
		closed[day] = true
	}

	return Hours{Location: loc, Open: c.OpenHour, Close: c.CloseHour, ClosedDays: closed}, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// Check validates a requested start time against now and the opening window.
func (h Hours) Check(start time.Time, duration time.Duration, now time.Time) error {
	if !start.After(now) {
		return ErrInPast
	}
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := start.In(loc)
	if h.ClosedDays[local.Weekday()] {
		return fmt.Errorf("%w: %s", ErrClosedDay, local.Weekday())
	}

	open := time.Date(local.Year(), local.Month(), local.Day(), h.Open, 0, 0, 0, loc)
	closing := time.Date(local.Year(), local.Month(), local.Day(), h.Close, 0, 0, 0, loc)
	if local.Before(open) || local.Add(duration).After(closing) {
		return fmt.Errorf("%w: open %02d:00-%02d:00", ErrOutsideHours, h.Open, h.Close)
	}
	return nil
}

// Describe renders the window for prompts and user-facing hints.
func (h Hours) Describe() string {
	var closed []string
	for _, d := range []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday} {
		if h.ClosedDays[d] {
			closed = append(closed, d.String())
		}
	}
	desc := fmt.Sprintf("%s to %s", clock(h.Open), clock(h.Close))
	if len(closed) > 0 {
		desc += ", closed " + strings.Join(closed, ", ")
	}
	return desc
}

func clock(hour int) string {
	switch {
	case hour == 0 || hour == 24:
		return "12 AM"
	case hour == 12:
		return "12 PM"
	case hour > 12:
		return fmt.Sprintf("%d PM", hour-12)
	default:
		return fmt.Sprintf("%d AM", hour)
	}
}

// OpenAt reports whether t falls inside the opening window.
func (h Hours) OpenAt(t time.Time) bool {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if h.ClosedDays[local.Weekday()] {
		return false
	}
	return local.Hour() >= h.Open && local.Hour() < h.Close
}

// Rejection phrases a Check error for the customer.
func (h Hours) Rejection(err error) string {
	switch {
	case errors.Is(err, ErrInPast):
		return "That time has already passed. What other day and time works for you?"
	case errors.Is(err, ErrClosedDay):
		return fmt.Sprintf("We're closed that day. Our hours are %s. What other day works for you?", h.Describe())
	case errors.Is(err, ErrOutsideHours):
		return fmt.Sprintf("That time is outside our business hours (%s). What other time works for you?", h.Describe())
	default:
		return "I couldn't understand that date and time. Could you give me a specific day and time?"
	}
}
