// Package timewindow implements standup window scheduling arithmetic.
//
// Windows and deadlines are stored as UTC time-of-day strings ("HH:MM:SS").
// A TimeOfDay is meaningless without a calendar date and a timezone, so every
// conversion here takes an explicit reference instant and never compares
// times across zones without converting first.
package timewindow

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time without a date.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// ParseTimeOfDay parses "HH:MM" or "HH:MM:SS".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
	}

	var fields [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return TimeOfDay{}, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = n
	}

	t := TimeOfDay{Hour: fields[0], Minute: fields[1], Second: fields[2]}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// String renders the canonical storage form "HH:MM:SS".
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

func (t TimeOfDay) secondOfDay() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Before reports whether t is earlier in the day than o.
func (t TimeOfDay) Before(o TimeOfDay) bool {
	return t.secondOfDay() < o.secondOfDay()
}

// onDate pins the time-of-day to the given date in the given location.
func (t TimeOfDay) onDate(ref time.Time, loc *time.Location) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day(), t.Hour, t.Minute, t.Second, 0, loc)
}

// ToLocalDisplay renders a stored UTC time-of-day as a human string in the
// viewer's zone, e.g. "6:30 PM IST". The zone comes from viewerNow, not from
// storage.
func ToLocalDisplay(utc TimeOfDay, viewerNow time.Time) string {
	u := viewerNow.UTC()
	d := utc.onDate(u, time.UTC)
	return d.In(viewerNow.Location()).Format("3:04 PM MST")
}

// ToUTC converts a wall-clock time, understood as today in localNow's zone,
// to its UTC time-of-day. The date is discarded: a local time near midnight
// may land on the previous or next UTC day, and callers that care about the
// day boundary must handle the rollover themselves.
func ToUTC(local TimeOfDay, localNow time.Time) TimeOfDay {
	d := local.onDate(localNow, localNow.Location()).UTC()
	return TimeOfDay{Hour: d.Hour(), Minute: d.Minute(), Second: d.Second()}
}

// FromUTC converts a stored UTC time-of-day to the viewer's local
// time-of-day, suitable for pre-filling a time input.
func FromUTC(utc TimeOfDay, viewerNow time.Time) TimeOfDay {
	u := viewerNow.UTC()
	d := utc.onDate(u, time.UTC).In(viewerNow.Location())
	return TimeOfDay{Hour: d.Hour(), Minute: d.Minute(), Second: d.Second()}
}

// Window is a daily standup window in UTC. Both bounds unset means the team
// enforces no window and members are never late.
type Window struct {
	Open  *TimeOfDay
	Close *TimeOfDay
}

// Enabled reports whether the window is configured.
func (w Window) Enabled() bool {
	return w.Open != nil && w.Close != nil
}

// Validate rejects half-configured windows and windows that span midnight
// (open >= close). Spanning windows are a configuration error, caught here
// so Classify never has to deal with them.
func (w Window) Validate() error {
	if w.Open == nil && w.Close == nil {
		return nil
	}
	if w.Open == nil || w.Close == nil {
		return fmt.Errorf("window must set both open and close, or neither")
	}
	if !w.Open.Before(*w.Close) {
		return fmt.Errorf("window open %s must be before close %s", w.Open, w.Close)
	}
	return nil
}

// State classifies "now" against a window.
type State int

const (
	BeforeOpen State = iota
	Open
	AfterClose
)

func (s State) String() string {
	switch s {
	case BeforeOpen:
		return "before_open"
	case Open:
		return "open"
	case AfterClose:
		return "after_close"
	}
	return "unknown"
}

// Classification is the result of comparing an instant to a window.
// Remaining is only meaningful while the window is Open.
type Classification struct {
	State     State
	Remaining time.Duration
}

// Classify places nowUTC within the window on the current UTC day. An
// unconfigured window is always Open.
func Classify(w Window, nowUTC time.Time) Classification {
	if !w.Enabled() {
		return Classification{State: Open}
	}

	now := nowUTC.UTC()
	sec := now.Hour()*3600 + now.Minute()*60 + now.Second()

	switch {
	case sec < w.Open.secondOfDay():
		return Classification{State: BeforeOpen}
	case sec < w.Close.secondOfDay():
		return Classification{
			State:     Open,
			Remaining: time.Duration(w.Close.secondOfDay()-sec) * time.Second,
		}
	default:
		return Classification{State: AfterClose}
	}
}

// IsLate reports whether the local time-of-day is at or past the single
// daily deadline. This is the legacy variant; teams with a window should use
// Classify instead.
func IsLate(deadline TimeOfDay, nowLocal time.Time) bool {
	sec := nowLocal.Hour()*3600 + nowLocal.Minute()*60 + nowLocal.Second()
	return sec >= deadline.secondOfDay()
}

// TodayUTC returns the UTC calendar date as "YYYY-MM-DD". All "today's
// check-in" keys use this, never a local date.
func TodayUTC(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

// WeekStartUTC returns the Monday of the current UTC week as "YYYY-MM-DD",
// used for week-based report queries.
func WeekStartUTC(now time.Time) string {
	u := now.UTC()
	diff := int(u.Weekday()) - int(time.Monday)
	if diff < 0 {
		diff += 7
	}
	return u.AddDate(0, 0, -diff).Format("2006-01-02")
}
