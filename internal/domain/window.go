package domain

import (
	"errors"
	"fmt"
	"time"
)

// Window is the date selection of a fetch: either the most recent
// LookbackDays calendar days, or an explicit inclusive [Start, End] range.
// Exactly one of the two is set.
type Window struct {
	LookbackDays int
	Start        time.Time
	End          time.Time
}

func LookbackWindow(days int) Window {
	return Window{LookbackDays: days}
}

func RangeWindow(start, end time.Time) Window {
	return Window{Start: Day(start), End: Day(end)}
}

func (w Window) IsRange() bool {
	return !w.Start.IsZero() || !w.End.IsZero()
}

func (w Window) Validate() error {
	if w.IsRange() {
		if w.LookbackDays != 0 {
			return errors.New("window cannot have both a lookback and a date range")
		}
		if w.Start.IsZero() || w.End.IsZero() {
			return errors.New("window date range requires both start and end")
		}
		if w.Start.After(w.End) {
			return fmt.Errorf("window start %s is after end %s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
		}
		return nil
	}
	if w.LookbackDays <= 0 {
		return errors.New("window requires a positive lookback or a date range")
	}
	return nil
}

// Contains reports whether the calendar date of t falls inside the window.
// Lookback windows accept every date; the provider already bounds them.
func (w Window) Contains(t time.Time) bool {
	if !w.IsRange() {
		return true
	}
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

func (w Window) String() string {
	if w.IsRange() {
		return fmt.Sprintf("%s..%s", w.Start.Format(DateLayout), w.End.Format(DateLayout))
	}
	return fmt.Sprintf("last %dd", w.LookbackDays)
}
