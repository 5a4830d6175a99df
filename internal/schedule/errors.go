package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyCalendar = errors.New("no calendar events generated")

// Skip records one section, weekday or exam that produced no event.
type Skip struct {
	Course string
	Unit   string
	Err    error
}

func (s Skip) String() string {
	return fmt.Sprintf("%s [%s]: %v", s.Course, s.Unit, s.Err)
}

// EmptyCalendarError is returned by Generate when nothing could be built. It
// carries every skip reason so callers can show why.
type EmptyCalendarError struct {
	Skipped []Skip
}

func (e *EmptyCalendarError) Error() string {
	if len(e.Skipped) == 0 {
		return "schedule: " + ErrEmptyCalendar.Error()
	}
	reasons := make([]string, len(e.Skipped))
	for i, s := range e.Skipped {
		reasons[i] = s.String()
	}
	return fmt.Sprintf("schedule: %s (%d skipped: %s)", ErrEmptyCalendar, len(e.Skipped), strings.Join(reasons, "; "))
}

func (e *EmptyCalendarError) Unwrap() error { return ErrEmptyCalendar }
