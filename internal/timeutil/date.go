// Package timeutil holds the civil date/time helpers used by the calendar
// builders: timezone-naive dates and clock times, tolerant parsing of the
// formats found on enrollment pages, and weekday code conversion.
package timeutil

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDateFormat = errors.New("invalid date format")
	ErrInvalidTimeFormat = errors.New("invalid time format")
)

// Date is a calendar date without a time-of-day or timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalizes out-of-range values the same way time.Date does.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the civil date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight of d in UTC. Only the wall-clock fields are meaningful.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

func (d Date) Weekday() Weekday {
	return WeekdayOf(d.Time().Weekday())
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	return d.Time().Compare(o.Time())
}

// String renders d as ISO YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// In returns midnight of d in loc.
func (d Date) In(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Clock is a time-of-day with minute precision, 24-hour.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) Before(o Clock) bool {
	return c.Minutes() < o.Minutes()
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Civil combines a date and clock into a wall-clock time.Time in UTC. The
// value is never converted between zones; formatters read its fields as-is.
func Civil(d Date, c Clock) time.Time {
	return time.Date(d.Year, d.Month, d.Day, c.Hour, c.Minute, 0, 0, time.UTC)
}

var dateLayouts = []string{
	"Jan 2, 2006",
	"January 2, 2006",
	"2006-01-02",
	// Best-effort fallbacks.
	"Jan 2 2006",
	"January 2 2006",
	"01/02/2006",
	"1/2/2006",
	"2006/01/02",
	"2 Jan 2006",
	"Mon, Jan 2, 2006",
	"Monday, January 2, 2006",
}

// ParseCivilDate parses "Sep 3, 2025", "2025-09-03" and a handful of other
// common renderings. RFC 3339 timestamps contribute their date part.
func ParseCivilDate(text string) (Date, error) {
	s := strings.Join(strings.Fields(text), " ")
	if s == "" {
		return Date{}, fmt.Errorf("timeutil: empty date: %w", ErrInvalidDateFormat)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, fmt.Errorf("timeutil: parse date %q: %w", text, ErrInvalidDateFormat)
}

var clockRe = regexp.MustCompile(`(?i)^(\d{1,2}):(\d{2})\s*([AP])\.?M\.?$`)

// ParseClockTime parses "9:30 AM" / "2:45pm" into a 24-hour Clock.
func ParseClockTime(text string) (Clock, error) {
	m := clockRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Clock{}, fmt.Errorf("timeutil: parse time %q: %w", text, ErrInvalidTimeFormat)
	}
	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])
	if hour < 1 || hour > 12 || minute > 59 {
		return Clock{}, fmt.Errorf("timeutil: time out of range %q: %w", text, ErrInvalidTimeFormat)
	}

	pm := strings.EqualFold(m[3], "P")
	switch {
	case pm && hour < 12:
		hour += 12
	case !pm && hour == 12:
		hour = 0
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// FormatClock renders c the way enrollment pages do ("9:05 AM").
func FormatClock(c Clock) string {
	h := c.Hour % 12
	if h == 0 {
		h = 12
	}
	meridiem := "AM"
	if c.Hour >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, c.Minute, meridiem)
}

var numericMonthDayRe = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})(?:/(\d{4}))?$`)

// ParseMonthDay parses exam-style dates: "Dec 14", "December 14, 2025",
// "12/14" or "12/14/2025". year is 0 when the text carries none.
func ParseMonthDay(text string) (month time.Month, day, year int, err error) {
	s := strings.TrimSpace(text)
	if m := numericMonthDayRe.FindStringSubmatch(s); m != nil {
		mo, _ := strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
		}
		month = time.Month(mo)
		return checkMonthDay(text, month, day, year)
	}

	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ',' })
	if len(parts) < 2 {
		return 0, 0, 0, fmt.Errorf("timeutil: parse month/day %q: %w", text, ErrInvalidDateFormat)
	}
	month, ok := monthNames[strings.ToLower(strings.TrimSuffix(parts[0], "."))]
	if !ok {
		return 0, 0, 0, fmt.Errorf("timeutil: unknown month in %q: %w", text, ErrInvalidDateFormat)
	}
	day, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("timeutil: parse day in %q: %w", text, ErrInvalidDateFormat)
	}
	if len(parts) > 2 {
		if year, err = strconv.Atoi(parts[2]); err != nil {
			return 0, 0, 0, fmt.Errorf("timeutil: parse year in %q: %w", text, ErrInvalidDateFormat)
		}
	}
	return checkMonthDay(text, month, day, year)
}

func checkMonthDay(text string, month time.Month, day, year int) (time.Month, int, int, error) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return 0, 0, 0, fmt.Errorf("timeutil: month/day out of range %q: %w", text, ErrInvalidDateFormat)
	}
	return month, day, year, nil
}

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}
