package timeutil

import (
	"regexp"
	"strings"
	"time"
)

// Weekday is the iCalendar two-letter day code.
type Weekday string

const (
	Sunday    Weekday = "SU"
	Monday    Weekday = "MO"
	Tuesday   Weekday = "TU"
	Wednesday Weekday = "WE"
	Thursday  Weekday = "TH"
	Friday    Weekday = "FR"
	Saturday  Weekday = "SA"
)

var byTimeWeekday = [7]Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday}

// WeekdayOf converts a time.Weekday (0 = Sunday) to its code.
func WeekdayOf(d time.Weekday) Weekday {
	return byTimeWeekday[int(d)%7]
}

// Time converts w back to a time.Weekday. ok is false for unknown codes.
func (w Weekday) Time() (time.Weekday, bool) {
	for i, c := range byTimeWeekday {
		if c == w {
			return time.Weekday(i), true
		}
	}
	return 0, false
}

func (w Weekday) Valid() bool {
	_, ok := w.Time()
	return ok
}

// Single letters follow the UW convention: R is Thursday, S Saturday, U Sunday.
var weekdayTokens = map[string]Weekday{
	"sunday": Sunday, "sun": Sunday, "su": Sunday, "u": Sunday,
	"monday": Monday, "mon": Monday, "mo": Monday, "m": Monday,
	"tuesday": Tuesday, "tues": Tuesday, "tue": Tuesday, "tu": Tuesday, "t": Tuesday,
	"wednesday": Wednesday, "wed": Wednesday, "we": Wednesday, "w": Wednesday,
	"thursday": Thursday, "thurs": Thursday, "thur": Thursday, "thu": Thursday, "th": Thursday, "r": Thursday,
	"friday": Friday, "fri": Friday, "fr": Friday, "f": Friday,
	"saturday": Saturday, "sat": Saturday, "sa": Saturday, "s": Saturday,
}

// ParseWeekday maps one token (long name, short name, code or UW letter).
func ParseWeekday(token string) (Weekday, bool) {
	w, ok := weekdayTokens[strings.ToLower(strings.TrimSpace(token))]
	return w, ok
}

// Longest alternatives first so "Th" wins over "T" and "Sun" over "Su".
var dayTokenRe = regexp.MustCompile(`(?i)(sunday|monday|tuesday|wednesday|thursday|friday|saturday|thurs|tues|thur|sun|mon|tue|wed|thu|fri|sat|su|mo|tu|we|th|fr|sa|m|t|w|r|f|s|u)`)

var nonLetters = regexp.MustCompile(`[^A-Za-z]`)

// ParseDays tokenizes strings like "MWF", "TR", "TuTh" or "Mon, Wed" into
// weekday codes. Repeats are dropped and first-seen order kept.
func ParseDays(text string) []Weekday {
	s := nonLetters.ReplaceAllString(text, "")
	tokens := dayTokenRe.FindAllString(s, -1)

	out := make([]Weekday, 0, len(tokens))
	seen := make(map[Weekday]bool, 7)
	for _, tok := range tokens {
		w, ok := ParseWeekday(tok)
		if !ok || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// FirstOnOrAfter returns the first date >= d that falls on w. Unknown codes
// return d unchanged.
func FirstOnOrAfter(d Date, w Weekday) Date {
	target, ok := w.Time()
	if !ok {
		return d
	}
	cur := d.Time().Weekday()
	delta := (int(target) - int(cur) + 7) % 7
	return d.AddDays(delta)
}
