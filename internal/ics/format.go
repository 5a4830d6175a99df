package ics

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const (
	localTimestampLayout = "20060102T150405"
	utcTimestampLayout   = "20060102T150405Z"
)

// FormatLocal renders the wall clock of t as YYYYMMDDTHHMMSS. It is always
// paired with a TZID parameter and never carries a trailing Z.
func FormatLocal(t time.Time) string {
	return t.Format(localTimestampLayout)
}

// FormatUTC renders t converted to UTC as YYYYMMDDTHHMMSSZ (DTSTAMP only).
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcTimestampLayout)
}

// formatUntil renders the last day of a recurrence as 23:59:59 UTC. In US
// zones that instant falls in the late afternoon local time, so a meeting
// starting after it on the last day is not generated.
func formatUntil(d timeutil.Date) string {
	return time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, time.UTC).Format(utcTimestampLayout)
}

// UID derives a stable identifier from the title and the start instant. The
// civil start is interpreted in loc so the identifier reflects a real instant.
func UID(title string, start time.Time, loc *time.Location, domain string) string {
	var b strings.Builder
	for _, r := range title {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
		}
	}
	instant := time.Date(start.Year(), start.Month(), start.Day(), start.Hour(), start.Minute(), start.Second(), 0, loc)
	b.WriteString(strconv.FormatInt(instant.UnixMilli(), 10))
	b.WriteByte('@')
	b.WriteString(domain)
	return b.String()
}

// atTimeOf places date d at the wall-clock time-of-day of ref.
func atTimeOf(d timeutil.Date, ref time.Time) time.Time {
	return time.Date(d.Year, d.Month, d.Day, ref.Hour(), ref.Minute(), ref.Second(), 0, time.UTC)
}
