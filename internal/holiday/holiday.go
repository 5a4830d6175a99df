// Package holiday decides how institutional breaks interrupt a weekly class
// series. Two policies are supported: suppressing individual instances with
// EXDATEs, or splitting the term into several unbroken spans.
package holiday

import (
	"fmt"
	"sort"
	"strings"

	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

// Policy selects between exclusion dates and span splitting.
type Policy string

const (
	PolicyExclude Policy = "exdate"
	PolicySplit   Policy = "split"
)

// ParsePolicy accepts "exdate"/"exclude" and "split". Empty means exdate.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "exdate", "exclude":
		return PolicyExclude, nil
	case "split":
		return PolicySplit, nil
	default:
		return "", fmt.Errorf("holiday: unknown policy %q", s)
	}
}

// Span is an inclusive civil date range.
type Span struct {
	Start timeutil.Date
	End   timeutil.Date
}

func (s Span) Contains(d timeutil.Date) bool {
	return !d.Before(s.Start) && !d.After(s.End)
}

// Exclusions returns every holiday day that falls on weekday w inside span,
// sorted and without duplicates.
func Exclusions(w timeutil.Weekday, span Span, holidays []model.Holiday) []timeutil.Date {
	seen := make(map[timeutil.Date]bool)
	out := make([]timeutil.Date, 0)

	for _, h := range holidays {
		for _, d := range matchingDays(w, span, h) {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, d)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// Split cuts span around every holiday that touches weekday w inside it. A
// holiday breaks the series from the day before it starts to the day after it
// ends; the returned spans are chronological and never empty.
func Split(w timeutil.Weekday, span Span, holidays []model.Holiday) []Span {
	breaks := make([]model.Holiday, 0)
	for _, h := range holidays {
		if len(matchingDays(w, span, h)) > 0 {
			breaks = append(breaks, h)
		}
	}
	sort.SliceStable(breaks, func(i, j int) bool { return breaks[i].Start.Before(breaks[j].Start) })

	out := make([]Span, 0, len(breaks)+1)
	cursor := span.Start
	for _, b := range breaks {
		lastBefore := b.Start.AddDays(-1)
		firstAfter := b.End.AddDays(1)

		// Overlapping or back-to-back breaks can leave nothing before this one.
		if !lastBefore.Before(cursor) {
			out = append(out, Span{Start: cursor, End: lastBefore})
		}
		if firstAfter.After(cursor) {
			cursor = firstAfter
		}
	}
	if !cursor.After(span.End) {
		out = append(out, Span{Start: cursor, End: span.End})
	}
	return out
}

// matchingDays lists the days of h that fall on w and inside span.
func matchingDays(w timeutil.Weekday, span Span, h model.Holiday) []timeutil.Date {
	if h.End.Before(h.Start) {
		return nil
	}
	start, end := h.Start, h.End
	if start.Before(span.Start) {
		start = span.Start
	}
	if end.After(span.End) {
		end = span.End
	}
	if end.Before(start) {
		return nil
	}

	var out []timeutil.Date
	for d := timeutil.FirstOnOrAfter(start, w); !d.After(end); d = d.AddDays(7) {
		out = append(out, d)
	}
	return out
}
