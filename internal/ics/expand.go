package ics

import (
	"errors"
	"sort"
	"time"

	"github.com/teambition/rrule-go"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 500
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// DisplayLocation is the timezone to which all occurrences will be converted.
	// If nil, time.Local is used.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd define the inclusive time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap. If zero,
	// defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and optionally
// information about truncation.
type ExpandResult struct {
	Occurrences []model.Occurrence
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed events into concrete meetings inside the
// range: single events pass through, RRULE series are expanded by rrule-go
// with their EXDATEs removed. Results are sorted by start.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	all := make([]model.Occurrence, 0)
	for _, ev := range events {
		if ev.RawRRule == "" {
			if timeRangesOverlap(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
				all = append(all, makeOccurrence(ev, ev.Start, ev.End, cfg.DisplayLocation))
			}
			continue
		}

		occ, hitCap := expandRecurringEvent(ev, cfg)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, ev.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", ev.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
		all = append(all, occ...)
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Start.Before(all[j].Start) })
	result.Occurrences = all
	return result, nil
}

func expandRecurringEvent(ev ParsedEvent, cfg ExpandConfig) ([]model.Occurrence, bool) {
	out := make([]model.Occurrence, 0)

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())
	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := ev.End.Sub(ev.Start)
	for _, occStart := range occTimes {
		out = append(out, makeOccurrence(ev, occStart, occStart.Add(dur), cfg.DisplayLocation))
	}
	return out, hitCap
}

// makeOccurrence converts a ParsedEvent + specific start/end time into a
// model.Occurrence normalized into displayLoc.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.Occurrence {
	startLocal := start.In(displayLoc)
	return model.Occurrence{
		UID:         ev.UID,
		InstanceKey: startLocal.Format(time.RFC3339),
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       startLocal,
		End:         end.In(displayLoc),
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	if aEnd.Before(bStart) {
		return false
	}
	if bEnd.Before(aStart) {
		return false
	}
	return true
}
