package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
)

// ParsedEvent is a VEVENT read back from a rendered document. Expansion in
// expand.go operates on this type.
type ParsedEvent struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time
	TZID  string

	RawRRule string
	ExDates  []time.Time
	Alarms   int
}

// ParseICS parses an ICS payload (typically one produced by Writer) into
// ParsedEvents. Start/End/EXDATE values are resolved in their TZID zone.
func ParseICS(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse calendar: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp)
		if perr != nil {
			// Log and skip this event, but keep parsing others.
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = unescapeText(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = unescapeText(p.Value)
	}

	start := ve.GetProperty(ical.ComponentPropertyDtStart)
	if start == nil {
		return out, fmt.Errorf("event %s: missing DTSTART", out.UID)
	}
	out.TZID = paramValue(start.ICalParameters, "TZID")
	t, err := parseICSTime(start.Value, out.TZID)
	if err != nil {
		return out, fmt.Errorf("event %s: DTSTART: %w", out.UID, err)
	}
	out.Start = t

	if end := ve.GetProperty(ical.ComponentPropertyDtEnd); end != nil {
		t, err := parseICSTime(end.Value, paramValue(end.ICalParameters, "TZID"))
		if err != nil {
			return out, fmt.Errorf("event %s: DTEND: %w", out.UID, err)
		}
		out.End = t
	} else {
		out.End = out.Start
	}

	// RRULE (we only keep raw string here; expansion is in expand.go).
	if rruleProp := ve.GetProperty(ical.ComponentPropertyRrule); rruleProp != nil {
		out.RawRRule = rruleProp.Value
	}

	// EXDATE can appear multiple times, each possibly comma-separated.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := paramValue(p.ICalParameters, "TZID")
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzid); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	for _, c := range ve.Components {
		if _, ok := c.(*ical.VAlarm); ok {
			out.Alarms++
		}
	}

	return out, nil
}

func paramValue(params map[string][]string, key string) string {
	if vs, ok := params[key]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICSTime parses DATE, local DATE-TIME (resolved in tzid) and UTC
// DATE-TIME values.
func parseICSTime(v, tzid string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse(utcTimestampLayout, v)
	}

	loc := time.UTC
	if tzid != "" {
		l, err := time.LoadLocation(tzid)
		if err != nil {
			return time.Time{}, fmt.Errorf("unknown TZID %q: %w", tzid, err)
		}
		loc = l
	}

	if strings.Contains(v, "T") {
		return time.ParseInLocation(localTimestampLayout, v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\;`, `;`, `\,`, `,`, `\n`, "\n", `\N`, "\n")

func unescapeText(s string) string {
	return textUnescaper.Replace(s)
}
