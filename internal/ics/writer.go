package ics

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo

	ical "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const (
	defaultUIDDomain = "buckyscheduler"
	defaultProductID = "-//BuckyScheduler//Class Schedule//EN"

	// LineSeparator is the RFC 5545 content line separator.
	LineSeparator = "\r\n"
)

// DefaultSemesterEnd bounds recurrences that specify neither UNTIL nor COUNT.
var DefaultSemesterEnd = timeutil.NewDate(2025, time.December, 19)

var ErrMissingField = errors.New("missing required field")

// MissingFieldError names the absent AddEvent argument.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "ics: " + e.Field + ": " + ErrMissingField.Error()
}

func (e *MissingFieldError) Unwrap() error { return ErrMissingField }

// Config controls document-wide settings of a Writer.
type Config struct {
	Zone Zone

	// Location interprets civil start times when deriving UIDs. If nil it is
	// loaded from Zone.TZID.
	Location *time.Location

	UIDDomain    string
	ProductID    string
	CalendarName string

	// SemesterEnd is the fallback UNTIL for open-ended recurrences.
	SemesterEnd timeutil.Date

	// LineSeparator is "\r\n" (default) or "\n".
	LineSeparator string

	// Now supplies DTSTAMP. Tests pin it for byte-identical output.
	Now func() time.Time
}

func (c *Config) normalize() {
	if c.Zone.TZID == "" {
		c.Zone = Central
	}
	if c.Location == nil {
		loc, err := time.LoadLocation(c.Zone.TZID)
		if err != nil {
			appLog.Error("ics: failed to load timezone; using UTC for UIDs", err, "tzid", c.Zone.TZID)
			loc = time.UTC
		}
		c.Location = loc
	}
	if c.UIDDomain == "" {
		c.UIDDomain = defaultUIDDomain
	}
	if c.ProductID == "" {
		c.ProductID = defaultProductID
	}
	if c.SemesterEnd.IsZero() {
		c.SemesterEnd = DefaultSemesterEnd
	}
	if c.LineSeparator != "\n" {
		c.LineSeparator = LineSeparator
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type Freq string

const (
	FreqDaily  Freq = "DAILY"
	FreqWeekly Freq = "WEEKLY"
)

// Recurrence is an RRULE. Only one of Until/Count is written; Until wins.
type Recurrence struct {
	Freq     Freq
	Until    timeutil.Date
	Count    int
	Interval int
	ByDay    []timeutil.Weekday
}

func (r Recurrence) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(string(r.Freq))
	switch {
	case !r.Until.IsZero():
		b.WriteString(";UNTIL=")
		b.WriteString(formatUntil(r.Until))
	case r.Count > 0:
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(r.Count))
	}
	if r.Interval > 1 {
		b.WriteString(";INTERVAL=")
		b.WriteString(strconv.Itoa(r.Interval))
	}
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = string(d)
		}
		b.WriteString(";BYDAY=")
		b.WriteString(strings.Join(days, ","))
	}
	return b.String()
}

// Trigger fires MinutesBefore the start, or at the absolute instant At.
type Trigger struct {
	MinutesBefore int
	At            time.Time
}

type Alarm struct {
	Action      ical.Action // DISPLAY when empty
	Description string      // event title when empty
	Trigger     Trigger
}

func (a Alarm) trigger() (string, []ical.PropertyParameter) {
	if !a.Trigger.At.IsZero() {
		return FormatUTC(a.Trigger.At), []ical.PropertyParameter{&ical.KeyValues{Key: string(ical.ParameterValue), Value: []string{"DATE-TIME"}}}
	}
	return "-PT" + strconv.Itoa(a.Trigger.MinutesBefore) + "M", nil
}

// EventOptions carries the optional parts of an event.
type EventOptions struct {
	Recurrence *Recurrence

	// Holidays are suppressed at the event's own time-of-day.
	Holidays []timeutil.Date
	// ExcludeDates are civil datetimes suppressed verbatim.
	ExcludeDates []time.Time

	Alarms []Alarm
}

// Event is one VEVENT as stored by the Writer. Start, End and Exclusions are
// civil: only their wall-clock fields are written.
type Event struct {
	UID         string
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
	Recurrence  *Recurrence
	Exclusions  []time.Time
	Alarms      []Alarm
}

// Writer accumulates events for one generation pass. It is not safe for
// concurrent use; build a fresh Writer per document.
type Writer struct {
	cfg    Config
	events []Event
}

func NewWriter(cfg Config) *Writer {
	cfg.normalize()
	return &Writer{cfg: cfg}
}

func (w *Writer) Config() Config { return w.cfg }

// AddEvent validates and appends an event. Appended events are never mutated.
func (w *Writer) AddEvent(title, description, location string, start, end time.Time, opts EventOptions) (Event, error) {
	switch {
	case strings.TrimSpace(title) == "":
		return Event{}, &MissingFieldError{Field: "title"}
	case strings.TrimSpace(description) == "":
		return Event{}, &MissingFieldError{Field: "description"}
	case strings.TrimSpace(location) == "":
		return Event{}, &MissingFieldError{Field: "location"}
	case start.IsZero():
		return Event{}, &MissingFieldError{Field: "start"}
	case end.IsZero():
		return Event{}, &MissingFieldError{Field: "end"}
	}
	if end.Before(start) {
		return Event{}, fmt.Errorf("ics: event %q ends before it starts", title)
	}

	ev := Event{
		UID:         UID(title, start, w.cfg.Location, w.cfg.UIDDomain),
		Title:       title,
		Description: description,
		Location:    location,
		Start:       start,
		End:         end,
		Alarms:      slices.Clone(opts.Alarms),
	}

	if opts.Recurrence != nil {
		rr := *opts.Recurrence
		rr.ByDay = slices.Clone(rr.ByDay)
		if rr.Freq == "" {
			rr.Freq = FreqWeekly
		}
		if rr.Until.IsZero() && rr.Count <= 0 {
			rr.Until = w.cfg.SemesterEnd
		}
		if !rr.Until.IsZero() {
			rr.Count = 0
		}
		ev.Recurrence = &rr
	}

	ev.Exclusions = exclusionSet(start, opts)

	w.events = append(w.events, ev)
	appLog.Debug("ics event added", "uid", ev.UID, "exdates", len(ev.Exclusions), "recurring", ev.Recurrence != nil)
	return cloneEvent(ev), nil
}

// exclusionSet merges explicit exclusions and holiday dates into a sorted
// set. Holidays take the start's time-of-day so they match DTSTART instances.
func exclusionSet(start time.Time, opts EventOptions) []time.Time {
	out := make([]time.Time, 0, len(opts.ExcludeDates)+len(opts.Holidays))
	out = append(out, opts.ExcludeDates...)
	for _, h := range opts.Holidays {
		out = append(out, atTimeOf(h, start))
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return slices.CompactFunc(out, func(a, b time.Time) bool { return a.Equal(b) })
}

// Events returns the added events in insertion order.
func (w *Writer) Events() []Event {
	out := make([]Event, len(w.events))
	for i, ev := range w.events {
		out[i] = cloneEvent(ev)
	}
	return out
}

func cloneEvent(ev Event) Event {
	if ev.Recurrence != nil {
		rr := *ev.Recurrence
		rr.ByDay = slices.Clone(rr.ByDay)
		ev.Recurrence = &rr
	}
	ev.Exclusions = slices.Clone(ev.Exclusions)
	ev.Alarms = slices.Clone(ev.Alarms)
	return ev
}

// Render serializes the whole document. golang-ical defaults to the host's
// newline, so the separator is always passed explicitly.
func (w *Writer) Render() string {
	return w.calendar().Serialize(ical.WithNewLine(w.cfg.LineSeparator))
}

// WriteTo implements io.WriterTo.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	n, err := io.WriteString(out, w.Render())
	return int64(n), err
}

func (w *Writer) calendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetProductId(w.cfg.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ical.MethodPublish)
	if w.cfg.CalendarName != "" {
		cal.SetXWRCalName(w.cfg.CalendarName)
	}
	cal.SetXWRTimezone(w.cfg.Zone.TZID)
	cal.SetXWRCalID(uuid.NewSHA1(uuid.NameSpaceDNS, []byte(w.cfg.UIDDomain)).String())

	cal.Components = append(cal.Components, w.cfg.Zone.component())

	stamp := FormatUTC(w.cfg.Now())
	for _, ev := range w.events {
		cal.AddVEvent(w.vevent(ev, stamp))
	}
	return cal
}

func (w *Writer) vevent(ev Event, stamp string) *ical.VEvent {
	tzid := &ical.KeyValues{Key: string(ical.ParameterTzid), Value: []string{w.cfg.Zone.TZID}}

	ve := ical.NewEvent(ev.UID)
	ve.SetProperty(ical.ComponentPropertyDtstamp, stamp)
	ve.SetProperty(ical.ComponentPropertyDtStart, FormatLocal(ev.Start), tzid)
	ve.SetProperty(ical.ComponentPropertyDtEnd, FormatLocal(ev.End), tzid)
	ve.SetSummary(ev.Title)
	ve.SetLocation(ev.Location)
	ve.SetDescription(ev.Description)
	ve.SetProperty(ical.ComponentPropertyTransp, "TRANSPARENT")
	ve.SetProperty(ical.ComponentPropertyClass, string(ical.ClassificationPublic))

	if ev.Recurrence != nil {
		ve.AddProperty(ical.ComponentPropertyRrule, ev.Recurrence.String())
	}
	for _, ex := range ev.Exclusions {
		ve.AddProperty(ical.ComponentPropertyExdate, FormatLocal(ex), tzid)
	}

	for _, a := range ev.Alarms {
		alarm := &ical.VAlarm{}
		action := a.Action
		if action == "" {
			action = ical.ActionDisplay
		}
		desc := a.Description
		if desc == "" {
			desc = ev.Title
		}
		alarm.SetProperty(ical.ComponentPropertyAction, string(action))
		value, params := a.trigger()
		alarm.SetProperty(ical.ComponentPropertyTrigger, value, params...)
		alarm.SetDescription(desc)
		ve.Components = append(ve.Components, alarm)
	}
	return ve
}
