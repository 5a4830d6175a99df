package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/holiday"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const (
	primaryFallbackType    = "LEC"
	additionalFallbackType = "DIS"
)

type builder struct {
	w       *ics.Writer
	cal     model.AcademicCalendar
	opts    Options
	skipped []Skip
}

func (b *builder) skip(c model.Course, unit string, err error) {
	appLog.Error("schedule: skipping unit", err, "course", c.Name, "unit", unit)
	b.skipped = append(b.skipped, Skip{Course: c.Name, Unit: unit, Err: err})
}

func (b *builder) course(c model.Course) {
	if !c.PrimarySection.IsZero() {
		b.section(c, c.PrimarySection, primaryFallbackType)
	}
	for _, s := range c.AdditionalSections {
		if s.IsZero() {
			continue
		}
		b.section(c, s, additionalFallbackType)
	}
	if c.FinalExam != nil {
		b.exam(c, *c.FinalExam)
	}
}

// sectionPlan is a validated section, ready to be expanded per weekday.
type sectionPlan struct {
	title       string
	description string
	location    string
	start, end  timeutil.Clock
	span        holiday.Span
}

func (b *builder) section(c model.Course, s model.Section, fallbackType string) {
	typ := strings.ToUpper(strings.TrimSpace(s.Type))
	if typ == "" {
		typ = fallbackType
	}
	unit := strings.TrimSpace(typ + " " + strings.TrimSpace(s.Number))

	plan, err := planSection(c, s, typ, unit)
	if err != nil {
		b.skip(c, unit, err)
		return
	}

	seen := make(map[timeutil.Weekday]bool, len(s.Meeting.Days))
	for _, day := range s.Meeting.Days {
		if seen[day] {
			continue
		}
		seen[day] = true
		if !day.Valid() {
			b.skip(c, unit+" "+string(day), fmt.Errorf("unknown weekday code %q", day))
			continue
		}
		b.weekday(c, unit, plan, day)
	}
}

func planSection(c model.Course, s model.Section, typ, unit string) (sectionPlan, error) {
	var p sectionPlan

	switch {
	case len(s.Meeting.Days) == 0:
		return p, &ics.MissingFieldError{Field: "days"}
	case strings.TrimSpace(s.Meeting.StartTime) == "":
		return p, &ics.MissingFieldError{Field: "start_time"}
	case strings.TrimSpace(s.Meeting.EndTime) == "":
		return p, &ics.MissingFieldError{Field: "end_time"}
	case strings.TrimSpace(s.Term.StartDate) == "":
		return p, &ics.MissingFieldError{Field: "term.start_date"}
	case strings.TrimSpace(s.Term.EndDate) == "":
		return p, &ics.MissingFieldError{Field: "term.end_date"}
	}

	var err error
	if p.start, err = timeutil.ParseClockTime(s.Meeting.StartTime); err != nil {
		return p, fmt.Errorf("start time: %w", err)
	}
	if p.end, err = timeutil.ParseClockTime(s.Meeting.EndTime); err != nil {
		return p, fmt.Errorf("end time: %w", err)
	}
	if !p.start.Before(p.end) {
		return p, fmt.Errorf("start %s is not before end %s", p.start, p.end)
	}

	if p.span.Start, err = timeutil.ParseCivilDate(s.Term.StartDate); err != nil {
		return p, fmt.Errorf("term start: %w", err)
	}
	if p.span.End, err = timeutil.ParseCivilDate(s.Term.EndDate); err != nil {
		return p, fmt.Errorf("term end: %w", err)
	}
	if p.span.End.Before(p.span.Start) {
		return p, fmt.Errorf("term ends %s before it starts %s", p.span.End, p.span.Start)
	}

	location := strings.TrimSpace(s.Location)
	if location == "" {
		location = model.DefaultLocation
	}

	p.title = typ + ": " + c.Name
	p.location = unit + " - " + location
	p.description = "Section: " + unit
	if instructor := strings.TrimSpace(c.Instructor); instructor != "" {
		p.description += "\nInstructor: " + instructor
	}
	return p, nil
}

// weekday emits the series for one meeting day. Under the split policy a
// holiday produces several shorter series instead of EXDATEs.
func (b *builder) weekday(c model.Course, unit string, p sectionPlan, day timeutil.Weekday) {
	spans := []holiday.Span{p.span}
	var exclusions []timeutil.Date

	if b.opts.RespectHolidays {
		switch b.opts.HolidayPolicy {
		case holiday.PolicySplit:
			spans = holiday.Split(day, p.span, b.cal.Holidays)
		default:
			exclusions = holiday.Exclusions(day, p.span, b.cal.Holidays)
		}
	}

	var alarms []ics.Alarm
	if b.opts.AddAlarms {
		alarms = []ics.Alarm{{Trigger: ics.Trigger{MinutesBefore: b.opts.SectionAlarmMinutes}}}
	}

	for _, span := range spans {
		first := timeutil.FirstOnOrAfter(span.Start, day)
		if first.After(span.End) {
			appLog.Debug("schedule: no meeting inside span",
				"course", c.Name, "unit", unit, "day", string(day),
				"start", span.Start.String(), "end", span.End.String())
			continue
		}

		_, err := b.w.AddEvent(p.title, p.description, p.location,
			timeutil.Civil(first, p.start), timeutil.Civil(first, p.end),
			ics.EventOptions{
				Recurrence: &ics.Recurrence{
					Freq:  ics.FreqWeekly,
					Until: span.End,
					ByDay: []timeutil.Weekday{day},
				},
				Holidays: exclusions,
				Alarms:   alarms,
			})
		if err != nil {
			b.skip(c, unit+" "+string(day), err)
		}
	}
}

// InferExamYear applies the academic-year heuristic: an exam in January
// through May seen after July belongs to the next calendar year.
func InferExamYear(month time.Month, now time.Time) int {
	if month <= time.May && now.Month() > time.July {
		return now.Year() + 1
	}
	return now.Year()
}
