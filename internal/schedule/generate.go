// Package schedule turns normalized courses and an academic calendar into a
// rendered ICS document.
package schedule

import (
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/holiday"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
)

const (
	DefaultSectionAlarmMinutes = 15
	DefaultExamAlarmMinutes    = 60
)

// Options controls one generation pass.
type Options struct {
	RespectHolidays bool
	AddAlarms       bool
	HolidayPolicy   holiday.Policy

	SectionAlarmMinutes int
	ExamAlarmMinutes    int

	// Now drives exam year inference and DTSTAMP. Defaults to time.Now.
	Now func() time.Time

	Writer ics.Config
}

func (o *Options) normalize() {
	if o.HolidayPolicy == "" {
		o.HolidayPolicy = holiday.PolicyExclude
	}
	if o.SectionAlarmMinutes <= 0 {
		o.SectionAlarmMinutes = DefaultSectionAlarmMinutes
	}
	if o.ExamAlarmMinutes <= 0 {
		o.ExamAlarmMinutes = DefaultExamAlarmMinutes
	}
	if o.Now == nil {
		o.Now = o.Writer.Now
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Writer.Now == nil {
		o.Writer.Now = o.Now
	}
}

// Document is the result of a successful generation pass.
type Document struct {
	Text    string
	Events  []ics.Event
	Skipped []Skip
}

// Generate builds weekly series for every section and a single event for
// every final exam. Per-unit failures are skipped and reported in
// Document.Skipped; only an empty result is an error.
func Generate(courses []model.Course, cal model.AcademicCalendar, opts Options) (*Document, error) {
	opts.normalize()

	b := &builder{
		w:    ics.NewWriter(opts.Writer),
		cal:  cal,
		opts: opts,
	}
	for _, c := range courses {
		b.course(c)
	}

	events := b.w.Events()
	if len(events) == 0 {
		appLog.Warn("schedule: no events generated", "courses", len(courses), "skipped", len(b.skipped))
		return nil, &EmptyCalendarError{Skipped: b.skipped}
	}

	appLog.Info("schedule generated",
		"courses", len(courses),
		"events", len(events),
		"skipped", len(b.skipped),
		"policy", string(opts.HolidayPolicy),
	)
	return &Document{
		Text:    b.w.Render(),
		Events:  events,
		Skipped: b.skipped,
	}, nil
}
