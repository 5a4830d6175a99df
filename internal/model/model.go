package model

import (
	"strings"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

// DefaultLocation is used when a section or exam has no room.
const DefaultLocation = "Location not specified"

// Course is one enrolled course as produced by the scraper.
type Course struct {
	ID         string `yaml:"id" json:"id"`
	Name       string `yaml:"name" json:"name"`
	Instructor string `yaml:"instructor,omitempty" json:"instructor,omitempty"`

	PrimarySection     Section   `yaml:"primary_section" json:"primary_section"`
	AdditionalSections []Section `yaml:"additional_sections,omitempty" json:"additional_sections,omitempty"`

	FinalExam *ExamInfo `yaml:"final_exam,omitempty" json:"final_exam,omitempty"`
}

// Section is a single weekly meeting pattern (lecture, discussion, lab...).
type Section struct {
	Type     string   `yaml:"type" json:"type"`     // LEC, DIS, LAB, SEM or free text
	Number   string   `yaml:"number" json:"number"` // e.g. "001"
	Meeting  Meeting  `yaml:"meeting" json:"meeting"`
	Location string   `yaml:"location,omitempty" json:"location,omitempty"`
	Term     TermSpan `yaml:"term" json:"term"`
}

// IsZero reports whether the section carries no meeting data at all.
func (s Section) IsZero() bool {
	return len(s.Meeting.Days) == 0 && s.Meeting.StartTime == "" && s.Meeting.EndTime == "" &&
		s.Term.StartDate == "" && s.Term.EndDate == ""
}

// Meeting holds clock strings exactly as the enrollment page renders them
// ("9:30 AM"); parsing happens in the builder.
type Meeting struct {
	Days      []timeutil.Weekday `yaml:"days" json:"days"`
	StartTime string             `yaml:"start_time" json:"start_time"`
	EndTime   string             `yaml:"end_time" json:"end_time"`
}

// TermSpan bounds a section's recurrence, inclusive on both ends.
type TermSpan struct {
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`
}

// ExamInfo describes a final exam. Date is month+day with an optional year.
type ExamInfo struct {
	Date      string `yaml:"date" json:"date"`
	StartTime string `yaml:"start_time" json:"start_time"`
	EndTime   string `yaml:"end_time,omitempty" json:"end_time,omitempty"`
	Location  string `yaml:"location,omitempty" json:"location,omitempty"`
}

// Holiday is a single day (Start == End) or an inclusive range.
type Holiday struct {
	Name  string
	Start timeutil.Date
	End   timeutil.Date
}

// Contains reports whether d falls within the holiday.
func (h Holiday) Contains(d timeutil.Date) bool {
	return !d.Before(h.Start) && !d.After(h.End)
}

// Term is one semester as listed in the academic calendar.
type Term struct {
	Name        string
	Start       timeutil.Date
	End         timeutil.Date
	FinalsStart timeutil.Date
	FinalsEnd   timeutil.Date
}

// DSTChanges records the transition dates published with the calendar. The
// ICS writer uses fixed rules; these are informational.
type DSTChanges struct {
	Spring timeutil.Date
	Fall   timeutil.Date
}

// AcademicCalendar is the institution's holiday table plus term metadata.
type AcademicCalendar struct {
	Terms    []Term
	Holidays []Holiday
	DST      DSTChanges
}

// Term looks a term up by name, case-insensitively ("Fall 2025").
func (c AcademicCalendar) Term(name string) (Term, bool) {
	for _, t := range c.Terms {
		if strings.EqualFold(strings.TrimSpace(t.Name), strings.TrimSpace(name)) {
			return t, true
		}
	}
	return Term{}, false
}

// LastDay returns the latest term end, or the zero Date if there are no terms.
func (c AcademicCalendar) LastDay() timeutil.Date {
	var last timeutil.Date
	for _, t := range c.Terms {
		if last.IsZero() || t.End.After(last) {
			last = t.End
		}
	}
	return last
}

// Occurrence is one concrete instance of a generated event after recurrence
// expansion, in the display timezone.
type Occurrence struct {
	UID string `json:"uid"`

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string `json:"instance_key"`

	Summary     string `json:"summary"`
	Description string `json:"description"`
	Location    string `json:"location"`

	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
