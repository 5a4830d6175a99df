// Package scrape extracts the data object embedded in the enrollment page and
// normalizes it into courses. All knowledge of the page's field names lives
// here; the schedule builder only ever sees model.Course.
package scrape

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

var (
	ErrNoPayload   = errors.New("no enrollment data found on page")
	ErrUnknownTerm = errors.New("term not found in academic calendar")
)

// Instant is a timestamp the page renders either as an RFC 3339 string or as
// epoch milliseconds.
type Instant struct {
	time.Time
}

func (i *Instant) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			return nil
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return fmt.Errorf("scrape: timestamp %q: %w", s, err)
		}
		i.Time = t
		return nil
	}
	ms, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("scrape: timestamp %s: %w", b, err)
	}
	i.Time = time.UnixMilli(ms).UTC()
	return nil
}

// Payload is the enrollment page's data object.
type Payload struct {
	Terms struct {
		Present struct {
			Name string `json:"name"`
		} `json:"present"`
	} `json:"terms"`

	Courses          []PayloadCourse         `json:"courses"`
	Classes          []PayloadClass          `json:"classes"`
	CourseForClassID map[string]PayloadRefID `json:"courseForClassId"`
}

type PayloadRefID struct {
	ID string `json:"id"`
}

type PayloadCourse struct {
	ID               string        `json:"id"`
	SubjectShortDesc string        `json:"subjectShortDesc"`
	CatalogNumber    string        `json:"catalogNumber"`
	Title            string        `json:"title"`
	Instructor       string        `json:"instructor"`
	Exams            []PayloadExam `json:"exams"`
}

type PayloadClass struct {
	ID            string           `json:"id"`
	CourseID      string           `json:"courseId"`
	Type          string           `json:"type"`
	SectionNumber string           `json:"sectionNumber"`
	Location      string           `json:"location"`
	Meetings      []PayloadMeeting `json:"meetings"`
	Exams         []PayloadExam    `json:"exams"`
}

type PayloadMeeting struct {
	DayInitials string  `json:"dayInitials"`
	Start       Instant `json:"start"`
	End         Instant `json:"end"`
	Location    string  `json:"location"`
}

type PayloadExam struct {
	Start    Instant `json:"start"`
	End      Instant `json:"end"`
	Location string  `json:"location"`
}

// ParsePayload decodes a saved page payload.
func ParsePayload(data []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Payload{}, fmt.Errorf("scrape: decode payload: %w", err)
	}
	if len(p.Courses) == 0 && len(p.Classes) == 0 {
		return Payload{}, ErrNoPayload
	}
	return p, nil
}

// NormalizeOptions supplies what the payload itself does not carry.
type NormalizeOptions struct {
	// Term overrides the payload's present term ("Fall 2025").
	Term     string
	Calendar model.AcademicCalendar
	// Location is the zone meeting timestamps are rendered in.
	Location *time.Location
}

// Normalize converts a payload into courses, in payload order. Classes whose
// course cannot be resolved are dropped with a warning.
func Normalize(p Payload, opts NormalizeOptions) ([]model.Course, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	termName := strings.TrimSpace(opts.Term)
	if termName == "" {
		termName = strings.TrimSpace(p.Terms.Present.Name)
	}
	term, ok := lookupTerm(opts.Calendar, termName)
	if !ok {
		return nil, fmt.Errorf("scrape: %q: %w", termName, ErrUnknownTerm)
	}
	span := model.TermSpan{StartDate: term.Start.String(), EndDate: term.End.String()}

	type entry struct {
		course   model.Course
		sections []model.Section
	}
	order := make([]string, 0, len(p.Courses))
	byID := make(map[string]*entry, len(p.Courses))

	for _, pc := range p.Courses {
		id := pc.ID
		if id == "" {
			id = pc.SubjectShortDesc + pc.CatalogNumber
		}
		if _, dup := byID[id]; dup {
			continue
		}
		e := &entry{course: model.Course{
			ID:         id,
			Name:       courseName(pc),
			Instructor: strings.TrimSpace(pc.Instructor),
		}}
		if len(pc.Exams) > 0 {
			e.course.FinalExam = examInfo(pc.Exams[0], opts.Location)
		}
		byID[id] = e
		order = append(order, id)
	}

	for _, pcl := range p.Classes {
		id := pcl.CourseID
		if ref, ok := p.CourseForClassID[pcl.ID]; ok && ref.ID != "" {
			id = ref.ID
		}
		e, ok := byID[id]
		if !ok {
			appLog.Warn("scrape: class has no matching course", "class", pcl.ID, "course_id", id)
			continue
		}
		if len(pcl.Meetings) > 0 {
			e.sections = append(e.sections, section(pcl, span, opts.Location))
		}
		if e.course.FinalExam == nil && len(pcl.Exams) > 0 {
			e.course.FinalExam = examInfo(pcl.Exams[0], opts.Location)
		}
	}

	courses := make([]model.Course, 0, len(order))
	for _, id := range order {
		e := byID[id]
		if len(e.sections) == 0 && e.course.FinalExam == nil {
			appLog.Debug("scrape: course has nothing to schedule", "course", e.course.Name)
			continue
		}
		if len(e.sections) > 0 {
			primary := 0
			for i, s := range e.sections {
				if s.Type == "LEC" {
					primary = i
					break
				}
			}
			e.course.PrimarySection = e.sections[primary]
			for i, s := range e.sections {
				if i != primary {
					e.course.AdditionalSections = append(e.course.AdditionalSections, s)
				}
			}
		}
		courses = append(courses, e.course)
	}

	appLog.Info("scrape: normalized enrollment", "term", term.Name, "courses", len(courses))
	return courses, nil
}

// lookupTerm matches the exact name first, then the season keyword so that
// "fall2025" or "Fall 2025-2026" still resolve.
func lookupTerm(cal model.AcademicCalendar, name string) (model.Term, bool) {
	if t, ok := cal.Term(name); ok {
		return t, true
	}
	lower := strings.ToLower(name)
	for _, season := range []string{"fall", "spring", "summer"} {
		if !strings.Contains(lower, season) {
			continue
		}
		for _, t := range cal.Terms {
			if strings.Contains(strings.ToLower(t.Name), season) {
				return t, true
			}
		}
	}
	return model.Term{}, false
}

func courseName(pc PayloadCourse) string {
	code := strings.TrimSpace(strings.TrimSpace(pc.SubjectShortDesc) + " " + strings.TrimSpace(pc.CatalogNumber))
	title := strings.TrimSpace(pc.Title)
	switch {
	case code != "" && title != "":
		return code + ": " + title
	case code != "":
		return code
	case title != "":
		return title
	default:
		return pc.ID
	}
}

func section(pcl PayloadClass, span model.TermSpan, loc *time.Location) model.Section {
	m := pcl.Meetings[0]
	location := strings.TrimSpace(m.Location)
	if location == "" {
		location = strings.TrimSpace(pcl.Location)
	}
	return model.Section{
		Type:   strings.ToUpper(strings.TrimSpace(pcl.Type)),
		Number: strings.TrimSpace(pcl.SectionNumber),
		Meeting: model.Meeting{
			Days:      timeutil.ParseDays(m.DayInitials),
			StartTime: clockText(m.Start, loc),
			EndTime:   clockText(m.End, loc),
		},
		Location: location,
		Term:     span,
	}
}

// clockText renders an instant as the page would show it locally. A zero
// instant stays empty so the builder reports the missing field.
func clockText(i Instant, loc *time.Location) string {
	if i.IsZero() {
		return ""
	}
	t := i.In(loc)
	return timeutil.FormatClock(timeutil.Clock{Hour: t.Hour(), Minute: t.Minute()})
}

func examInfo(pe PayloadExam, loc *time.Location) *model.ExamInfo {
	if pe.Start.IsZero() {
		return nil
	}
	start := pe.Start.In(loc)
	return &model.ExamInfo{
		Date:      start.Format("Jan 2, 2006"),
		StartTime: clockText(pe.Start, loc),
		EndTime:   clockText(pe.End, loc),
		Location:  strings.TrimSpace(pe.Location),
	}
}
