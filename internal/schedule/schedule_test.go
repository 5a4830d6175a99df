package schedule

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/holiday"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

var pinnedNow = time.Date(2025, time.August, 15, 12, 0, 0, 0, time.UTC)

func baseOptions() Options {
	return Options{Now: func() time.Time { return pinnedNow }}
}

func lecture(days ...timeutil.Weekday) model.Section {
	return model.Section{
		Type:     "LEC",
		Number:   "001",
		Meeting:  model.Meeting{Days: days, StartTime: "9:00 AM", EndTime: "9:50 AM"},
		Location: "1240 Computer Sciences",
		Term:     model.TermSpan{StartDate: "2025-09-03", EndDate: "2025-12-10"},
	}
}

func course(sections ...model.Section) model.Course {
	c := model.Course{ID: "COMPSCI400", Name: "COMP SCI 400: Programming III"}
	if len(sections) > 0 {
		c.PrimarySection = sections[0]
		c.AdditionalSections = sections[1:]
	}
	return c
}

func mustGenerate(t *testing.T, courses []model.Course, cal model.AcademicCalendar, opts Options) *Document {
	t.Helper()
	doc, err := Generate(courses, cal, opts)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	return doc
}

func TestGenerateWeeklySectionPerWeekday(t *testing.T) {
	doc := mustGenerate(t, []model.Course{course(lecture(timeutil.Monday, timeutil.Wednesday))}, model.AcademicCalendar{}, baseOptions())

	if n := strings.Count(doc.Text, "BEGIN:VEVENT"); n != 2 {
		t.Fatalf("expected 2 VEVENTs, got %d\n%s", n, doc.Text)
	}
	for _, want := range []string{
		"RRULE:FREQ=WEEKLY;UNTIL=20251210T235959Z;BYDAY=MO\r\n",
		"RRULE:FREQ=WEEKLY;UNTIL=20251210T235959Z;BYDAY=WE\r\n",
		"DTSTART;TZID=America/Chicago:20250908T090000\r\n",
		"DTSTART;TZID=America/Chicago:20250903T090000\r\n",
		"DTEND;TZID=America/Chicago:20250903T095000\r\n",
		"SUMMARY:LEC: COMP SCI 400: Programming III\r\n",
		"LOCATION:LEC 001 - 1240 Computer Sciences\r\n",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(doc.Text, "EXDATE") {
		t.Errorf("holidays were not requested, but EXDATE present")
	}
	if len(doc.Skipped) != 0 {
		t.Errorf("unexpected skips: %v", doc.Skipped)
	}
}

func TestGenerateIsByteIdentical(t *testing.T) {
	courses := []model.Course{course(lecture(timeutil.Tuesday, timeutil.Thursday))}
	cal := model.AcademicCalendar{Holidays: []model.Holiday{
		{Name: "Thanksgiving", Start: timeutil.NewDate(2025, time.November, 27), End: timeutil.NewDate(2025, time.November, 30)},
	}}
	opts := baseOptions()
	opts.RespectHolidays = true
	opts.AddAlarms = true

	a := mustGenerate(t, courses, cal, opts)
	b := mustGenerate(t, courses, cal, opts)
	if a.Text != b.Text {
		t.Fatalf("output differs between identical runs")
	}
}

func TestGenerateExdatePolicy(t *testing.T) {
	cal := model.AcademicCalendar{Holidays: []model.Holiday{
		{Name: "Labor Day", Start: timeutil.NewDate(2025, time.September, 1), End: timeutil.NewDate(2025, time.September, 1)},
		{Name: "Thanksgiving Break", Start: timeutil.NewDate(2025, time.November, 24), End: timeutil.NewDate(2025, time.November, 28)},
	}}
	opts := baseOptions()
	opts.RespectHolidays = true

	doc := mustGenerate(t, []model.Course{course(lecture(timeutil.Monday, timeutil.Wednesday))}, cal, opts)

	for _, want := range []string{
		"EXDATE;TZID=America/Chicago:20251124T090000\r\n",
		"EXDATE;TZID=America/Chicago:20251126T090000\r\n",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("missing %q\n%s", want, doc.Text)
		}
	}
	if strings.Contains(doc.Text, "20250901T090000") {
		t.Errorf("Labor Day precedes the term and must not be excluded")
	}
	if n := strings.Count(doc.Text, "BEGIN:VEVENT"); n != 2 {
		t.Fatalf("exdate policy keeps one series per weekday, got %d", n)
	}
}

func TestGenerateSplitPolicy(t *testing.T) {
	cal := model.AcademicCalendar{Holidays: []model.Holiday{
		{Name: "Break", Start: timeutil.NewDate(2025, time.November, 26), End: timeutil.NewDate(2025, time.November, 26)},
	}}
	opts := baseOptions()
	opts.RespectHolidays = true
	opts.HolidayPolicy = holiday.PolicySplit

	doc := mustGenerate(t, []model.Course{course(lecture(timeutil.Wednesday))}, cal, opts)

	if len(doc.Events) != 2 {
		t.Fatalf("expected 2 split series, got %d", len(doc.Events))
	}
	for _, want := range []string{
		"DTSTART;TZID=America/Chicago:20250903T090000\r\n",
		"RRULE:FREQ=WEEKLY;UNTIL=20251125T235959Z;BYDAY=WE\r\n",
		"DTSTART;TZID=America/Chicago:20251203T090000\r\n",
		"RRULE:FREQ=WEEKLY;UNTIL=20251210T235959Z;BYDAY=WE\r\n",
	} {
		if !strings.Contains(doc.Text, want) {
			t.Errorf("missing %q", want)
		}
	}
	if strings.Contains(doc.Text, "EXDATE") {
		t.Errorf("split policy must not write EXDATE")
	}
}

func TestSectionDefaultsAndDescription(t *testing.T) {
	dis := lecture(timeutil.Friday)
	dis.Type = ""
	dis.Number = "311"
	dis.Location = ""

	c := course(lecture(timeutil.Monday), dis)
	c.Instructor = "Jane Doe"

	doc := mustGenerate(t, []model.Course{c}, model.AcademicCalendar{}, baseOptions())
	if len(doc.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(doc.Events))
	}

	got := doc.Events[1]
	if got.Title != "DIS: COMP SCI 400: Programming III" {
		t.Errorf("Title = %q", got.Title)
	}
	if got.Location != "DIS 311 - "+model.DefaultLocation {
		t.Errorf("Location = %q", got.Location)
	}
	if got.Description != "Section: DIS 311\nInstructor: Jane Doe" {
		t.Errorf("Description = %q", got.Description)
	}

	parsed, err := ics.ParseICS([]byte(doc.Text))
	if err != nil {
		t.Fatal(err)
	}
	if parsed[1].Description != got.Description {
		t.Errorf("description did not survive rendering: %q", parsed[1].Description)
	}
}

func TestInvalidSectionsAreSkipped(t *testing.T) {
	bad := lecture(timeutil.Tuesday)
	bad.Type = "LAB"
	bad.Meeting.StartTime = "noon"

	missing := lecture(timeutil.Thursday)
	missing.Type = "SEM"
	missing.Term.EndDate = ""

	inverted := lecture(timeutil.Friday)
	inverted.Type = "DIS"
	inverted.Meeting.StartTime, inverted.Meeting.EndTime = "10:00 AM", "9:00 AM"

	doc := mustGenerate(t, []model.Course{course(lecture(timeutil.Monday), bad, missing, inverted)}, model.AcademicCalendar{}, baseOptions())

	if len(doc.Events) != 1 {
		t.Fatalf("expected only the valid section, got %d events", len(doc.Events))
	}
	if len(doc.Skipped) != 3 {
		t.Fatalf("expected 3 skips, got %v", doc.Skipped)
	}
	if !errors.Is(doc.Skipped[0].Err, timeutil.ErrInvalidTimeFormat) || doc.Skipped[0].Unit != "LAB 001" {
		t.Errorf("skip[0] = %v", doc.Skipped[0])
	}
	if !errors.Is(doc.Skipped[1].Err, ics.ErrMissingField) {
		t.Errorf("skip[1] = %v", doc.Skipped[1])
	}
}

func TestFirstMeetingAfterTermEndIsSkipped(t *testing.T) {
	s := lecture(timeutil.Friday)
	s.Term = model.TermSpan{StartDate: "2025-09-08", EndDate: "2025-09-10"}
	_, err := Generate([]model.Course{course(s)}, model.AcademicCalendar{}, baseOptions())
	if !errors.Is(err, ErrEmptyCalendar) {
		t.Fatalf("err = %v, want ErrEmptyCalendar", err)
	}
}

func TestEmptyCalendarCarriesReasons(t *testing.T) {
	bad := lecture(timeutil.Monday)
	bad.Meeting.EndTime = "25:00"

	_, err := Generate([]model.Course{course(bad), {Name: "No sections"}}, model.AcademicCalendar{}, baseOptions())
	var empty *EmptyCalendarError
	if !errors.As(err, &empty) {
		t.Fatalf("err = %v, want *EmptyCalendarError", err)
	}
	if !errors.Is(err, ErrEmptyCalendar) {
		t.Fatalf("EmptyCalendarError must unwrap to ErrEmptyCalendar")
	}
	if len(empty.Skipped) != 1 || !errors.Is(empty.Skipped[0].Err, timeutil.ErrInvalidTimeFormat) {
		t.Fatalf("Skipped = %v", empty.Skipped)
	}
}

func TestFinalExamEvents(t *testing.T) {
	tests := []struct {
		name      string
		exam      model.ExamInfo
		wantStart string
		wantEnd   string
	}{
		{
			name:      "start only defaults to two hours",
			exam:      model.ExamInfo{Date: "Dec 14", StartTime: "10:05 AM"},
			wantStart: "20251214T100500",
			wantEnd:   "20251214T120500",
		},
		{
			name:      "explicit end",
			exam:      model.ExamInfo{Date: "December 14, 2025", StartTime: "2:45 PM", EndTime: "4:45 PM"},
			wantStart: "20251214T144500",
			wantEnd:   "20251214T164500",
		},
		{
			name:      "spring exam seen in autumn is next year",
			exam:      model.ExamInfo{Date: "May 5", StartTime: "7:25 PM", EndTime: "garbage"},
			wantStart: "20260505T192500",
			wantEnd:   "20260505T212500",
		},
		{
			name:      "late start rolls past midnight",
			exam:      model.ExamInfo{Date: "12/14", StartTime: "11:00 PM"},
			wantStart: "20251214T230000",
			wantEnd:   "20251215T010000",
		},
		{
			name:      "explicit end after midnight is next day",
			exam:      model.ExamInfo{Date: "Dec 14", StartTime: "10:00 PM", EndTime: "12:30 AM"},
			wantStart: "20251214T220000",
			wantEnd:   "20251215T003000",
		},
		{
			name:      "end equal to start defaults to two hours",
			exam:      model.ExamInfo{Date: "Dec 14", StartTime: "9:00 AM", EndTime: "9:00 AM"},
			wantStart: "20251214T090000",
			wantEnd:   "20251214T110000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exam := tt.exam
			c := model.Course{Name: "COMP SCI 400: Programming III", FinalExam: &exam}
			doc := mustGenerate(t, []model.Course{c}, model.AcademicCalendar{}, baseOptions())
			for _, want := range []string{
				"DTSTART;TZID=America/Chicago:" + tt.wantStart + "\r\n",
				"DTEND;TZID=America/Chicago:" + tt.wantEnd + "\r\n",
				"SUMMARY:FINAL EXAM: COMP SCI 400: Programming III\r\n",
				"LOCATION:" + model.DefaultLocation + "\r\n",
			} {
				if !strings.Contains(doc.Text, want) {
					t.Errorf("missing %q", want)
				}
			}
			if strings.Contains(doc.Text, "RRULE:FREQ=WEEKLY") {
				t.Errorf("final exam must not recur")
			}
		})
	}
}

func TestAlarms(t *testing.T) {
	c := course(lecture(timeutil.Monday))
	c.FinalExam = &model.ExamInfo{Date: "Dec 14", StartTime: "10:05 AM", Location: "Bascom 272"}
	opts := baseOptions()
	opts.AddAlarms = true

	doc := mustGenerate(t, []model.Course{c}, model.AcademicCalendar{}, opts)
	if !strings.Contains(doc.Text, "TRIGGER:-PT15M\r\n") {
		t.Errorf("section alarm missing")
	}
	if !strings.Contains(doc.Text, "TRIGGER:-PT60M\r\n") {
		t.Errorf("exam alarm missing")
	}
	if n := strings.Count(doc.Text, "BEGIN:VALARM"); n != 2 {
		t.Errorf("expected 2 alarms, got %d", n)
	}

	opts.AddAlarms = false
	doc = mustGenerate(t, []model.Course{c}, model.AcademicCalendar{}, opts)
	if strings.Contains(doc.Text, "BEGIN:VALARM") {
		t.Errorf("alarms written although disabled")
	}
}

func TestInferExamYear(t *testing.T) {
	tests := []struct {
		month time.Month
		now   time.Time
		want  int
	}{
		{time.December, time.Date(2025, time.September, 1, 0, 0, 0, 0, time.UTC), 2025},
		{time.May, time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC), 2026},
		{time.May, time.Date(2025, time.July, 31, 0, 0, 0, 0, time.UTC), 2025},
		{time.January, time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC), 2026},
		{time.June, time.Date(2025, time.November, 1, 0, 0, 0, 0, time.UTC), 2025},
	}
	for _, tt := range tests {
		if got := InferExamYear(tt.month, tt.now); got != tt.want {
			t.Errorf("InferExamYear(%v, %v) = %d, want %d", tt.month, tt.now.Format("2006-01"), got, tt.want)
		}
	}
}
