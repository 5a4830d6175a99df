package schedule

import (
	"fmt"
	"strings"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const defaultExamLength = 2 * time.Hour

const examUnit = "final exam"

func (b *builder) exam(c model.Course, e model.ExamInfo) {
	start, end, err := b.examWindow(c, e)
	if err != nil {
		b.skip(c, examUnit, err)
		return
	}

	location := strings.TrimSpace(e.Location)
	if location == "" {
		location = model.DefaultLocation
	}
	description := "Final Exam"
	if instructor := strings.TrimSpace(c.Instructor); instructor != "" {
		description += "\nInstructor: " + instructor
	}

	var alarms []ics.Alarm
	if b.opts.AddAlarms {
		alarms = []ics.Alarm{{Trigger: ics.Trigger{MinutesBefore: b.opts.ExamAlarmMinutes}}}
	}

	if _, err := b.w.AddEvent("FINAL EXAM: "+c.Name, description, location, start, end, ics.EventOptions{Alarms: alarms}); err != nil {
		b.skip(c, examUnit, err)
	}
}

// examWindow resolves the civil start and end of an exam. An end clock
// earlier than the start is on the following day. A missing, unparseable or
// equal end time falls back to a two hour exam, which may also end on the
// following day.
func (b *builder) examWindow(c model.Course, e model.ExamInfo) (time.Time, time.Time, error) {
	if strings.TrimSpace(e.Date) == "" {
		return time.Time{}, time.Time{}, &ics.MissingFieldError{Field: "exam.date"}
	}
	if strings.TrimSpace(e.StartTime) == "" {
		return time.Time{}, time.Time{}, &ics.MissingFieldError{Field: "exam.start_time"}
	}

	month, day, year, err := timeutil.ParseMonthDay(e.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("exam date: %w", err)
	}
	if year == 0 {
		year = InferExamYear(month, b.opts.Now())
	}
	date := timeutil.NewDate(year, month, day)

	sc, err := timeutil.ParseClockTime(e.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("exam start: %w", err)
	}
	start := timeutil.Civil(date, sc)
	end := start.Add(defaultExamLength)

	if strings.TrimSpace(e.EndTime) != "" {
		ec, err := timeutil.ParseClockTime(e.EndTime)
		switch {
		case err != nil:
			appLog.Warn("schedule: exam end time unparseable; using default length", "course", c.Name, "end_time", e.EndTime)
		case ec == sc:
			appLog.Warn("schedule: exam end equals start; using default length", "course", c.Name, "end_time", e.EndTime)
		case ec.Before(sc):
			end = timeutil.Civil(date.AddDays(1), ec)
		default:
			end = timeutil.Civil(date, ec)
		}
	}
	return start, end, nil
}
