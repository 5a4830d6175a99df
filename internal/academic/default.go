package academic

import (
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

func day(y int, m time.Month, d int) timeutil.Date { return timeutil.NewDate(y, m, d) }

// Default returns the built-in 2025-2026 table used when no file or URL is
// configured.
func Default() model.AcademicCalendar {
	return model.AcademicCalendar{
		Terms: []model.Term{
			{
				Name:        "Fall 2025",
				Start:       day(2025, time.September, 3),
				End:         day(2025, time.December, 10),
				FinalsStart: day(2025, time.December, 12),
				FinalsEnd:   day(2025, time.December, 18),
			},
			{
				Name:        "Spring 2026",
				Start:       day(2026, time.January, 20),
				End:         day(2026, time.May, 1),
				FinalsStart: day(2026, time.May, 3),
				FinalsEnd:   day(2026, time.May, 8),
			},
		},
		Holidays: []model.Holiday{
			{Name: "Labor Day", Start: day(2025, time.September, 1), End: day(2025, time.September, 1)},
			{Name: "Thanksgiving Recess", Start: day(2025, time.November, 27), End: day(2025, time.November, 30)},
			{Name: "Martin Luther King Jr. Day", Start: day(2026, time.January, 19), End: day(2026, time.January, 19)},
			{Name: "Spring Recess", Start: day(2026, time.March, 21), End: day(2026, time.March, 29)},
		},
		DST: model.DSTChanges{
			Spring: day(2026, time.March, 8),
			Fall:   day(2025, time.November, 2),
		},
	}
}
