package holiday

import (
	"reflect"
	"testing"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

func d(month time.Month, day int) timeutil.Date {
	return timeutil.NewDate(2025, month, day)
}

var fall2025 = Span{Start: d(time.September, 3), End: d(time.December, 10)}

var fallHolidays = []model.Holiday{
	{Name: "Labor Day", Start: d(time.September, 1), End: d(time.September, 1)},
	{Name: "Thanksgiving", Start: d(time.November, 27), End: d(time.November, 30)},
}

func TestExclusionsMondayClassSkipsNothing(t *testing.T) {
	// Labor Day is before the term starts; Thanksgiving recess has no Monday.
	got := Exclusions(timeutil.Monday, fall2025, fallHolidays)
	if len(got) != 0 {
		t.Fatalf("expected no exclusions for Monday series, got %v", got)
	}
}

func TestExclusionsRangeOnWeekday(t *testing.T) {
	if got := Exclusions(timeutil.Wednesday, fall2025, fallHolidays); len(got) != 0 {
		t.Fatalf("Nov 26 lies outside Nov 27-30 and must not be excluded, got %v", got)
	}

	week := []model.Holiday{{Name: "Thanksgiving week", Start: d(time.November, 24), End: d(time.November, 28)}}
	got := Exclusions(timeutil.Wednesday, fall2025, week)
	want := []timeutil.Date{d(time.November, 26)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Exclusions = %v, want %v", got, want)
	}

	if got := Exclusions(timeutil.Thursday, fall2025, fallHolidays); !reflect.DeepEqual(got, []timeutil.Date{d(time.November, 27)}) {
		t.Fatalf("Thursday exclusions = %v", got)
	}
}

func TestExclusionsSortedAndDeduplicated(t *testing.T) {
	holidays := []model.Holiday{
		{Name: "Late", Start: d(time.December, 8), End: d(time.December, 8)},
		{Name: "Early", Start: d(time.October, 13), End: d(time.October, 13)},
		{Name: "Overlap", Start: d(time.October, 10), End: d(time.October, 14)},
	}
	got := Exclusions(timeutil.Monday, fall2025, holidays)
	want := []timeutil.Date{d(time.October, 13), d(time.December, 8)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Exclusions = %v, want %v", got, want)
	}
}

func TestSplitAroundRange(t *testing.T) {
	week := []model.Holiday{{Name: "Thanksgiving week", Start: d(time.November, 24), End: d(time.November, 28)}}
	got := Split(timeutil.Wednesday, fall2025, week)
	want := []Span{
		{Start: d(time.September, 3), End: d(time.November, 23)},
		{Start: d(time.November, 29), End: d(time.December, 10)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %v, want %v", got, want)
	}
}

func TestSplitIgnoresNonMatchingHoliday(t *testing.T) {
	got := Split(timeutil.Monday, fall2025, fallHolidays)
	if !reflect.DeepEqual(got, []Span{fall2025}) {
		t.Fatalf("Split = %v, want the whole term", got)
	}
}

func TestSplitSkipsDegenerateBreaks(t *testing.T) {
	holidays := []model.Holiday{
		{Name: "A", Start: d(time.October, 6), End: d(time.October, 8)},
		// Starts inside A's break, so nothing can be emitted before it.
		{Name: "B", Start: d(time.October, 8), End: d(time.October, 15)},
		// Holiday on the first day of the term.
		{Name: "C", Start: d(time.September, 3), End: d(time.September, 3)},
	}
	got := Split(timeutil.Wednesday, fall2025, holidays)
	want := []Span{
		{Start: d(time.September, 4), End: d(time.October, 5)},
		{Start: d(time.October, 16), End: d(time.December, 10)},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Split = %v, want %v", got, want)
	}
	for _, s := range got {
		if s.End.Before(s.Start) {
			t.Fatalf("negative span %v", s)
		}
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyExclude {
		t.Fatalf("empty policy = %q, %v", p, err)
	}
	if p, err := ParsePolicy("SPLIT"); err != nil || p != PolicySplit {
		t.Fatalf("split policy = %q, %v", p, err)
	}
	if _, err := ParsePolicy("both"); err == nil {
		t.Fatal("expected error for unknown policy")
	}
}
