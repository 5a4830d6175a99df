package timeutil

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestParseWeekdayTokens(t *testing.T) {
	tests := []struct {
		token string
		want  Weekday
	}{
		{"M", Monday},
		{"T", Tuesday},
		{"W", Wednesday},
		{"R", Thursday},
		{"F", Friday},
		{"S", Saturday},
		{"U", Sunday},
		{"Mon", Monday},
		{"Tue", Tuesday},
		{"Thu", Thursday},
		{"thursday", Thursday},
		{"Sunday", Sunday},
		{"SA", Saturday},
		{"we", Wednesday},
	}
	for _, tt := range tests {
		got, ok := ParseWeekday(tt.token)
		if !ok || got != tt.want {
			t.Errorf("ParseWeekday(%q) = %q, %v; want %q", tt.token, got, ok, tt.want)
		}
	}
	if _, ok := ParseWeekday("X"); ok {
		t.Errorf("ParseWeekday(X) should fail")
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		in   string
		want []Weekday
	}{
		{"MWF", []Weekday{Monday, Wednesday, Friday}},
		{"TR", []Weekday{Tuesday, Thursday}},
		{"TuTh", []Weekday{Tuesday, Thursday}},
		{"MTWRF", []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}},
		{"Mon, Wed", []Weekday{Monday, Wednesday}},
		{"MWM", []Weekday{Monday, Wednesday}},
		{"Thursday Tuesday", []Weekday{Thursday, Tuesday}},
		{"SaSu", []Weekday{Saturday, Sunday}},
		{"", []Weekday{}},
	}
	for _, tt := range tests {
		got := ParseDays(tt.in)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseDays(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWeekdayRoundTrip(t *testing.T) {
	for d := time.Sunday; d <= time.Saturday; d++ {
		w := WeekdayOf(d)
		back, ok := w.Time()
		if !ok || back != d {
			t.Errorf("round trip %v -> %q -> %v", d, w, back)
		}
	}
}

func TestFirstOnOrAfter(t *testing.T) {
	start := NewDate(2025, time.September, 3) // Wednesday
	if got := FirstOnOrAfter(start, Wednesday); got != start {
		t.Fatalf("same-weekday should return start, got %s", got)
	}
	if got := FirstOnOrAfter(start, Monday); got != NewDate(2025, time.September, 8) {
		t.Fatalf("first Monday = %s, want 2025-09-08", got)
	}

	// Property check over a few weeks of start dates.
	for i := 0; i < 21; i++ {
		d := start.AddDays(i)
		for _, w := range []Weekday{Sunday, Monday, Tuesday, Wednesday, Thursday, Friday, Saturday} {
			got := FirstOnOrAfter(d, w)
			if got.Before(d) {
				t.Fatalf("FirstOnOrAfter(%s, %s) = %s is before start", d, w, got)
			}
			if got.Weekday() != w {
				t.Fatalf("FirstOnOrAfter(%s, %s) landed on %s", d, w, got.Weekday())
			}
			if got.Time().Sub(d.Time()) >= 7*24*time.Hour {
				t.Fatalf("FirstOnOrAfter(%s, %s) = %s is a week or more away", d, w, got)
			}
		}
	}
}

func TestParseClockTime(t *testing.T) {
	tests := []struct {
		in   string
		want Clock
	}{
		{"9:00 AM", Clock{9, 0}},
		{"12:00 AM", Clock{0, 0}},
		{"12:30 PM", Clock{12, 30}},
		{"2:45 pm", Clock{14, 45}},
		{"11:59PM", Clock{23, 59}},
	}
	for _, tt := range tests {
		got, err := ParseClockTime(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseClockTime(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}

	for _, bad := range []string{"", "9:00", "13:00 PM", "9:75 AM", "noon"} {
		if _, err := ParseClockTime(bad); !errors.Is(err, ErrInvalidTimeFormat) {
			t.Errorf("ParseClockTime(%q) err = %v, want ErrInvalidTimeFormat", bad, err)
		}
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(Clock{12, 5}); got != "12:05 PM" {
		t.Errorf("FormatClock = %q", got)
	}
	if got := FormatClock(Clock{0, 0}); got != "12:00 AM" {
		t.Errorf("FormatClock midnight = %q", got)
	}
}

func TestParseCivilDate(t *testing.T) {
	want := NewDate(2025, time.September, 3)
	for _, in := range []string{"Sep 3, 2025", "September 3, 2025", "2025-09-03", "09/03/2025", " Sep  3,  2025 ", "2025-09-03T09:00:00-05:00"} {
		got, err := ParseCivilDate(in)
		if err != nil || got != want {
			t.Errorf("ParseCivilDate(%q) = %s, %v; want %s", in, got, err, want)
		}
	}
	if _, err := ParseCivilDate("someday"); !errors.Is(err, ErrInvalidDateFormat) {
		t.Errorf("expected ErrInvalidDateFormat, got %v", err)
	}
}

func TestParseMonthDay(t *testing.T) {
	tests := []struct {
		in    string
		month time.Month
		day   int
		year  int
	}{
		{"Dec 14", time.December, 14, 0},
		{"December 14, 2025", time.December, 14, 2025},
		{"12/14", time.December, 14, 0},
		{"5/7/2026", time.May, 7, 2026},
	}
	for _, tt := range tests {
		m, d, y, err := ParseMonthDay(tt.in)
		if err != nil || m != tt.month || d != tt.day || y != tt.year {
			t.Errorf("ParseMonthDay(%q) = %v %d %d %v", tt.in, m, d, y, err)
		}
	}
	for _, bad := range []string{"Smarch 3", "13/01", "Dec"} {
		if _, _, _, err := ParseMonthDay(bad); !errors.Is(err, ErrInvalidDateFormat) {
			t.Errorf("ParseMonthDay(%q) err = %v", bad, err)
		}
	}
}

func TestCivilKeepsWallClock(t *testing.T) {
	c := Civil(NewDate(2025, time.November, 2), Clock{Hour: 2, Minute: 30})
	if c.Hour() != 2 || c.Minute() != 30 || c.Day() != 2 {
		t.Fatalf("civil time drifted: %v", c)
	}
}
