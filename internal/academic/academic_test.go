package academic

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const yamlTable = `
terms:
  - name: Fall 2025
    start: "2025-09-03"
    end: "2025-12-10"
    finals_start: "2025-12-12"
    finals_end: "2025-12-18"
holidays:
  - name: Labor Day
    date: "2025-09-01"
  - name: Thanksgiving Recess
    start_date: "2025-11-27"
    end_date: "2025-11-30"
  - name: Broken
    date: "someday"
dst_changes:
  spring: "2026-03-08"
  fall: "2025-11-02"
`

const jsonTable = `{
  "terms": [{"name": "Spring 2026", "start": "Jan 20, 2026", "end": "May 1, 2026"}],
  "holidays": [{"name": "Spring Recess", "start_date": "2026-03-21", "end_date": "2026-03-29"}]
}`

const tomlTable = `
[[terms]]
name = "Fall 2025"
start = "2025-09-03"
end = "2025-12-10"

[[holidays]]
name = "Inverted"
start_date = "2025-11-30"
end_date = "2025-11-27"

[[holidays]]
name = "Labor Day"
date = "2025-09-01"

[dst_changes]
fall = "2025-11-02"
`

func checkHoliday(t *testing.T, h model.Holiday, name string, start, end timeutil.Date) {
	t.Helper()
	if h.Name != name || h.Start != start || h.End != end {
		t.Errorf("holiday = %+v, want %s %s..%s", h, name, start, end)
	}
}

func TestDecodeFormats(t *testing.T) {
	t.Run("yaml", func(t *testing.T) {
		cal, err := Decode([]byte(yamlTable), FormatYAML)
		if err != nil {
			t.Fatal(err)
		}
		if len(cal.Terms) != 1 || cal.Terms[0].FinalsEnd != timeutil.NewDate(2025, time.December, 18) {
			t.Fatalf("terms = %+v", cal.Terms)
		}
		if len(cal.Holidays) != 2 {
			t.Fatalf("invalid holiday must be skipped, got %+v", cal.Holidays)
		}
		checkHoliday(t, cal.Holidays[0], "Labor Day", timeutil.NewDate(2025, time.September, 1), timeutil.NewDate(2025, time.September, 1))
		checkHoliday(t, cal.Holidays[1], "Thanksgiving Recess", timeutil.NewDate(2025, time.November, 27), timeutil.NewDate(2025, time.November, 30))
		if cal.DST.Fall != timeutil.NewDate(2025, time.November, 2) {
			t.Errorf("DST.Fall = %v", cal.DST.Fall)
		}
	})

	t.Run("json", func(t *testing.T) {
		cal, err := Decode([]byte(jsonTable), FormatJSON)
		if err != nil {
			t.Fatal(err)
		}
		term, ok := cal.Term("spring 2026")
		if !ok || term.Start != timeutil.NewDate(2026, time.January, 20) {
			t.Fatalf("Term lookup = %+v, %v", term, ok)
		}
	})

	t.Run("toml", func(t *testing.T) {
		cal, err := Decode([]byte(tomlTable), FormatTOML)
		if err != nil {
			t.Fatal(err)
		}
		if len(cal.Holidays) != 1 || cal.Holidays[0].Name != "Labor Day" {
			t.Fatalf("inverted range must be skipped, got %+v", cal.Holidays)
		}
	})

	t.Run("unknown format sniffs", func(t *testing.T) {
		for _, body := range []string{yamlTable, jsonTable, tomlTable} {
			cal, err := Decode([]byte(body), FormatUnknown)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if len(cal.Terms) != 1 {
				t.Fatalf("terms = %+v", cal.Terms)
			}
		}
	})
}

func TestDecodeEmptyTable(t *testing.T) {
	_, err := Decode([]byte(`{"terms": [], "holidays": []}`), FormatJSON)
	if !errors.Is(err, ErrEmptyTable) {
		t.Fatalf("err = %v, want ErrEmptyTable", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"calendar.yaml":                    FormatYAML,
		"/etc/bucky/calendar.YML":          FormatYAML,
		"calendar.json":                    FormatJSON,
		"https://x.edu/cal.toml?token=abc": FormatTOML,
		"https://x.edu/academic-calendar":  FormatUnknown,
	}
	for in, want := range tests {
		if got := FormatFromPath(in); got != want {
			t.Errorf("FormatFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDefaultTable(t *testing.T) {
	cal := Default()
	fall, ok := cal.Term("Fall 2025")
	if !ok {
		t.Fatalf("Fall 2025 missing")
	}
	if fall.Start.Weekday() != timeutil.Wednesday {
		t.Errorf("fall instruction should begin on a Wednesday, got %s", fall.Start.Weekday())
	}
	if cal.LastDay() != timeutil.NewDate(2026, time.May, 1) {
		t.Errorf("LastDay = %v", cal.LastDay())
	}
	if len(cal.Holidays) != 4 {
		t.Errorf("holidays = %d", len(cal.Holidays))
	}
}

func TestFetcherConditionalGet(t *testing.T) {
	var hits, notModified atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			notModified.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(jsonTable))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	ctx := context.Background()

	cal, res, err := f.Calendar(ctx, srv.URL+"/calendar")
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	if res.FromCache || res.Format != FormatJSON || len(cal.Terms) != 1 {
		t.Fatalf("first fetch result = %+v", res)
	}

	cal, res, err = f.Calendar(ctx, srv.URL+"/calendar")
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if !res.FromCache || notModified.Load() != 1 {
		t.Fatalf("expected 304 served from cache, got %+v (304s=%d)", res, notModified.Load())
	}
	if len(cal.Holidays) != 1 {
		t.Fatalf("cached body decoded to %+v", cal)
	}
	if hits.Load() != 2 {
		t.Fatalf("hits = %d", hits.Load())
	}
}

func TestFetcherFallsBackToCacheOnError(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			http.Error(w, "down", http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(yamlTable))
	}))
	defer srv.Close()

	f := NewFetcher(t.TempDir())
	url := srv.URL + "/calendar.yaml"
	if _, err := f.Fetch(context.Background(), url); err != nil {
		t.Fatal(err)
	}

	fail.Store(true)
	res, err := f.Fetch(context.Background(), url)
	if err != nil {
		t.Fatalf("expected cached fallback, got %v", err)
	}
	if !res.FromCache || res.Format != FormatYAML {
		t.Fatalf("result = %+v", res)
	}

	empty := NewFetcher(t.TempDir())
	if _, err := empty.Fetch(context.Background(), url); err == nil {
		t.Fatalf("expected error without cache")
	}
}

func TestResolveFallbacks(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calendar.toml")
	if err := os.WriteFile(path, []byte(tomlTable), 0o600); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cal := Resolve(context.Background(), Source{URL: srv.URL + "/calendar.json", Path: path, CacheDir: dir})
	if len(cal.Holidays) != 1 || cal.Holidays[0].Name != "Labor Day" {
		t.Fatalf("expected file table after URL failure, got %+v", cal)
	}

	cal = Resolve(context.Background(), Source{Path: filepath.Join(dir, "missing.yaml")})
	if len(cal.Holidays) != len(Default().Holidays) {
		t.Fatalf("expected built-in table, got %+v", cal)
	}
}
