// Package feed runs the generation pipeline (courses + academic calendar ->
// ICS document) and keeps the last good document for the web server.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/willhatfield/BuckyScheduler/internal/academic"
	"github.com/willhatfield/BuckyScheduler/internal/config"
	"github.com/willhatfield/BuckyScheduler/internal/holiday"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/schedule"
	"github.com/willhatfield/BuckyScheduler/internal/scrape"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

var (
	ErrNoCourseSource = errors.New("no course source configured")
	ErrNotGenerated   = errors.New("no document generated yet")
)

// ScrapeFunc fetches and normalizes the enrollment page.
type ScrapeFunc func(ctx context.Context, opts scrape.Options, norm scrape.NormalizeOptions) ([]model.Course, error)

// Feed owns the current document. Refresh calls are serialized; readers
// never block on a running refresh.
type Feed struct {
	cfg *config.Config

	// Now is passed through to generation. Defaults to time.Now.
	Now func() time.Time
	// Scrape is used when neither a course file nor a saved payload is set.
	Scrape ScrapeFunc

	refreshMu sync.Mutex

	mu        sync.RWMutex
	doc       *schedule.Document
	updatedAt time.Time
	lastErr   error
}

// New creates a Feed for cfg. cfg must already be normalized.
func New(cfg *config.Config) *Feed {
	return &Feed{
		cfg:    cfg,
		Now:    time.Now,
		Scrape: scrape.Scrape,
	}
}

// Status is a snapshot of the feed for /health style reporting.
type Status struct {
	UpdatedAt time.Time
	Events    int
	Skipped   int
	LastError string
}

// Current returns the last good document.
func (f *Feed) Current() (*schedule.Document, time.Time, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.doc == nil {
		if f.lastErr != nil {
			return nil, time.Time{}, f.lastErr
		}
		return nil, time.Time{}, ErrNotGenerated
	}
	return f.doc, f.updatedAt, nil
}

func (f *Feed) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var st Status
	st.UpdatedAt = f.updatedAt
	if f.doc != nil {
		st.Events = len(f.doc.Events)
		st.Skipped = len(f.doc.Skipped)
	}
	if f.lastErr != nil {
		st.LastError = f.lastErr.Error()
	}
	return st
}

// Refresh runs the pipeline once. On failure the previous document stays
// current and the error is recorded.
func (f *Feed) Refresh(ctx context.Context) (*schedule.Document, error) {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	started := time.Now()
	doc, err := f.generate(ctx)

	f.mu.Lock()
	f.lastErr = err
	if err == nil {
		f.doc = doc
		f.updatedAt = f.Now()
	}
	f.mu.Unlock()

	if err != nil {
		appLog.Error("feed: refresh failed", err)
		return nil, err
	}

	if f.cfg.Output != "" {
		if werr := writeFileAtomic(f.cfg.Output, []byte(doc.Text)); werr != nil {
			// The in-memory document is still served.
			appLog.Error("feed: failed to write output", werr, "path", f.cfg.Output)
		}
	}

	appLog.Info("feed: refreshed",
		"events", len(doc.Events),
		"skipped", len(doc.Skipped),
		"elapsed", time.Since(started).String(),
	)
	return doc, nil
}

func (f *Feed) generate(ctx context.Context) (*schedule.Document, error) {
	opts, loc, err := Options(f.cfg)
	if err != nil {
		return nil, err
	}
	opts.Now = f.Now

	cal := academic.Resolve(ctx, academic.Source{
		Path:     f.cfg.Academic.Path,
		URL:      f.cfg.Academic.URL,
		CacheDir: f.cfg.Academic.CacheDir,
	})
	if f.cfg.SemesterEnd == "" {
		if last := cal.LastDay(); !last.IsZero() {
			opts.Writer.SemesterEnd = last
		}
	}

	courses, err := f.courses(ctx, cal, loc)
	if err != nil {
		return nil, err
	}
	return schedule.Generate(courses, cal, opts)
}

// courses reads the configured course file, then a saved payload, then
// scrapes the live page.
func (f *Feed) courses(ctx context.Context, cal model.AcademicCalendar, loc *time.Location) ([]model.Course, error) {
	if f.cfg.Courses != "" {
		return LoadCourses(f.cfg.Courses)
	}

	norm := scrape.NormalizeOptions{
		Term:     f.cfg.Scrape.Term,
		Calendar: cal,
		Location: loc,
	}
	if f.cfg.Scrape.PayloadPath != "" {
		data, err := os.ReadFile(f.cfg.Scrape.PayloadPath)
		if err != nil {
			return nil, fmt.Errorf("feed: read payload: %w", err)
		}
		p, err := scrape.ParsePayload(data)
		if err != nil {
			return nil, err
		}
		return scrape.Normalize(p, norm)
	}

	if f.cfg.Scrape.URL == "" || f.Scrape == nil {
		return nil, ErrNoCourseSource
	}
	return f.Scrape(ctx, scrape.Options{
		URL:        f.cfg.Scrape.URL,
		ProfileDir: f.cfg.Scrape.ProfileDir,
		Timeout:    time.Duration(f.cfg.Scrape.TimeoutSeconds) * time.Second,
	}, norm)
}

// Options maps the configuration onto generation options. The returned
// location is the configured zone.
func Options(cfg *config.Config) (schedule.Options, *time.Location, error) {
	zone, ok := ics.LookupZone(cfg.Timezone)
	if !ok {
		return schedule.Options{}, nil, fmt.Errorf("feed: unsupported timezone %q", cfg.Timezone)
	}
	loc, err := time.LoadLocation(zone.TZID)
	if err != nil {
		return schedule.Options{}, nil, fmt.Errorf("feed: load timezone: %w", err)
	}
	policy, err := holiday.ParsePolicy(cfg.HolidayPolicy)
	if err != nil {
		return schedule.Options{}, nil, err
	}

	wc := ics.Config{
		Zone:          zone,
		Location:      loc,
		UIDDomain:     cfg.UIDDomain,
		ProductID:     cfg.ProductID,
		CalendarName:  cfg.CalendarName,
		LineSeparator: cfg.Separator(),
	}
	if cfg.SemesterEnd != "" {
		end, err := timeutil.ParseCivilDate(cfg.SemesterEnd)
		if err != nil {
			return schedule.Options{}, nil, fmt.Errorf("feed: semester_end: %w", err)
		}
		wc.SemesterEnd = end
	}

	return schedule.Options{
		RespectHolidays:     cfg.RespectHolidays,
		AddAlarms:           cfg.AddAlarms,
		HolidayPolicy:       policy,
		SectionAlarmMinutes: cfg.SectionAlarmMinutes,
		ExamAlarmMinutes:    cfg.ExamAlarmMinutes,
		Writer:              wc,
	}, loc, nil
}

// LoadCourses reads a YAML or JSON course list, chosen by file extension.
func LoadCourses(path string) ([]model.Course, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("feed: read courses: %w", err)
	}

	var courses []model.Course
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &courses)
	default:
		err = yaml.Unmarshal(data, &courses)
	}
	if err != nil {
		return nil, fmt.Errorf("feed: decode courses %s: %w", path, err)
	}
	appLog.Debug("feed: loaded courses", "path", path, "count", len(courses))
	return courses, nil
}

// writeFileAtomic writes data via a temp file in the target directory.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".buckysched-*.ics.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
