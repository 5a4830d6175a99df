package academic

import (
	"context"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
)

// Source says where the table comes from. URL wins over Path; with neither
// the built-in table is used.
type Source struct {
	Path     string
	URL      string
	CacheDir string
}

// Resolve loads the calendar for src. A failing URL falls back to Path, and a
// failing Path falls back to Default; the error is only logged.
func Resolve(ctx context.Context, src Source) model.AcademicCalendar {
	if src.URL != "" {
		cal, _, err := NewFetcher(src.CacheDir).Calendar(ctx, src.URL)
		if err == nil {
			return cal
		}
		appLog.Error("academic: remote table unusable; falling back", err, "url", redactURL(src.URL))
	}
	if src.Path != "" {
		cal, err := Load(src.Path)
		if err == nil {
			appLog.Debug("academic: loaded table", "path", src.Path, "terms", len(cal.Terms), "holidays", len(cal.Holidays))
			return cal
		}
		appLog.Error("academic: table file unusable; using built-in table", err, "path", src.Path)
	}
	return Default()
}
