package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
)

const DefaultTimeoutSec = 45

// payloadScript returns the page's data object as JSON, or "" when none of
// the known globals carries course data.
const payloadScript = `(() => {
  for (const name of ["data", "courseData", "scheduleData", "enrollmentData"]) {
    const v = window[name];
    if (v && typeof v === "object" && (v.courses || v.classes)) {
      return JSON.stringify(v);
    }
  }
  return "";
})()`

// Options defines one headless Chromium extraction.
type Options struct {
	// URL of the enrollment page, e.g. "https://enroll.wisc.edu/scheduler".
	URL string

	// ProfileDir is a Chromium user data directory with a signed-in session.
	// Empty uses a throwaway profile, which only works for public pages.
	ProfileDir string

	// Timeout bounds the whole run. If zero, DefaultTimeoutSec is used.
	Timeout time.Duration
}

// FetchPayload navigates to opts.URL, waits for the document body and reads
// the embedded data object.
func FetchPayload(parentCtx context.Context, opts Options) (Payload, error) {
	if opts.URL == "" {
		return Payload{}, fmt.Errorf("scrape: URL is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Duration(DefaultTimeoutSec) * time.Second
	}

	allocOpts := chromedp.DefaultExecAllocatorOptions[:]
	if opts.ProfileDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.ProfileDir))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(parentCtx, allocOpts...)
	defer allocCancel()

	ctx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	ctx, timeoutCancel := context.WithTimeout(ctx, opts.Timeout)
	defer timeoutCancel()

	var raw string
	tasks := chromedp.Tasks{
		chromedp.Navigate(opts.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		// The data object is assigned by an inline script after load.
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Evaluate(payloadScript, &raw),
	}

	started := time.Now()
	if err := chromedp.Run(ctx, tasks); err != nil {
		return Payload{}, fmt.Errorf("scrape: chromedp run failed: %w", err)
	}
	appLog.Debug("scrape: page evaluated", "bytes", len(raw), "elapsed", time.Since(started).String())

	if raw == "" {
		return Payload{}, ErrNoPayload
	}
	return ParsePayload([]byte(raw))
}

// Scrape fetches the page and normalizes it in one step.
func Scrape(ctx context.Context, opts Options, norm NormalizeOptions) ([]model.Course, error) {
	p, err := FetchPayload(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Normalize(p, norm)
}
