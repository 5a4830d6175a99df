package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
)

const defaultRefreshTimeout = 2 * time.Minute

// Scheduler regenerates the feed on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	feed    *Feed
	spec    string
	entryID cron.EntryID

	// Timeout bounds one scheduled refresh.
	Timeout time.Duration
}

// NewScheduler validates spec (standard 5-field syntax or a descriptor
// such as "@every 6h") and prepares a scheduler for f.
func NewScheduler(f *Feed, spec string) (*Scheduler, error) {
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("feed: invalid refresh schedule %q: %w", spec, err)
	}
	return &Scheduler{
		cron:    cron.New(),
		feed:    f,
		spec:    spec,
		Timeout: defaultRefreshTimeout,
	}, nil
}

// Start registers the refresh job and starts the cron loop. Jobs are
// cancelled when ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	id, err := s.cron.AddFunc(s.spec, func() {
		s.run(ctx)
	})
	if err != nil {
		return err
	}
	s.entryID = id

	s.cron.Start()
	appLog.Info("feed scheduler started", "schedule", s.spec, "next", s.Next().Format(time.RFC3339))
	return nil
}

// Next reports the next scheduled run, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}

// Stop waits for a running refresh to finish.
func (s *Scheduler) Stop() {
	appLog.Info("stopping feed scheduler")
	<-s.cron.Stop().Done()
	appLog.Info("feed scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	runCtx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	// Refresh logs its own failure.
	_, _ = s.feed.Refresh(runCtx)
}
