package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/willhatfield/BuckyScheduler/internal/config"
	"github.com/willhatfield/BuckyScheduler/internal/feed"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/schedule"
	"github.com/willhatfield/BuckyScheduler/internal/web"
)

type flagConfig struct {
	configPath  string
	listen      string
	courses     string
	payload     string
	output      string
	term        string
	once        bool
	preview     bool
	previewDays int
}

func main() {
	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	applyFlags(conf, flags)
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))

	appLog.Info("buckysched starting", "version", "0.1.0")
	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"holiday_policy", conf.HolidayPolicy,
		"respect_holidays", conf.RespectHolidays,
		"add_alarms", conf.AddAlarms,
		"courses", conf.Courses,
		"scrape_url", conf.Scrape.URL != "",
		"academic_url", conf.Academic.URL != "",
		"output", conf.Output,
		"refresh", conf.RefreshCron,
		"once", flags.once,
	)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	f := feed.New(conf)

	if flags.once || flags.preview {
		doc, err := f.Refresh(ctx)
		if err != nil {
			os.Exit(exitCode(err))
		}
		if flags.preview {
			if err := printPreview(os.Stdout, doc, conf.Timezone, flags.previewDays); err != nil {
				appLog.Error("preview failed", err)
				os.Exit(1)
			}
		}
		return
	}

	if err := serve(ctx, conf, f); err != nil {
		appLog.Error("server exited", err)
		os.Exit(1)
	}
	appLog.Info("buckysched exiting")
}

// serve generates once, then keeps the feed fresh on the cron schedule and
// publishes it until ctx is cancelled. A failed first refresh is not fatal;
// the server answers 503 until a refresh succeeds.
func serve(ctx context.Context, conf *config.Config, f *feed.Feed) error {
	_, _ = f.Refresh(ctx)

	sched, err := feed.NewScheduler(f, conf.RefreshCron)
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	return web.StartServer(ctx, conf, f)
}

// exitCode is 2 when nothing could be scheduled, 1 for any other failure.
func exitCode(err error) int {
	if errors.Is(err, schedule.ErrEmptyCalendar) {
		return 2
	}
	return 1
}

// printPreview lists the next days of meetings, one per line.
func printPreview(out io.Writer, doc *schedule.Document, tz string, days int) error {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return err
	}
	events, err := ics.ParseICS([]byte(doc.Text))
	if err != nil {
		return err
	}

	start := time.Now().In(loc)
	if first := firstStart(events); first.After(start) {
		start = first
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	res, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      start,
		RangeEnd:        start.AddDate(0, 0, days),
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, occ := range res.Occurrences {
		fmt.Fprintf(tw, "%s\t%s-%s\t%s\t%s\n",
			occ.Start.Format("Mon Jan 2"),
			occ.Start.Format("15:04"),
			occ.End.Format("15:04"),
			occ.Summary,
			occ.Location,
		)
	}
	if len(doc.Skipped) > 0 {
		fmt.Fprintf(tw, "\n%d skipped:\n", len(doc.Skipped))
		for _, sk := range doc.Skipped {
			fmt.Fprintf(tw, "  %s\n", sk)
		}
	}
	return tw.Flush()
}

func firstStart(events []ics.ParsedEvent) time.Time {
	var first time.Time
	for _, ev := range events {
		if first.IsZero() || ev.Start.Before(first) {
			first = ev.Start
		}
	}
	return first
}

// applyFlags lets CLI flags override the config file when set.
func applyFlags(conf *config.Config, flags flagConfig) {
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.courses != "" {
		conf.Courses = flags.courses
	}
	if flags.payload != "" {
		conf.Scrape.PayloadPath = flags.payload
	}
	if flags.output != "" {
		conf.Output = flags.output
	}
	if flags.term != "" {
		conf.Scrape.Term = flags.term
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./buckysched.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.courses, "courses", "", "YAML/JSON course file (skips scraping)")
	flag.StringVar(&cfg.payload, "payload", "", "Saved enrollment page payload (skips Chromium)")
	flag.StringVar(&cfg.output, "out", "", "Output .ics path (overrides config if set)")
	flag.StringVar(&cfg.term, "term", "", "Term name override, e.g. \"Spring 2026\"")
	flag.BoolVar(&cfg.once, "once", false, "Generate once, write the output file and exit")
	flag.BoolVar(&cfg.preview, "preview", false, "Generate once and print upcoming meetings")
	flag.IntVar(&cfg.previewDays, "preview-days", 7, "Days covered by -preview")

	flag.Parse()

	return cfg
}
