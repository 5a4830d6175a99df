package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen        = "127.0.0.1:8080"
	defaultTimezone      = "America/Chicago"
	defaultRefreshCron   = "0 */6 * * *"
	defaultOutput        = "./var/schedule.ics"
	defaultCacheDir      = "./var/academic-cache"
	defaultPolicy        = "exdate"
	defaultSectionAlarm  = 15
	defaultExamAlarm     = 60
	defaultScrapeTimeout = 45
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the feed server.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// AcademicConfig points at the academic calendar table. URL wins over Path;
// with neither the built-in table is used.
type AcademicConfig struct {
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`
}

// ScrapeConfig drives headless extraction of the enrollment page.
type ScrapeConfig struct {
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Term string `yaml:"term,omitempty" json:"term,omitempty"`
	// ProfileDir is a Chromium user data dir holding a signed-in session.
	ProfileDir string `yaml:"profile_dir,omitempty" json:"profile_dir,omitempty"`
	// PayloadPath reads a saved page payload instead of launching Chromium.
	PayloadPath    string `yaml:"payload_path,omitempty" json:"payload_path,omitempty"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the feed server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the single civil zone of every generated event. Only the
	// US zones with a built-in VTIMEZONE are accepted.
	Timezone string `yaml:"timezone" json:"timezone"`

	UIDDomain    string `yaml:"uid_domain" json:"uid_domain"`
	ProductID    string `yaml:"product_id,omitempty" json:"product_id,omitempty"`
	CalendarName string `yaml:"calendar_name,omitempty" json:"calendar_name,omitempty"`

	// LineSeparator is "crlf" (default) or "lf".
	LineSeparator string `yaml:"line_separator" json:"line_separator"`

	RespectHolidays bool `yaml:"respect_holidays" json:"respect_holidays"`
	AddAlarms       bool `yaml:"add_alarms" json:"add_alarms"`

	// HolidayPolicy is "exdate" or "split".
	HolidayPolicy string `yaml:"holiday_policy" json:"holiday_policy"`

	SectionAlarmMinutes int `yaml:"section_alarm_minutes" json:"section_alarm_minutes"`
	ExamAlarmMinutes    int `yaml:"exam_alarm_minutes" json:"exam_alarm_minutes"`

	// SemesterEnd bounds recurrences that carry no end of their own
	// ("2025-12-19"). Empty uses the last term end of the academic calendar.
	SemesterEnd string `yaml:"semester_end,omitempty" json:"semester_end,omitempty"`

	// Courses is a YAML or JSON file of normalized courses. When empty the
	// enrollment page is scraped.
	Courses string `yaml:"courses,omitempty" json:"courses,omitempty"`

	// Output is where each generated document is written.
	Output string `yaml:"output" json:"output"`

	// RefreshCron is a cron schedule (e.g. "0 */6 * * *") for regeneration.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	Academic AcademicConfig `yaml:"academic" json:"academic"`
	Scrape   ScrapeConfig   `yaml:"scrape" json:"scrape"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		UIDDomain:           "buckyscheduler",
		LineSeparator:       "crlf",
		RespectHolidays:     true,
		AddAlarms:           true,
		HolidayPolicy:       defaultPolicy,
		SectionAlarmMinutes: defaultSectionAlarm,
		ExamAlarmMinutes:    defaultExamAlarm,
		Output:              defaultOutput,
		RefreshCron:         defaultRefreshCron,
		LogLevel:            "info",
		Academic:            AcademicConfig{CacheDir: defaultCacheDir},
		Scrape:              ScrapeConfig{TimeoutSeconds: defaultScrapeTimeout},
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave. It never overrides an explicit choice; booleans keep their value.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.UIDDomain == "" {
		c.UIDDomain = "buckyscheduler"
	}
	switch strings.ToLower(c.LineSeparator) {
	case "lf":
		c.LineSeparator = "lf"
	default:
		c.LineSeparator = "crlf"
	}
	switch strings.ToLower(c.HolidayPolicy) {
	case "split":
		c.HolidayPolicy = "split"
	default:
		c.HolidayPolicy = defaultPolicy
	}
	if c.SectionAlarmMinutes <= 0 {
		c.SectionAlarmMinutes = defaultSectionAlarm
	}
	if c.ExamAlarmMinutes <= 0 {
		c.ExamAlarmMinutes = defaultExamAlarm
	}
	if c.Output == "" {
		c.Output = defaultOutput
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Academic.CacheDir == "" {
		c.Academic.CacheDir = defaultCacheDir
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		c.Scrape.TimeoutSeconds = defaultScrapeTimeout
	}
	if c.BasicAuth != nil && c.BasicAuth.Username == "" {
		c.BasicAuth = nil
	}
}

// Separator returns the literal line separator.
func (c *Config) Separator() string {
	if c.LineSeparator == "lf" {
		return "\n"
	}
	return "\r\n"
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded over the defaults, so absent keys keep
//     their default value, and the result is normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg atomically (temp file + rename) with 0600 permissions,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".buckysched-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
