// Package academic loads the institution's academic calendar: term dates,
// holidays and DST transitions. Tables come from a local file, a remote URL
// or the built-in default.
package academic

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

var ErrEmptyTable = errors.New("academic calendar has no terms or holidays")

// Format names a serialization of the calendar table.
type Format string

const (
	FormatUnknown Format = ""
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatTOML    Format = "toml"
)

// FormatFromPath guesses the format from a file name or URL path.
func FormatFromPath(p string) Format {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatUnknown
	}
}

// fileCalendar is the on-disk shape. Dates stay text so one bad entry can be
// skipped without rejecting the table.
type fileCalendar struct {
	Terms    []fileTerm    `yaml:"terms" json:"terms" toml:"terms"`
	Holidays []fileHoliday `yaml:"holidays" json:"holidays" toml:"holidays"`
	DST      fileDST       `yaml:"dst_changes" json:"dst_changes" toml:"dst_changes"`
}

type fileTerm struct {
	Name        string `yaml:"name" json:"name" toml:"name"`
	Start       string `yaml:"start" json:"start" toml:"start"`
	End         string `yaml:"end" json:"end" toml:"end"`
	FinalsStart string `yaml:"finals_start" json:"finals_start" toml:"finals_start"`
	FinalsEnd   string `yaml:"finals_end" json:"finals_end" toml:"finals_end"`
}

// fileHoliday is either {name, date} or {name, start_date, end_date}.
type fileHoliday struct {
	Name      string `yaml:"name" json:"name" toml:"name"`
	Date      string `yaml:"date" json:"date" toml:"date"`
	StartDate string `yaml:"start_date" json:"start_date" toml:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date" toml:"end_date"`
}

type fileDST struct {
	Spring string `yaml:"spring" json:"spring" toml:"spring"`
	Fall   string `yaml:"fall" json:"fall" toml:"fall"`
}

// Load reads and decodes a calendar file; the extension selects the format.
func Load(path string) (model.AcademicCalendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.AcademicCalendar{}, fmt.Errorf("academic: read %s: %w", path, err)
	}
	return Decode(data, FormatFromPath(path))
}

// Decode parses a calendar table. With FormatUnknown it tries TOML, JSON and
// YAML in that order.
func Decode(data []byte, format Format) (model.AcademicCalendar, error) {
	var fc fileCalendar
	var err error

	switch format {
	case FormatYAML:
		err = yaml.Unmarshal(data, &fc)
	case FormatJSON:
		err = decodeJSON(data, &fc)
	case FormatTOML:
		err = decodeTOML(data, &fc)
	default:
		err = decodeAny(data, &fc)
	}
	if err != nil {
		return model.AcademicCalendar{}, fmt.Errorf("academic: decode %s: %w", formatName(format), err)
	}
	return fc.toModel()
}

func formatName(f Format) string {
	if f == FormatUnknown {
		return "table"
	}
	return string(f)
}

func decodeJSON(data []byte, fc *fileCalendar) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	return dec.Decode(fc)
}

func decodeTOML(data []byte, fc *fileCalendar) error {
	md, err := toml.Decode(string(data), fc)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		appLog.Warn("academic: ignoring unknown TOML keys", "keys", strings.Join(keys, ","))
	}
	return nil
}

func decodeAny(data []byte, fc *fileCalendar) error {
	if err := decodeTOML(data, fc); err == nil {
		return nil
	}
	*fc = fileCalendar{}
	if err := decodeJSON(data, fc); err == nil {
		return nil
	}
	*fc = fileCalendar{}
	if err := yaml.Unmarshal(data, fc); err != nil {
		return fmt.Errorf("not TOML, JSON or YAML: %w", err)
	}
	return nil
}

func (fc fileCalendar) toModel() (model.AcademicCalendar, error) {
	var out model.AcademicCalendar

	for _, t := range fc.Terms {
		term, err := t.toModel()
		if err != nil {
			appLog.Error("academic: skipping term", err, "term", t.Name)
			continue
		}
		out.Terms = append(out.Terms, term)
	}

	for _, h := range fc.Holidays {
		hol, err := h.toModel()
		if err != nil {
			appLog.Error("academic: skipping holiday", err, "holiday", h.Name)
			continue
		}
		out.Holidays = append(out.Holidays, hol)
	}

	// DST dates are informational only.
	if fc.DST.Spring != "" {
		if d, err := timeutil.ParseCivilDate(fc.DST.Spring); err == nil {
			out.DST.Spring = d
		}
	}
	if fc.DST.Fall != "" {
		if d, err := timeutil.ParseCivilDate(fc.DST.Fall); err == nil {
			out.DST.Fall = d
		}
	}

	if len(out.Terms) == 0 && len(out.Holidays) == 0 {
		return out, ErrEmptyTable
	}
	return out, nil
}

func (t fileTerm) toModel() (model.Term, error) {
	out := model.Term{Name: strings.TrimSpace(t.Name)}
	if out.Name == "" {
		return out, errors.New("term has no name")
	}

	var err error
	if out.Start, err = timeutil.ParseCivilDate(t.Start); err != nil {
		return out, fmt.Errorf("start: %w", err)
	}
	if out.End, err = timeutil.ParseCivilDate(t.End); err != nil {
		return out, fmt.Errorf("end: %w", err)
	}
	if out.End.Before(out.Start) {
		return out, fmt.Errorf("term ends %s before it starts %s", out.End, out.Start)
	}
	if t.FinalsStart != "" {
		if out.FinalsStart, err = timeutil.ParseCivilDate(t.FinalsStart); err != nil {
			return out, fmt.Errorf("finals start: %w", err)
		}
	}
	if t.FinalsEnd != "" {
		if out.FinalsEnd, err = timeutil.ParseCivilDate(t.FinalsEnd); err != nil {
			return out, fmt.Errorf("finals end: %w", err)
		}
	}
	return out, nil
}

func (h fileHoliday) toModel() (model.Holiday, error) {
	out := model.Holiday{Name: strings.TrimSpace(h.Name)}

	if h.Date != "" {
		d, err := timeutil.ParseCivilDate(h.Date)
		if err != nil {
			return out, err
		}
		out.Start, out.End = d, d
		return out, nil
	}

	var err error
	if out.Start, err = timeutil.ParseCivilDate(h.StartDate); err != nil {
		return out, fmt.Errorf("start_date: %w", err)
	}
	if out.End, err = timeutil.ParseCivilDate(h.EndDate); err != nil {
		return out, fmt.Errorf("end_date: %w", err)
	}
	if out.End.Before(out.Start) {
		return out, fmt.Errorf("range ends %s before it starts %s", out.End, out.Start)
	}
	return out, nil
}
