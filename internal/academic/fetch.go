package academic

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
)

const maxTableBytes = 1 << 20

// FetchResult is the raw table body of one remote fetch.
type FetchResult struct {
	URL       string
	Body      []byte
	Format    Format
	FromCache bool // true when the body came from disk (304 or fallback)
}

// cacheEntry holds the HTTP validators for one table URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	ContentType  string    `json:"content_type,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher downloads calendar tables with conditional GET and keeps the last
// good body on disk, so an unreachable server still yields a table.
type Fetcher struct {
	client   *http.Client
	cacheDir string
}

// NewFetcher creates a Fetcher caching under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./var/academic-cache"
	}
	return &Fetcher{
		client:   &http.Client{Timeout: 15 * time.Second},
		cacheDir: cacheDir,
	}
}

// Calendar fetches and decodes the table at rawURL.
func (f *Fetcher) Calendar(ctx context.Context, rawURL string) (model.AcademicCalendar, FetchResult, error) {
	res, err := f.Fetch(ctx, rawURL)
	if err != nil {
		return model.AcademicCalendar{}, res, err
	}
	cal, err := Decode(res.Body, res.Format)
	return cal, res, err
}

// Fetch retrieves rawURL, honoring ETag and Last-Modified from the cache.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if rawURL == "" {
		return FetchResult{}, errors.New("academic: calendar URL is empty")
	}

	cachePath := f.cachePathForURL(rawURL)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return FetchResult{}, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))
	cached := FetchResult{
		URL:       rawURL,
		Body:      cachedBody,
		Format:    detectFormat(rawURL, meta.ContentType),
		FromCache: true,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Info("academic fetch start", "url", redactURL(rawURL))

	resp, err := f.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("academic fetch network error, using cached body", err, "url", redactURL(rawURL))
			return cached, nil
		}
		return FetchResult{}, fmt.Errorf("academic: fetch: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxTableBytes))
		if err != nil {
			return FetchResult{}, fmt.Errorf("academic: read body: %w", err)
		}
		newMeta := cacheEntry{
			URL:          rawURL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			ContentType:  resp.Header.Get("Content-Type"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("academic cache save failed", err, "url", redactURL(rawURL))
		}
		appLog.Info("academic fetch success", "url", redactURL(rawURL), "bytes", len(body))
		return FetchResult{
			URL:    rawURL,
			Body:   body,
			Format: detectFormat(rawURL, newMeta.ContentType),
		}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("academic: 304 Not Modified but no cached body")
		}
		appLog.Info("academic fetch not modified; using cache", "url", redactURL(rawURL))
		return cached, nil

	default:
		if len(cachedBody) > 0 {
			appLog.Error("academic fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(rawURL), "status", resp.StatusCode)
			return cached, nil
		}
		return FetchResult{}, fmt.Errorf("academic: fetch: %s", resp.Status)
	}
}

// detectFormat prefers the URL extension, then the Content-Type.
func detectFormat(rawURL, contentType string) Format {
	if u, err := url.Parse(rawURL); err == nil {
		if f := FormatFromPath(u.Path); f != FormatUnknown {
			return f
		}
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	switch mt {
	case "application/json":
		return FormatJSON
	case "application/toml":
		return FormatTOML
	case "application/yaml", "application/x-yaml", "text/yaml":
		return FormatYAML
	}
	return FormatUnknown
}

func (f *Fetcher) cachePathForURL(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return filepath.Join(f.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps only scheme and host for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
