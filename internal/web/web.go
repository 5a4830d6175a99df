package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/willhatfield/BuckyScheduler/internal/config"
	"github.com/willhatfield/BuckyScheduler/internal/feed"
	"github.com/willhatfield/BuckyScheduler/internal/ics"
	appLog "github.com/willhatfield/BuckyScheduler/internal/log"
	"github.com/willhatfield/BuckyScheduler/internal/model"
	"github.com/willhatfield/BuckyScheduler/internal/schedule"
	"github.com/willhatfield/BuckyScheduler/internal/timeutil"
)

const (
	defaultDays     = 7
	defaultBackfill = 1
	maxOccurrences  = 5000
)

// Source is the feed the server publishes.
type Source interface {
	Current() (*schedule.Document, time.Time, error)
	Refresh(ctx context.Context) (*schedule.Document, error)
	Status() feed.Status
}

// Server publishes the generated calendar as a subscription feed plus a
// small JSON API.
type Server struct {
	cfg    *config.Config
	source Source
	router *mux.Router

	// now anchors the days/backfill window. Tests pin it.
	now func() time.Time

	// Parsed events of the current document, so /api/occurrences does not
	// re-parse the ICS text on every request.
	parsedMu  sync.RWMutex
	parsedFor *schedule.Document
	parsed    []ics.ParsedEvent
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, src Source) *Server {
	s := &Server{
		cfg:    cfg,
		source: src,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.registerRoutes()
	return s
}

// Handler returns the router wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.router)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.router.Use(logging)
	s.router.Use(recovery)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/calendar.ics", s.handleCalendar).Methods(http.MethodGet, http.MethodHead)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/occurrences", s.handleOccurrences).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password means disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="BuckyScheduler", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleCalendar serves the current document for calendar subscriptions.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	doc, updatedAt, err := s.source.Current()
	if err != nil {
		writeUnavailable(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="schedule.ics"`)
	w.Header().Set("Cache-Control", "no-cache")
	if !updatedAt.IsZero() {
		w.Header().Set("Last-Modified", updatedAt.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Text)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(doc.Text))
}

type statusResponse struct {
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Events    int        `json:"events"`
	Skipped   int        `json:"skipped"`
	LastError string     `json:"last_error,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.source.Status()
	resp := statusResponse{Events: st.Events, Skipped: st.Skipped, LastError: st.LastError}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = &st.UpdatedAt
	}
	writeJSON(w, http.StatusOK, resp)
}

// occurrencesResponse is the JSON response shape for /api/occurrences.
type occurrencesResponse struct {
	Occurrences     []model.Occurrence `json:"occurrences"`
	TruncatedUIDs   []string           `json:"truncated_uids,omitempty"`
	RangeStart      time.Time          `json:"range_start"`
	RangeEnd        time.Time          `json:"range_end"`
	DisplayTimeZone string             `json:"display_timezone"`
}

// handleOccurrences expands the current document within a window.
//
// GET /api/occurrences?days=7&backfill=1
// GET /api/occurrences?from=2025-09-01&to=2025-09-30
//
// from/to are inclusive civil dates in the configured timezone and win over
// days/backfill.
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	doc, _, err := s.source.Current()
	if err != nil {
		writeUnavailable(w, err)
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)
	rangeStart, rangeEnd, err := s.window(r, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.parsedEvents(doc)
	if err != nil {
		appLog.Error("api occurrences: parse failed", err)
		writeError(w, http.StatusInternalServerError, "failed to parse calendar")
		return
	}

	result, err := ics.ExpandOccurrences(events, ics.ExpandConfig{
		DisplayLocation:        loc,
		RangeStart:             rangeStart,
		RangeEnd:               rangeEnd,
		MaxOccurrencesPerEvent: maxOccurrences,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	occ := result.Occurrences
	if occ == nil {
		occ = []model.Occurrence{}
	}
	writeJSON(w, http.StatusOK, occurrencesResponse{
		Occurrences:     occ,
		TruncatedUIDs:   result.TruncatedEvents,
		RangeStart:      rangeStart,
		RangeEnd:        rangeEnd,
		DisplayTimeZone: loc.String(),
	})
}

func (s *Server) window(r *http.Request, loc *time.Location) (time.Time, time.Time, error) {
	q := r.URL.Query()
	if from, to := q.Get("from"), q.Get("to"); from != "" || to != "" {
		if from == "" || to == "" {
			return time.Time{}, time.Time{}, errors.New("from and to must be given together")
		}
		fd, err := timeutil.ParseCivilDate(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		td, err := timeutil.ParseCivilDate(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		return fd.In(loc), td.AddDays(1).In(loc).Add(-time.Second), nil
	}

	days := parseIntDefault(q.Get("days"), defaultDays)
	if days <= 0 {
		days = defaultDays
	}
	backfill := parseIntDefault(q.Get("backfill"), defaultBackfill)
	if backfill < 0 {
		backfill = 0
	}
	now := s.now().In(loc)
	return now.AddDate(0, 0, -backfill), now.AddDate(0, 0, days), nil
}

func (s *Server) parsedEvents(doc *schedule.Document) ([]ics.ParsedEvent, error) {
	s.parsedMu.RLock()
	if s.parsedFor == doc {
		events := s.parsed
		s.parsedMu.RUnlock()
		return events, nil
	}
	s.parsedMu.RUnlock()

	events, err := ics.ParseICS([]byte(doc.Text))
	if err != nil {
		return nil, err
	}

	s.parsedMu.Lock()
	s.parsedFor = doc
	s.parsed = events
	s.parsedMu.Unlock()
	return events, nil
}

type refreshResponse struct {
	Events  int      `json:"events"`
	Skipped []string `json:"skipped"`
}

// handleRefresh regenerates the feed synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	doc, err := s.source.Refresh(r.Context())
	if err != nil {
		var empty *schedule.EmptyCalendarError
		if errors.As(err, &empty) {
			writeJSON(w, http.StatusUnprocessableEntity, refreshResponse{Skipped: skipStrings(empty.Skipped)})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{Events: len(doc.Events), Skipped: skipStrings(doc.Skipped)})
}

func skipStrings(skips []schedule.Skip) []string {
	out := make([]string, 0, len(skips))
	for _, sk := range skips {
		out = append(out, sk.String())
	}
	return out
}

// StartServer serves until ctx is cancelled, then shuts down gracefully.
func StartServer(ctx context.Context, cfg *config.Config, src Source) error {
	s := NewServer(cfg, src)
	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusRecorder captures the status code for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start).String(),
		)
	})
}

func recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				appLog.Error("panic recovered", errors.New("handler panic"), "value", v, "stack", string(debug.Stack()))
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeUnavailable(w http.ResponseWriter, err error) {
	msg := "calendar not generated yet"
	if !errors.Is(err, feed.ErrNotGenerated) {
		msg = err.Error()
	}
	writeError(w, http.StatusServiceUnavailable, msg)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
