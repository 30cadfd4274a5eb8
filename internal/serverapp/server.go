// Package serverapp assembles the HTTP service: storage backends, per-user
// sessions, the planner API, stats and calendar endpoints.
package serverapp

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"focusflow/internal/calendar"
	"focusflow/internal/config"
	"focusflow/internal/httpmw"
	"focusflow/internal/i18n"
	"focusflow/internal/identity"
	"focusflow/internal/model"
	"focusflow/internal/planner"
	"focusflow/internal/stats"
	"focusflow/internal/store"
)

// ErrRemoteUnavailable is returned when a signed-in user reaches a
// deployment with no remote document store configured. Refusing loudly
// beats the old behavior of silently reading nothing.
var ErrRemoteUnavailable = errors.New("remote store not configured")

type Options struct {
	Config *config.Config
	Logger *log.Logger
	// Clock overrides the wall clock. Test hook.
	Clock func() time.Time
}

// session pins one user's backend choice, planner and stats cache for the
// lifetime of the process. The backend is selected once from the identity,
// not re-derived per call.
type session struct {
	user    identity.User
	backend store.Backend
	planner *planner.Planner
	stats   *stats.Cache
}

type sessions struct {
	mu     sync.Mutex
	byUID  map[string]*session
	recent []string // uids, most recently used last
	max    int
	local  *store.Local
	remote *store.Remote
	logger *log.Logger
	cfg    *config.Config
}

func (s *sessions) get(u identity.User) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byUID[u.UID]; ok {
		s.touchLocked(u.UID)
		return sess, nil
	}
	if !u.IsGuest() && s.remote == nil {
		return nil, ErrRemoteUnavailable
	}

	backend := store.Select(s.local, s.remote, u)
	cache := stats.NewCache(s.cfg.Stats.RetainMonths)
	p := planner.New(backend, cache, s.logger)
	p.SetLimit(s.cfg.Tasks.DailyLimit)

	sess := &session{user: u, backend: backend, planner: p, stats: cache}
	s.byUID[u.UID] = sess
	s.touchLocked(u.UID)

	// Evicted sessions lose only cached state; a returning user gets a
	// fresh session that re-fetches from the backend.
	for s.max > 0 && len(s.byUID) > s.max {
		evict := s.recent[0]
		s.recent = s.recent[1:]
		delete(s.byUID, evict)
		s.logger.Debug("session evicted", "uid", evict)
	}
	return sess, nil
}

func (s *sessions) touchLocked(uid string) {
	for i, id := range s.recent {
		if id == uid {
			s.recent = append(s.recent[:i], s.recent[i+1:]...)
			break
		}
	}
	s.recent = append(s.recent, uid)
}

func NewHandler(opts Options) (http.Handler, error) {
	if opts.Config == nil {
		return nil, errors.New("config is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	local, err := store.NewLocal(opts.Config.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	var remote *store.Remote
	if strings.TrimSpace(opts.Config.Storage.RemoteBaseURL) != "" {
		remote, err = store.NewRemote(opts.Config.Storage.RemoteBaseURL)
		if err != nil {
			return nil, err
		}
	}

	sess := &sessions{
		byUID:  map[string]*session{},
		max:    opts.Config.Server.MaxSessions,
		local:  local,
		remote: remote,
		logger: opts.Logger,
		cfg:    opts.Config,
	}
	calClient := calendar.NewClient(opts.Config.Calendar.BaseURL)

	app := &app{
		sessions: sess,
		calendar: calClient,
		logger:   opts.Logger,
		now:      opts.Clock,
	}

	taskHandler := planner.NewHandler(func(r *http.Request) (*planner.Planner, error) {
		s, err := sess.get(identity.FromRequest(r))
		if err != nil {
			return nil, err
		}
		return s.planner, nil
	})
	taskHandler.SetClock(opts.Clock)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", app.healthz)

	mux.HandleFunc("GET /api/tasks", taskHandler.List)
	mux.HandleFunc("POST /api/tasks", taskHandler.Create)
	mux.HandleFunc("PUT /api/tasks/order", taskHandler.Reorder)
	mux.HandleFunc("POST /api/tasks/{id}/toggle", taskHandler.Toggle)
	mux.HandleFunc("PATCH /api/tasks/{id}", taskHandler.Edit)
	mux.HandleFunc("DELETE /api/tasks/{id}", taskHandler.Delete)

	mux.HandleFunc("POST /api/tasks/{id}/subtasks", taskHandler.CreateSubtask)
	mux.HandleFunc("PUT /api/tasks/{id}/subtasks/order", taskHandler.ReorderSubtasks)
	mux.HandleFunc("POST /api/tasks/{id}/subtasks/{sid}/toggle", taskHandler.ToggleSubtask)
	mux.HandleFunc("PATCH /api/tasks/{id}/subtasks/{sid}", taskHandler.EditSubtask)
	mux.HandleFunc("DELETE /api/tasks/{id}/subtasks/{sid}", taskHandler.DeleteSubtask)

	mux.HandleFunc("GET /api/stats", app.monthlyStats)
	mux.HandleFunc("POST /api/calendar/sync", app.calendarSync)
	mux.HandleFunc("GET /api/calendar/ics", app.calendarICS)

	return httpmw.Chain(mux,
		httpmw.WithRequestID,
		httpmw.WithRecover(opts.Logger),
		httpmw.WithAccessLog(opts.Logger),
	), nil
}

type app struct {
	sessions *sessions
	calendar *calendar.Client
	logger   *log.Logger
	now      func() time.Time
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": "focusflow",
		"time":    a.now().UTC().Format(time.RFC3339),
	})
}

func (a *app) sessionFor(w http.ResponseWriter, r *http.Request) *session {
	s, err := a.sessions.get(identity.FromRequest(r))
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return nil
	}
	return s
}

// GET /api/stats?month=YYYY-MM
func (a *app) monthlyStats(w http.ResponseWriter, r *http.Request) {
	s := a.sessionFor(w, r)
	if s == nil {
		return
	}

	monthStr := r.URL.Query().Get("month")
	if monthStr == "" {
		monthStr = a.now().Format(stats.MonthLayout)
	}
	month, err := time.Parse(stats.MonthLayout, monthStr)
	if err != nil {
		writeErr(w, http.StatusBadRequest, "month must be YYYY-MM")
		return
	}

	if err := s.stats.FetchMonth(r.Context(), s.backend, month); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"month": monthStr,
		"days":  s.stats.Month(month),
	})
}

// POST /api/calendar/sync
func (a *app) calendarSync(w http.ResponseWriter, r *http.Request) {
	lang := i18n.FromRequest(r)
	user := identity.FromRequest(r)
	if user.IsGuest() {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error":   "guest_mode",
			"message": i18n.T(lang, "sync_guest_error"),
		})
		return
	}
	s := a.sessionFor(w, r)
	if s == nil {
		return
	}

	var body struct {
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if _, err := time.Parse(model.DateLayout, body.Date); err != nil {
		writeErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	token := identity.BearerToken(r)
	if token == "" {
		writeErr(w, http.StatusUnauthorized, "no_token")
		return
	}

	tasks, err := s.backend.FetchForDate(r.Context(), body.Date)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}

	report, err := a.calendar.SyncDay(r.Context(), token, tasks, body.Date)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}

	code := http.StatusOK
	message := strings.Replace(i18n.T(lang, "sync_success"), "{n}", strconv.Itoa(len(report.Synced)), 1)
	switch {
	case len(report.Failed) > 0 && len(report.Synced) == 0:
		code = http.StatusBadGateway
		message = i18n.T(lang, "sync_error")
	case len(report.Failed) > 0:
		code = http.StatusMultiStatus
	}
	writeJSON(w, code, map[string]any{
		"message": message,
		"report":  report,
	})
}

// GET /api/calendar/ics?date=YYYY-MM-DD
func (a *app) calendarICS(w http.ResponseWriter, r *http.Request) {
	s := a.sessionFor(w, r)
	if s == nil {
		return
	}
	date := r.URL.Query().Get("date")
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	tasks, err := s.backend.FetchForDate(r.Context(), date)
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	ics, err := calendar.BuildDayICS(tasks, date, a.now())
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="focusflow-`+date+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(ics))
}
