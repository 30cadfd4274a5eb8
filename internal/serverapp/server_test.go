package serverapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"focusflow/internal/config"
	"focusflow/internal/identity"
	"focusflow/internal/model"
	"focusflow/internal/store"
)

func newTestServer(t *testing.T, mutate func(*config.Config)) *httptest.Server {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	if mutate != nil {
		mutate(cfg)
	}

	h, err := NewHandler(Options{
		Config: cfg,
		Logger: log.New(io.Discard),
		Clock:  func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, headers map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { res.Body.Close() })

	var decoded map[string]any
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), "body: %s", raw)
	}
	return res, decoded
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, nil)
	res, body := doJSON(t, "GET", srv.URL+"/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestGuestTaskFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	// A fresh day is empty.
	res, body := doJSON(t, "GET", srv.URL+"/api/tasks?date=2026-08-28", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2026-08-28", body["date"])
	assert.Empty(t, body["tasks"])

	// Five adds succeed; ids carry the local store's scheme.
	var ids []string
	for i := 1; i <= 5; i++ {
		res, body = doJSON(t, "POST", srv.URL+"/api/tasks",
			map[string]string{"content": fmt.Sprintf("task %d", i), "date": "2026-08-28"}, nil)
		require.Equal(t, http.StatusCreated, res.StatusCode)
		id := body["id"].(string)
		assert.Contains(t, id, "guest_")
		ids = append(ids, id)
	}

	// The sixth is refused with the localized limit message.
	res, body = doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "task 6", "date": "2026-08-28"}, nil)
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "Daily limit reached (5 tasks)", body["error"])

	// Same refusal in Vietnamese.
	res, body = doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "task 6", "date": "2026-08-28"},
		map[string]string{"Accept-Language": "vi"})
	require.Equal(t, http.StatusConflict, res.StatusCode)
	assert.Equal(t, "Đã đạt giới hạn ngày (5 việc)", body["error"])

	// Toggle the first, then verify the list reflects it.
	res, body = doJSON(t, "POST", srv.URL+"/api/tasks/"+ids[0]+"/toggle", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, body["isCompleted"])

	// Drag the last task to the front.
	reordered := append([]string{ids[4]}, ids[:4]...)
	res, body = doJSON(t, "PUT", srv.URL+"/api/tasks/order",
		map[string][]string{"ids": reordered}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body = doJSON(t, "GET", srv.URL+"/api/tasks?date=2026-08-28", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	tasks := body["tasks"].([]any)
	require.Len(t, tasks, 5)
	first := tasks[0].(map[string]any)
	assert.Equal(t, ids[4], first["id"])

	// Deleting frees a slot under the cap.
	res, _ = doJSON(t, "DELETE", srv.URL+"/api/tasks/"+ids[1], nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	res, _ = doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "replacement", "date": "2026-08-28"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
}

func TestTaskValidation(t *testing.T) {
	srv := newTestServer(t, nil)

	res, body := doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "   ", "date": "2026-08-28"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "Task content must not be blank.", body["error"])

	res, _ = doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "x", "date": "28-08-2026"}, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, _ = doJSON(t, "POST", srv.URL+"/api/tasks/ghost/toggle", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = doJSON(t, "PUT", srv.URL+"/api/tasks/order",
		map[string][]string{"ids": {"ghost"}}, nil)
	assert.Equal(t, http.StatusConflict, res.StatusCode)
}

func TestSubtaskFlow(t *testing.T) {
	srv := newTestServer(t, nil)

	_, created := doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "parent", "date": "2026-08-28"}, nil)
	parentID := created["id"].(string)

	res, sub := doJSON(t, "POST", srv.URL+"/api/tasks/"+parentID+"/subtasks",
		map[string]string{"content": "child"}, nil)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	subID := sub["id"].(string)
	assert.Contains(t, subID, "sub_")

	res, sub = doJSON(t, "POST", srv.URL+"/api/tasks/"+parentID+"/subtasks/"+subID+"/toggle", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, true, sub["isCompleted"])

	res, _ = doJSON(t, "PATCH", srv.URL+"/api/tasks/"+parentID+"/subtasks/"+subID,
		map[string]string{"content": "renamed child"}, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = doJSON(t, "DELETE", srv.URL+"/api/tasks/"+parentID+"/subtasks/"+subID, nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = doJSON(t, "POST", srv.URL+"/api/tasks/"+parentID+"/subtasks/missing/toggle", nil, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestMonthlyStats(t *testing.T) {
	srv := newTestServer(t, nil)

	_, created := doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "done today", "date": "2026-08-28"}, nil)
	doJSON(t, "POST", srv.URL+"/api/tasks/"+created["id"].(string)+"/toggle", nil, nil)
	doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "pending", "date": "2026-08-05"}, nil)

	res, body := doJSON(t, "GET", srv.URL+"/api/stats?month=2026-08", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2026-08", body["month"])

	days := body["days"].(map[string]any)
	day28 := days["2026-08-28"].(map[string]any)
	assert.Equal(t, float64(1), day28["total"])
	assert.Equal(t, float64(1), day28["completed"])
	day5 := days["2026-08-05"].(map[string]any)
	assert.Equal(t, float64(1), day5["total"])
	assert.Equal(t, float64(0), day5["completed"])

	res, _ = doJSON(t, "GET", srv.URL+"/api/stats?month=Aug-2026", nil, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	// Month defaults to the server clock's current month.
	res, body = doJSON(t, "GET", srv.URL+"/api/stats", nil, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "2026-08", body["month"])
}

func TestCalendarSyncGuestRefused(t *testing.T) {
	srv := newTestServer(t, nil)

	res, body := doJSON(t, "POST", srv.URL+"/api/calendar/sync",
		map[string]string{"date": "2026-08-28"}, nil)
	require.Equal(t, http.StatusForbidden, res.StatusCode)
	assert.Equal(t, "guest_mode", body["error"])
	assert.Equal(t, "Sign in with Google to use Calendar Sync.", body["message"])
}

func TestSessionTableEvictsLeastRecentlyUsed(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.DataDir = t.TempDir()
	local, err := store.NewLocal(cfg.Storage.DataDir)
	require.NoError(t, err)
	remote, err := store.NewRemote("http://store.invalid")
	require.NoError(t, err)

	s := &sessions{
		byUID:  map[string]*session{},
		max:    2,
		local:  local,
		remote: remote,
		logger: log.New(io.Discard),
		cfg:    cfg,
	}

	first, err := s.get(identity.User{UID: "u-1"})
	require.NoError(t, err)
	_, err = s.get(identity.User{UID: "u-2"})
	require.NoError(t, err)

	// Touching u-1 makes u-2 the eviction candidate.
	again, err := s.get(identity.User{UID: "u-1"})
	require.NoError(t, err)
	assert.Same(t, first, again)

	_, err = s.get(identity.User{UID: "u-3"})
	require.NoError(t, err)
	require.Len(t, s.byUID, 2)
	_, kept := s.byUID["u-1"]
	assert.True(t, kept)
	_, evicted := s.byUID["u-2"]
	assert.False(t, evicted)

	// An evicted user comes back with a fresh session, not an error.
	_, err = s.get(identity.User{UID: "u-2"})
	require.NoError(t, err)
	assert.Len(t, s.byUID, 2)
}

func TestSignedInWithoutRemoteStoreRefused(t *testing.T) {
	srv := newTestServer(t, nil)

	res, _ := doJSON(t, "GET", srv.URL+"/api/tasks?date=2026-08-28", nil,
		map[string]string{"X-User-Id": "u-42"})
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)
}

func TestSignedInCalendarSync(t *testing.T) {
	var events int
	calSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		events++
		w.WriteHeader(http.StatusOK)
	}))
	defer calSrv.Close()

	docStore := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]model.Task{
			{ID: "doc-1", Content: "remote task", Date: "2026-08-28", UserID: "u-42"},
		})
	}))
	defer docStore.Close()

	srv := newTestServer(t, func(c *config.Config) {
		c.Storage.RemoteBaseURL = docStore.URL
		c.Calendar.BaseURL = calSrv.URL
	})

	headers := map[string]string{
		"X-User-Id":     "u-42",
		"Authorization": "Bearer tok-xyz",
	}

	res, body := doJSON(t, "POST", srv.URL+"/api/calendar/sync",
		map[string]string{"date": "2026-08-28"}, headers)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Successfully added 1 tasks to your Google Calendar!", body["message"])
	assert.Equal(t, 1, events)

	// Without a token the sync is refused before touching the calendar.
	res, body = doJSON(t, "POST", srv.URL+"/api/calendar/sync",
		map[string]string{"date": "2026-08-28"},
		map[string]string{"X-User-Id": "u-42"})
	require.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Equal(t, "no_token", body["error"])
	assert.Equal(t, 1, events)
}

func TestCalendarICSExport(t *testing.T) {
	srv := newTestServer(t, nil)

	doJSON(t, "POST", srv.URL+"/api/tasks",
		map[string]string{"content": "export me", "date": "2026-08-28"}, nil)

	res, err := http.Get(srv.URL + "/api/calendar/ics?date=2026-08-28")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "text/calendar")
	assert.Contains(t, res.Header.Get("Content-Disposition"), "focusflow-2026-08-28.ics")

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "BEGIN:VEVENT")
	assert.Contains(t, string(raw), "export me")

	res, err = http.Get(srv.URL + "/api/calendar/ics?date=bogus")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}
