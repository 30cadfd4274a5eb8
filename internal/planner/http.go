package planner

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"focusflow/internal/i18n"
	"focusflow/internal/model"
)

// Handler exposes the day planner over JSON. The resolver maps a request
// to the acting session's planner; resolution fails when a signed-in user
// hits a deployment with no remote store configured.
type Handler struct {
	resolver func(*http.Request) (*Planner, error)
	now      func() time.Time
}

func NewHandler(resolver func(*http.Request) (*Planner, error)) *Handler {
	return &Handler{resolver: resolver, now: time.Now}
}

// SetClock overrides the wall clock. Test hook.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func (h *Handler) plannerFor(w http.ResponseWriter, r *http.Request) *Planner {
	p, err := h.resolver(r)
	if err != nil {
		writeErr(w, http.StatusServiceUnavailable, err.Error())
		return nil
	}
	return p
}

// selectDate points the planner at the requested day, defaulting to today
// when the request names none.
func (h *Handler) selectDate(w http.ResponseWriter, r *http.Request, p *Planner, date string) bool {
	if date == "" {
		date = p.Date()
	}
	if date == "" {
		date = h.now().Format(model.DateLayout)
	}
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeErr(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return false
	}
	if err := p.EnsureDate(r.Context(), date); err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return false
	}
	return true
}

// GET /api/tasks?date=YYYY-MM-DD
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	if !h.selectDate(w, r, p, r.URL.Query().Get("date")) {
		return
	}
	tasks := p.Tasks()
	if tasks == nil {
		tasks = []model.Task{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": p.Date(), "tasks": tasks})
}

// POST /api/tasks
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		Content string `json:"content"`
		Date    string `json:"date"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeErr(w, http.StatusBadRequest, i18n.T(i18n.FromRequest(r), "content_required"))
		return
	}
	if !h.selectDate(w, r, p, body.Date) {
		return
	}

	created, err := p.Add(r.Context(), strings.TrimSpace(body.Content))
	if errors.Is(err, ErrDailyLimit) {
		writeErr(w, http.StatusConflict, i18n.T(i18n.FromRequest(r), "limit_reached"))
		return
	}
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// POST /api/tasks/{id}/toggle
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	updated, err := p.Toggle(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PATCH /api/tasks/{id}
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeErr(w, http.StatusBadRequest, i18n.T(i18n.FromRequest(r), "content_required"))
		return
	}
	updated, err := p.EditContent(r.Context(), r.PathValue("id"), strings.TrimSpace(body.Content))
	if errors.Is(err, ErrNotFound) {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DELETE /api/tasks/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	err := p.Remove(r.Context(), r.PathValue("id"))
	if errors.Is(err, ErrNotFound) {
		writeErr(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// PUT /api/tasks/order
func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := p.Reorder(r.Context(), body.IDs); err != nil {
		if errors.Is(err, ErrOrderMismatch) {
			writeErr(w, http.StatusConflict, err.Error())
			return
		}
		writeErr(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": p.Tasks()})
}

// POST /api/tasks/{id}/subtasks
func (h *Handler) CreateSubtask(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeErr(w, http.StatusBadRequest, i18n.T(i18n.FromRequest(r), "content_required"))
		return
	}
	sub, err := p.AddSubtask(r.Context(), r.PathValue("id"), strings.TrimSpace(body.Content))
	if h.subtaskErr(w, err) {
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// POST /api/tasks/{id}/subtasks/{sid}/toggle
func (h *Handler) ToggleSubtask(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	sub, err := p.ToggleSubtask(r.Context(), r.PathValue("id"), r.PathValue("sid"))
	if h.subtaskErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// PATCH /api/tasks/{id}/subtasks/{sid}
func (h *Handler) EditSubtask(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(body.Content) == "" {
		writeErr(w, http.StatusBadRequest, i18n.T(i18n.FromRequest(r), "content_required"))
		return
	}
	sub, err := p.EditSubtask(r.Context(), r.PathValue("id"), r.PathValue("sid"), strings.TrimSpace(body.Content))
	if h.subtaskErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// DELETE /api/tasks/{id}/subtasks/{sid}
func (h *Handler) DeleteSubtask(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	err := p.RemoveSubtask(r.Context(), r.PathValue("id"), r.PathValue("sid"))
	if h.subtaskErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// PUT /api/tasks/{id}/subtasks/order
func (h *Handler) ReorderSubtasks(w http.ResponseWriter, r *http.Request) {
	p := h.plannerFor(w, r)
	if p == nil {
		return
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid json body")
		return
	}
	err := p.ReorderSubtasks(r.Context(), r.PathValue("id"), body.IDs)
	if errors.Is(err, ErrOrderMismatch) {
		writeErr(w, http.StatusConflict, err.Error())
		return
	}
	if h.subtaskErr(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reordered": true})
}

func (h *Handler) subtaskErr(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrSubtaskNotFound):
		writeErr(w, http.StatusNotFound, err.Error())
	default:
		writeErr(w, http.StatusBadGateway, err.Error())
	}
	return true
}
