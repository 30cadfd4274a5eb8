// Package calendar exports a day's tasks to an external calendar, either
// as individual all-day events pushed over HTTP or as an ICS document.
package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"focusflow/internal/model"
)

const DefaultBaseURL = "https://www.googleapis.com/calendar/v3"

var (
	ErrGuestMode = errors.New("calendar sync requires a signed-in account")
	ErrNoToken   = errors.New("calendar sync requires an access token")
)

// Event is the wire shape of one all-day event: it spans exactly the
// task's day and is transparent so it never blocks the user's free/busy.
type Event struct {
	Summary      string    `json:"summary"`
	Description  string    `json:"description"`
	Start        EventDate `json:"start"`
	End          EventDate `json:"end"`
	Transparency string    `json:"transparency"`
}

type EventDate struct {
	Date string `json:"date"`
}

// Failure records one event creation that did not go through.
type Failure struct {
	TaskID string `json:"taskId"`
	Reason string `json:"reason"`
}

// Report is the per-item outcome of a sync. A partially failed fan-out is
// reported as exactly that, not collapsed into a single pass/fail.
type Report struct {
	Synced []string  `json:"synced"`
	Failed []Failure `json:"failed"`
}

func (r Report) AllSynced() bool {
	return len(r.Failed) == 0
}

type Client struct {
	base   string
	client *http.Client
}

func NewClient(baseURL string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		base:   baseURL,
		client: &http.Client{Timeout: 20 * time.Second},
	}
}

// SyncDay creates one event per task, fanned out concurrently. Every task
// gets its own verdict in the report; one failure does not abort or mask
// the others.
func (c *Client) SyncDay(ctx context.Context, token string, tasks []model.Task, date string) (Report, error) {
	if strings.TrimSpace(token) == "" {
		return Report{}, ErrNoToken
	}
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return Report{}, fmt.Errorf("parse date %q: %w", date, err)
	}
	end := day.AddDate(0, 0, 1).Format(model.DateLayout)

	type verdict struct {
		taskID string
		err    error
	}
	verdicts := make([]verdict, len(tasks))

	var wg sync.WaitGroup
	for i, t := range tasks {
		wg.Add(1)
		go func(i int, t model.Task) {
			defer wg.Done()
			ev := Event{
				Summary:      "[FocusFlow] " + t.Content,
				Description:  "Created via FocusFlow on " + date,
				Start:        EventDate{Date: date},
				End:          EventDate{Date: end},
				Transparency: "transparent",
			}
			verdicts[i] = verdict{taskID: t.ID, err: c.createEvent(ctx, token, ev)}
		}(i, t)
	}
	wg.Wait()

	var report Report
	for _, v := range verdicts {
		if v.err != nil {
			report.Failed = append(report.Failed, Failure{TaskID: v.taskID, Reason: v.err.Error()})
			continue
		}
		report.Synced = append(report.Synced, v.taskID)
	}
	return report, nil
}

func (c *Client) createEvent(ctx context.Context, token string, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	u := c.base + "/calendars/primary/events"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return errors.New(apiErrorMessage(res))
	}
	return nil
}

// apiErrorMessage prefers the remote error message when the response body
// carries one.
func apiErrorMessage(res *http.Response) string {
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err := json.Unmarshal(b, &payload); err == nil && payload.Error.Message != "" {
		return payload.Error.Message
	}
	return res.Status
}
