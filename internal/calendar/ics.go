package calendar

import (
	"fmt"
	"strings"
	"time"

	"focusflow/internal/model"
)

const icsDateLayout = "20060102"

// BuildDayICS renders a day's tasks as an iCalendar document, one all-day
// VEVENT per task, for import into any calendar without OAuth.
func BuildDayICS(tasks []model.Task, date string, now time.Time) (string, error) {
	day, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	end := day.AddDate(0, 0, 1)
	stamp := now.UTC().Format("20060102T150405Z")

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//FocusFlow//Task Export//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
	}
	for _, t := range tasks {
		summary := strings.TrimSpace(t.Content)
		if summary == "" {
			summary = "FocusFlow Task"
		}
		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+escapeICSText(fmt.Sprintf("task-%s@focusflow", t.ID)),
			"DTSTAMP:"+stamp,
			"SUMMARY:"+escapeICSText("[FocusFlow] "+summary),
			"DTSTART;VALUE=DATE:"+day.Format(icsDateLayout),
			"DTEND;VALUE=DATE:"+end.Format(icsDateLayout),
			"TRANSP:TRANSPARENT",
			"DESCRIPTION:"+escapeICSText("Created via FocusFlow on "+date),
			"END:VEVENT",
		)
	}
	lines = append(lines, "END:VCALENDAR", "")

	return strings.Join(lines, "\r\n"), nil
}

func escapeICSText(s string) string {
	repl := strings.NewReplacer(
		"\\", "\\\\",
		";", "\\;",
		",", "\\,",
		"\r\n", "\\n",
		"\n", "\\n",
		"\r", "\\n",
	)
	return repl.Replace(s)
}
