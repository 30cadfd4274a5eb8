// Package i18n resolves user-facing message strings. English and
// Vietnamese, matching the product's two shipped locales.
package i18n

import (
	"net/http"
	"strings"
)

type Lang string

const (
	EN Lang = "en"
	VI Lang = "vi"
)

var translations = map[Lang]map[string]string{
	EN: {
		"app_title":        "FocusFlow",
		"limit_reached":    "Daily limit reached (5 tasks)",
		"no_tasks":         "No tasks for this day.",
		"sync_success":     "Successfully added {n} tasks to your Google Calendar!",
		"sync_error":       "Failed to sync. Please try again or re-login.",
		"sync_guest_error": "Sign in with Google to use Calendar Sync.",
		"content_required": "Task content must not be blank.",
	},
	VI: {
		"app_title":        "FocusFlow",
		"limit_reached":    "Đã đạt giới hạn ngày (5 việc)",
		"no_tasks":         "Chưa có công việc cho ngày này.",
		"sync_success":     "Đã thêm thành công {n} công việc vào Google Calendar!",
		"sync_error":       "Đồng bộ thất bại. Vui lòng thử lại hoặc đăng nhập lại.",
		"sync_guest_error": "Vui lòng đăng nhập Google để sử dụng tính năng này.",
		"content_required": "Nội dung công việc không được để trống.",
	},
}

// T looks up a key for a language, falling back to English, then to the
// key itself so missing entries stay visible instead of blank.
func T(lang Lang, key string) string {
	if msg, ok := translations[lang][key]; ok {
		return msg
	}
	if msg, ok := translations[EN][key]; ok {
		return msg
	}
	return key
}

// FromRequest picks the language from Accept-Language; anything that is
// not Vietnamese resolves to English.
func FromRequest(r *http.Request) Lang {
	al := strings.ToLower(strings.TrimSpace(r.Header.Get("Accept-Language")))
	if strings.HasPrefix(al, "vi") {
		return VI
	}
	return EN
}
