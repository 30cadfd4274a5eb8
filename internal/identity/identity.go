// Package identity models the boundary with the external auth provider.
// The service consumes an opaque user record; it never provisions one.
package identity

import (
	"net/http"
	"strings"
)

// GuestUID is the reserved sentinel selecting local-only storage. Guest
// sessions have no remote identity and cannot sync to the calendar.
const GuestUID = "guest"

type User struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
	PhotoURL    string `json:"photoURL,omitempty"`
}

func Guest() User {
	return User{UID: GuestUID, DisplayName: "Guest User"}
}

func (u User) IsGuest() bool {
	return u.UID == GuestUID
}

// FromRequest resolves the acting user from request headers. The upstream
// auth layer is trusted to have verified them; an absent uid means guest.
func FromRequest(r *http.Request) User {
	uid := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if uid == "" {
		return Guest()
	}
	return User{
		UID:         uid,
		DisplayName: strings.TrimSpace(r.Header.Get("X-User-Name")),
		Email:       strings.TrimSpace(r.Header.Get("X-User-Email")),
	}
}

// BearerToken extracts the OAuth access token forwarded for calendar
// writes, or "" when the request carries none.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
