package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DefaultUserAgent identifies vidctl to the API
const DefaultUserAgent = "vidctl/0.1 (+https://github.com/matthieugras/vidctl)"

const (
	// RefreshPath is the API route that renews a session from its cookie
	RefreshPath = "/users/refresh-token"

	// LoginPath is where the user is sent once a session cannot be renewed
	LoginPath = "/login"
)

// ErrSessionExpired is returned when a session could not be refreshed.
// Callers should treat it as "log in again", never as a transient error.
var ErrSessionExpired = errors.New("session expired")

// Mode selects which credentials accompany API requests.
type Mode string

const (
	// ModeBearer sends an Authorization header built from the in-memory token, plus cookies.
	ModeBearer Mode = "bearer"
	// ModeCookie relies on the server-set session cookie only.
	ModeCookie Mode = "cookie"
)

// ParseMode parses an auth mode name (case-insensitive).
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeBearer, "":
		return ModeBearer, nil
	case ModeCookie:
		return ModeCookie, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q (expected %q or %q)", s, ModeBearer, ModeCookie)
	}
}

// Authenticator is the interface for session credential providers.
type Authenticator interface {
	// Authenticate adds credentials to an HTTP request and returns the session
	// generation those credentials belong to.
	Authenticate(ctx context.Context, req *http.Request) (uint64, error)

	// Refresh renews the session after a 401 seen under staleGeneration.
	// If the session was already renewed since then it returns nil without a network call.
	// Terminal failures match ErrSessionExpired.
	Refresh(ctx context.Context, staleGeneration uint64) error

	// Establish records the credentials returned by a successful login.
	Establish(accessToken string)

	// Invalidate drops any credentials held in memory.
	Invalidate()
}

// Navigator receives the login redirect when a session is unrecoverable.
// The composition root decides what navigating means.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to the Navigator interface
type NavigatorFunc func(path string)

// Navigate calls f(path)
func (f NavigatorFunc) Navigate(path string) {
	f(path)
}
