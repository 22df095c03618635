package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/matthieugras/vidctl/internal/logging"
	"github.com/matthieugras/vidctl/internal/session"
)

// maxRefreshBody caps how much of a refresh response is read
const maxRefreshBody = 1 << 20

// defaultRefreshTimeout bounds a refresh when the HTTP client has no timeout
const defaultRefreshTimeout = 30 * time.Second

// SessionRefresher attaches session credentials to requests and renews the
// session through the refresh endpoint when the API answers 401.
// Thread-safe: concurrent refreshes for the same generation share one HTTP call.
type SessionRefresher struct {
	httpClient *http.Client
	refreshURL string
	mode       Mode
	userAgent  string
	session    *session.State
	navigator  Navigator
	timeout    time.Duration

	refreshGroup singleflight.Group // Deduplicates concurrent refresh requests
}

// RefresherConfig configures a SessionRefresher
type RefresherConfig struct {
	BaseURL   string
	Mode      Mode
	Session   *session.State
	Navigator Navigator // optional
}

// refreshResponse is the body of a successful refresh call
type refreshResponse struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
	Data    struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// RefreshError describes a refresh call that did not yield a usable session
type RefreshError struct {
	StatusCode int
	Message    string
}

func (e *RefreshError) Error() string {
	if e.StatusCode == 0 {
		return "refresh failed: " + e.Message
	}
	return fmt.Sprintf("refresh failed (status %d): %s", e.StatusCode, e.Message)
}

// NewSessionRefresher creates a refresher for the API at cfg.BaseURL.
// The httpClient must carry the cookie jar shared with the API client,
// since the refresh endpoint authenticates with the session cookie.
func NewSessionRefresher(httpClient *http.Client, cfg RefresherConfig) *SessionRefresher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	st := cfg.Session
	if st == nil {
		st = session.New()
	}
	mode := cfg.Mode
	if mode == "" {
		mode = ModeBearer
	}
	timeout := httpClient.Timeout
	if timeout <= 0 {
		timeout = defaultRefreshTimeout
	}
	return &SessionRefresher{
		httpClient: httpClient,
		refreshURL: strings.TrimRight(cfg.BaseURL, "/") + RefreshPath,
		mode:       mode,
		userAgent:  DefaultUserAgent,
		session:    st,
		navigator:  cfg.Navigator,
		timeout:    timeout,
	}
}

// Session returns the state this refresher reads and updates
func (r *SessionRefresher) Session() *session.State {
	return r.session
}

// Authenticate implements the Authenticator interface.
// In bearer mode the Authorization header is always set, to "" when no token is held.
func (r *SessionRefresher) Authenticate(_ context.Context, req *http.Request) (uint64, error) {
	token, gen := r.session.Snapshot()
	if r.mode == ModeBearer {
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		} else {
			req.Header.Set("Authorization", "")
		}
	}
	return gen, nil
}

// Refresh implements the Authenticator interface.
// Uses singleflight keyed by generation so every caller that saw a 401 for the
// same session waits on a single refresh call. The call itself is detached
// from the callers: one of them giving up does not fail it for the others.
func (r *SessionRefresher) Refresh(ctx context.Context, staleGeneration uint64) error {
	if r.session.Generation() != staleGeneration {
		logging.Debug("Session already renewed (generation %d -> %d), skipping refresh",
			staleGeneration, r.session.Generation())
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := strconv.FormatUint(staleGeneration, 10)
	ch := r.refreshGroup.DoChan(key, func() (any, error) {
		// Double-check inside the flight
		if r.session.Generation() != staleGeneration {
			return nil, nil
		}

		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		if err := r.refresh(refreshCtx); err != nil {
			return nil, r.expire(err)
		}
		logging.Info("Session refreshed (generation %d)", r.session.Generation())
		return nil, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			logging.Debug("Joined in-flight refresh for generation %d", staleGeneration)
		}
		return res.Err
	case <-ctx.Done():
		// Not terminal: the refresh keeps going for whoever is still waiting
		logging.Debug("Stopped waiting for refresh of generation %d: %v", staleGeneration, ctx.Err())
		return ctx.Err()
	}
}

// Establish implements the Authenticator interface
func (r *SessionRefresher) Establish(accessToken string) {
	if accessToken != "" {
		r.session.SetToken(accessToken)
	} else {
		r.session.MarkRefreshed()
	}
}

// Invalidate implements the Authenticator interface
func (r *SessionRefresher) Invalidate() {
	r.session.Clear()
}

// refresh performs one POST to the refresh endpoint and applies the outcome.
func (r *SessionRefresher) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", r.userAgent)

	logging.Debug("Refresh request: POST %s", r.refreshURL)
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute refresh request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return fmt.Errorf("failed to read refresh response: %w", err)
	}
	logging.Debug("Refresh response: %d", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &RefreshError{StatusCode: resp.StatusCode, Message: refreshMessage(body)}
	}

	if r.mode == ModeCookie {
		r.session.MarkRefreshed()
		return nil
	}

	var parsed refreshResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return &RefreshError{StatusCode: resp.StatusCode, Message: "malformed refresh response: " + err.Error()}
	}
	if parsed.Success != nil && !*parsed.Success {
		return &RefreshError{StatusCode: resp.StatusCode, Message: orDefault(parsed.Message, "refresh rejected")}
	}
	if parsed.Data.AccessToken == "" {
		return &RefreshError{StatusCode: resp.StatusCode, Message: "no access token in refresh response"}
	}

	r.session.SetToken(parsed.Data.AccessToken)
	return nil
}

// expire drops the session after a failed refresh and signals the login
// redirect. Callers joined to the same flight share the returned error.
func (r *SessionRefresher) expire(cause error) error {
	r.session.Clear()
	logging.Warn("Session could not be refreshed: %v", cause)
	if r.navigator != nil {
		r.navigator.Navigate(LoginPath)
	}
	return fmt.Errorf("%w: %w", ErrSessionExpired, cause)
}

// refreshMessage extracts the "message" field of an error body, or the raw text.
func refreshMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err == nil && m.Message != "" {
		return m.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "...[truncated]"
	}
	return orDefault(s, "empty response body")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
