package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/matthieugras/vidctl/internal/auth"
	"github.com/matthieugras/vidctl/internal/backoff"
	"github.com/matthieugras/vidctl/internal/logging"
)

// RequestIDHeader carries one ID per logical call, repeated on the retry
const RequestIDHeader = "X-Request-ID"

// Config is the explicit configuration of a Client
type Config struct {
	// BaseURL is prefixed to every relative path, e.g. http://localhost:8000/api/v1
	BaseURL string
}

// RequestOptions describes one request. The body is kept as bytes so the
// request can be rebuilt for the retry after a session refresh.
type RequestOptions struct {
	Method string // defaults to GET
	Header http.Header
	Body   []byte
}

// JSONRequest builds RequestOptions with v encoded as a JSON body
func JSONRequest(method string, v any) (*RequestOptions, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}
	return &RequestOptions{
		Method: method,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   body,
	}, nil
}

// Client issues API requests with session credentials and recovers from an
// expired session exactly once per call.
type Client struct {
	httpClient *http.Client
	auth       auth.Authenticator
	baseURL    string
	backoff    *backoff.GlobalBackoff // optional
	limiter    *rate.Limiter          // optional
	userAgent  string
}

// NewClient creates a new API client.
// httpClient should carry the cookie jar of the session; if nil, http.DefaultClient is used.
// bo and limiter may be nil.
func NewClient(httpClient *http.Client, cfg Config, authenticator auth.Authenticator, bo *backoff.GlobalBackoff, limiter *rate.Limiter) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		httpClient: httpClient,
		auth:       authenticator,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		backoff:    bo,
		limiter:    limiter,
		userAgent:  auth.DefaultUserAgent,
	}
}

// BaseURL returns the configured API base
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ResolveURL returns path unchanged if it is an absolute http(s) URL,
// otherwise path appended to the base URL.
func (c *Client) ResolveURL(path string) string {
	if isAbsoluteURL(path) {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "?") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do performs one logical request.
//
// A non-401 response is returned as received, unread. On 401 the session is
// refreshed (or an in-flight refresh joined) and the request is sent once more;
// that second response is returned whatever its status. If the session cannot be
// refreshed, Do returns a *SessionExpiredError and sends nothing further.
// Transport errors are returned wrapped and never retried.
func (c *Client) Do(ctx context.Context, path string, opts *RequestOptions) (*http.Response, error) {
	if opts == nil {
		opts = &RequestOptions{}
	}
	target := c.ResolveURL(path)
	requestID := uuid.NewString()

	resp, gen, err := c.send(ctx, target, opts, requestID)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	drainAndClose(resp)
	logging.Debug("[%s] 401 from %s %s (session generation %d), refreshing", requestID, opts.method(), target, gen)

	if err := c.auth.Refresh(ctx, gen); err != nil {
		if errors.Is(err, auth.ErrSessionExpired) {
			return nil, &SessionExpiredError{Method: opts.method(), URL: target, Err: err}
		}
		return nil, fmt.Errorf("session refresh failed: %w", err)
	}

	resp, _, err = c.send(ctx, target, opts, requestID)
	if err != nil {
		return nil, fmt.Errorf("retry request failed: %w", err)
	}
	return resp, nil
}

// send performs a single network attempt with current credentials and returns
// the session generation those credentials belonged to.
func (c *Client) send(ctx context.Context, target string, opts *RequestOptions, requestID string) (*http.Response, uint64, error) {
	if c.backoff != nil {
		if err := c.backoff.WaitIfNeeded(ctx); err != nil {
			return nil, 0, err
		}
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, err
		}
	}

	req, err := c.newRequest(ctx, target, opts)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set(RequestIDHeader, requestID)

	gen, err := c.auth.Authenticate(ctx, req)
	if err != nil {
		return nil, 0, fmt.Errorf("authentication failed: %w", err)
	}

	logging.Debug("[%s] API Request: %s %s", requestID, req.Method, target)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logging.Error("[%s] Request failed: %s %s - %v", requestID, req.Method, target, err)
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	logging.Debug("[%s] API Response: %s %s -> %d", requestID, req.Method, target, resp.StatusCode)

	if c.backoff != nil {
		c.backoff.Observe(resp)
	}
	return resp, gen, nil
}

// newRequest builds a fresh *http.Request from opts. Caller headers win over defaults.
func (c *Client) newRequest(ctx context.Context, target string, opts *RequestOptions) (*http.Request, error) {
	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.method(), target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if opts.Body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vals := range opts.Header {
		req.Header.Del(k)
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}

func (o *RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(o.Method)
}

func isAbsoluteURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	u, err := url.Parse(s)
	return err == nil && u.Host != ""
}

// drainAndClose lets the connection be reused before the retry
func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
