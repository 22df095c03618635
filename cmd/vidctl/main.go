package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/matthieugras/vidctl/internal/api"
	"github.com/matthieugras/vidctl/internal/auth"
	"github.com/matthieugras/vidctl/internal/backoff"
	"github.com/matthieugras/vidctl/internal/config"
	"github.com/matthieugras/vidctl/internal/logging"
	"github.com/matthieugras/vidctl/internal/session"
	"github.com/matthieugras/vidctl/internal/store"
)

var (
	version = "0.1.0"
)

// Exit codes
const (
	exitError          = 1
	exitSessionExpired = 2
)

// errBatchAborted is returned when a batch stopped because the session expired
var errBatchAborted = fmt.Errorf("batch aborted: %w", auth.ErrSessionExpired)

func main() {
	v := viper.New()
	rootCmd := newRootCmd(v)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		logging.Close() // Ensure log file is flushed before exit
		if errors.Is(err, auth.ErrSessionExpired) {
			os.Exit(exitSessionExpired)
		}
		os.Exit(exitError)
	}
	logging.Close()
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vidctl",
		Short: "Command-line client for the video sharing API",
		Long: `A CLI client for the video sharing REST API.

Requests carry the stored session cookies and, in bearer mode, an access token.
When the API answers 401 the session is refreshed once and the request retried;
if the refresh fails you are asked to log in again.`,
		Version:       version,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // We handle error output ourselves
	}

	// Setup flags
	config.SetupFlags(rootCmd, v)

	rootCmd.AddCommand(
		newRequestCmd(v),
		newBatchCmd(v),
		newLoginCmd(v),
		newLogoutCmd(v),
		newWhoamiCmd(v),
		newVideosCmd(v),
		newTrendingCmd(v),
		newWatchCmd(v),
		newHistoryCmd(v),
		newWatchLaterCmd(v),
		newPlaylistsCmd(v),
		newCommentsCmd(v),
	)
	return rootCmd
}

// runtime holds everything a command needs to talk to the API
type runtime struct {
	cfg       *config.Config
	origin    *url.URL
	jar       *cookiejar.Jar
	cookies   *store.CookieStore // nil when persistence is disabled
	session   *session.State
	refresher *auth.SessionRefresher
	backoff   *backoff.GlobalBackoff
	client    *api.Client

	expired atomic.Bool
}

// runWithClient loads configuration, builds the client, runs fn, and persists
// the session cookies afterwards.
func runWithClient(v *viper.Viper, fn func(ctx context.Context, rt *runtime) error) error {
	cfg, err := config.Load(v)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Initialize logger if log file specified
	if err := logging.Init(cfg.LogFile, cfg.Verbose); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logging.Info("configuration loaded base_url=%s auth_mode=%s workers=%d", cfg.BaseURL, cfg.Mode, cfg.Workers)

	// Setup context with signal handling using NotifyContext.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	return fn(ctx, rt)
}

func newRuntime(ctx context.Context, cfg *config.Config) (*runtime, error) {
	origin, err := url.Parse(cfg.Origin())
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		origin:  origin,
		jar:     jar,
		session: session.New(),
	}

	if cfg.CookieDB != "" {
		cs, err := store.Open(cfg.CookieDB)
		if err != nil {
			return nil, fmt.Errorf("failed to open cookie store: %w", err)
		}
		rt.cookies = cs

		stored, err := cs.Load(ctx, origin.String())
		if err != nil {
			cs.Close()
			return nil, fmt.Errorf("failed to load session cookies: %w", err)
		}
		jar.SetCookies(origin, stored)
		logging.Debug("Loaded %d session cookies for %s", len(stored), origin)
	}

	// Create shared HTTP client for connection pooling across all components.
	// The refresher and the API client share it so refreshed cookies land in one jar.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 20,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	rt.refresher = auth.NewSessionRefresher(httpClient, auth.RefresherConfig{
		BaseURL:   cfg.BaseURL,
		Mode:      cfg.Mode,
		Session:   rt.session,
		Navigator: auth.NavigatorFunc(rt.navigate),
	})

	rt.backoff = backoff.New(cfg.GetBackoffConfig())

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	rt.client = api.NewClient(httpClient, api.Config{BaseURL: cfg.BaseURL}, rt.refresher, rt.backoff, limiter)
	return rt, nil
}

// navigate is the login redirect: the CLI has no router, so it tells the user
// where to sign in and forgets the dead session.
func (rt *runtime) navigate(path string) {
	if !rt.expired.CompareAndSwap(false, true) {
		return
	}
	fmt.Fprintf(os.Stderr, "Session expired. Sign in again at %s%s or run 'vidctl login'.\n", rt.origin, path)
	logging.Warn("Redirecting to %s", path)
}

// close persists the jar's cookies, or drops them if the session expired
func (rt *runtime) close() {
	if rt.cookies == nil {
		return
	}
	defer rt.cookies.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if rt.expired.Load() {
		if err := rt.cookies.Clear(ctx, rt.origin.String()); err != nil {
			logging.Error("Failed to clear session cookies: %v", err)
		}
		return
	}
	cookies := rt.jar.Cookies(rt.origin)
	if err := rt.cookies.Save(ctx, rt.origin.String(), cookies); err != nil {
		logging.Error("Failed to save session cookies: %v", err)
		return
	}
	logging.Debug("Saved %d session cookies for %s", len(cookies), rt.origin)
}

// forgetSession drops stored cookies after an explicit logout
func (rt *runtime) forgetSession() {
	rt.expired.Store(true)
}

// isTerminal checks if stdout is a terminal
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
