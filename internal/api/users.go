package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/matthieugras/vidctl/internal/logging"
)

const (
	loginPath          = "/users/login"
	registerPath       = "/users/register"
	logoutPath         = "/users/logout"
	currentUserPath    = "/users/current-user"
	updateAccountPath  = "/users/update-account"
	changePasswordPath = "/users/change-password"
	historyPath        = "/users/history"
	watchLaterPath     = "/users/watch-later"
)

// Credentials are the login form fields
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration are the sign-up form fields
type Registration struct {
	FullName string `json:"fullName"`
	UserName string `json:"userName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccountUpdate are the editable account fields
type AccountUpdate struct {
	FullName string `json:"fullName,omitempty"`
	Email    string `json:"email,omitempty"`
}

// Login signs in and records the returned session. A 401 here means bad
// credentials, so no refresh is attempted.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResult, error) {
	opts, err := JSONRequest(http.MethodPost, creds)
	if err != nil {
		return nil, err
	}

	resp, _, err := c.send(ctx, c.ResolveURL(loginPath), opts, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	var result LoginResult
	if err := decodeEnvelope(resp, &result); err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}

	c.auth.Establish(result.AccessToken)
	logging.Info("Logged in as %s", result.User.UserName)
	return &result, nil
}

// Register creates an account. It does not sign in.
func (c *Client) Register(ctx context.Context, reg Registration) (*User, error) {
	opts, err := JSONRequest(http.MethodPost, reg)
	if err != nil {
		return nil, err
	}
	resp, _, err := c.send(ctx, c.ResolveURL(registerPath), opts, uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("register failed: %w", err)
	}

	var user User
	if err := decodeEnvelope(resp, &user); err != nil {
		return nil, fmt.Errorf("register failed: %w", err)
	}
	return &user, nil
}

// Logout ends the session on the server and drops in-memory credentials.
// Credentials are dropped even if the server call fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.auth.Invalidate()
	return c.sendJSON(ctx, http.MethodPost, logoutPath, nil, nil)
}

// CurrentUser returns the signed-in user
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, currentUserPath, &user); err != nil {
		return nil, fmt.Errorf("get current user failed: %w", err)
	}
	return &user, nil
}

// UpdateAccount changes the name and/or email of the signed-in user
func (c *Client) UpdateAccount(ctx context.Context, update AccountUpdate) (*User, error) {
	var user User
	if err := c.sendJSON(ctx, http.MethodPatch, updateAccountPath, update, &user); err != nil {
		return nil, fmt.Errorf("update account failed: %w", err)
	}
	return &user, nil
}

// ChangePassword replaces the password of the signed-in user
func (c *Client) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	body := map[string]string{"oldPassword": oldPassword, "newPassword": newPassword}
	if err := c.sendJSON(ctx, http.MethodPost, changePasswordPath, body, nil); err != nil {
		return fmt.Errorf("change password failed: %w", err)
	}
	return nil
}

// Channel returns the channel page of a user
func (c *Client) Channel(ctx context.Context, userName, userID string) (*Channel, error) {
	path := fmt.Sprintf("/users/channel/%s/%s", url.PathEscape(userName), url.PathEscape(userID))

	var ch Channel
	if err := c.getJSON(ctx, path, &ch); err != nil {
		return nil, fmt.Errorf("get channel failed: %w", err)
	}
	return &ch, nil
}

// History returns the watch history of the signed-in user, most recent first
func (c *Client) History(ctx context.Context) ([]Video, error) {
	var videos []Video
	if err := c.getJSON(ctx, historyPath, &videos); err != nil {
		return nil, fmt.Errorf("get history failed: %w", err)
	}
	return videos, nil
}

// AddWatchHistory records that the signed-in user watched a video
func (c *Client) AddWatchHistory(ctx context.Context, videoID string) error {
	path := "/users/addWatchHistory/" + url.PathEscape(videoID)
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("add watch history failed: %w", err)
	}
	return nil
}

// WatchLater returns the watch-later list of the signed-in user
func (c *Client) WatchLater(ctx context.Context) ([]Video, error) {
	var videos []Video
	if err := c.getJSON(ctx, watchLaterPath, &videos); err != nil {
		return nil, fmt.Errorf("get watch later failed: %w", err)
	}
	return videos, nil
}

// AddWatchLater puts a video on the watch-later list
func (c *Client) AddWatchLater(ctx context.Context, videoID string) error {
	path := watchLaterPath + "/add/" + url.PathEscape(videoID)
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("add to watch later failed: %w", err)
	}
	return nil
}
