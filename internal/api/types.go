package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// User is an account as returned by the users endpoints
type User struct {
	ID         string    `json:"_id"`
	UserName   string    `json:"userName"`
	FullName   string    `json:"fullName"`
	Email      string    `json:"email"`
	Avatar     string    `json:"avatar"`
	CoverImage string    `json:"coverImage"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Channel is a user's public channel page
type Channel struct {
	User
	SubscribersCount          int     `json:"subscribersCount"`
	ChannelsSubscribedToCount int     `json:"channelsSubscribedToCount"`
	IsSubscribed              bool    `json:"isSubscribed"`
	Videos                    []Video `json:"videos"`
}

// Video is a single uploaded video. Owner may arrive as an ID or as an embedded user.
type Video struct {
	ID            string    `json:"_id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Duration      float64   `json:"duration"` // seconds
	Views         int64     `json:"views"`
	Thumbnail     string    `json:"thumbnail"`
	VideoFile     string    `json:"videoFile"`
	IsPublished   bool      `json:"isPublished"`
	Owner         Ref[User] `json:"owner"`
	TrendingScore float64   `json:"trendingScore,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// VideoPage is one page of the video listing
type VideoPage struct {
	Videos     []Video `json:"videos"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
	TotalPages int     `json:"totalPages"`
	Total      int     `json:"totalVideos"`
}

// ReactionState is the like/dislike state of a video after a toggle
type ReactionState struct {
	IsLiked       bool `json:"isLiked"`
	IsDisliked    bool `json:"isDisliked"`
	TotalLikes    int  `json:"totalLikes"`
	TotalDislikes int  `json:"totalDislikes"`
}

// Comment is a comment on a video
type Comment struct {
	ID        string    `json:"_id"`
	Content   string    `json:"content"`
	Video     string    `json:"video"`
	Owner     Ref[User] `json:"owner"`
	CreatedAt time.Time `json:"createdAt"`
}

// Playlist is a named list of videos. Videos may be IDs or embedded videos.
type Playlist struct {
	ID             string       `json:"_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Owner          Ref[User]    `json:"owner"`
	Videos         []Ref[Video] `json:"videos"`
	FirstThumbnail string       `json:"firstThumbnail"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// SubscriptionStatus reports whether the current user follows a channel
type SubscriptionStatus struct {
	IsSubscribed     bool `json:"isSubscribed"`
	SubscribersCount int  `json:"subscribersCount"`
}

// LoginResult is the payload of a successful login
type LoginResult struct {
	User         User   `json:"user"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Ref is a reference the API sends either as a bare ID string or as a
// populated document. Value is nil when only the ID was sent.
type Ref[T any] struct {
	ID    string
	Value *T
}

// UnmarshalJSON accepts "id", null, or a JSON object carrying "_id"
func (r *Ref[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref[T]{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &r.ID)
	}

	var idOnly struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &idOnly); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("reference: %w", err)
	}
	r.ID = idOnly.ID
	r.Value = &v
	return nil
}

// MarshalJSON writes the populated value if present, otherwise the ID
func (r Ref[T]) MarshalJSON() ([]byte, error) {
	if r.Value != nil {
		return json.Marshal(r.Value)
	}
	if r.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(r.ID)
}

// Envelope is the response wrapper used by every endpoint of the API
type Envelope[T any] struct {
	StatusCode int    `json:"statusCode"`
	Data       T      `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// APIError represents a non-2xx answer from a typed endpoint
type APIError struct {
	StatusCode int
	Message    string
	Retryable  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, message string) *APIError {
	retryable := statusCode == 429 || (statusCode >= 500 && statusCode < 600)
	return &APIError{
		StatusCode: statusCode,
		Message:    message,
		Retryable:  retryable,
	}
}

// SessionExpiredError is returned by Client.Do when a 401 could not be
// recovered by refreshing the session. It matches auth.ErrSessionExpired.
type SessionExpiredError struct {
	Method string
	URL    string
	Err    error
}

func (e *SessionExpiredError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *SessionExpiredError) Unwrap() error {
	return e.Err
}
