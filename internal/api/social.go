package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

const playlistPrefix = "/playlist"

// Comments returns the comments on a video
func (c *Client) Comments(ctx context.Context, videoID string) ([]Comment, error) {
	var comments []Comment
	if err := c.getJSON(ctx, "/comments?videoId="+url.QueryEscape(videoID), &comments); err != nil {
		return nil, fmt.Errorf("get comments failed: %w", err)
	}
	return comments, nil
}

// AddComment posts a comment on a video
func (c *Client) AddComment(ctx context.Context, videoID, content string) (*Comment, error) {
	body := map[string]string{"content": content, "video": videoID}
	var comment Comment
	if err := c.sendJSON(ctx, http.MethodPost, "/comments/add-comment", body, &comment); err != nil {
		return nil, fmt.Errorf("add comment failed: %w", err)
	}
	return &comment, nil
}

// UpdateComment replaces the text of a comment
func (c *Client) UpdateComment(ctx context.Context, commentID, content string) (*Comment, error) {
	body := map[string]string{"content": content}
	var comment Comment
	path := "/comments/update-comment?commentId=" + url.QueryEscape(commentID)
	if err := c.sendJSON(ctx, http.MethodPatch, path, body, &comment); err != nil {
		return nil, fmt.Errorf("update comment failed: %w", err)
	}
	return &comment, nil
}

// DeleteComment removes a comment
func (c *Client) DeleteComment(ctx context.Context, commentID string) error {
	path := "/comments/delete-comment?commentId=" + url.QueryEscape(commentID)
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("delete comment failed: %w", err)
	}
	return nil
}

// Playlists returns the playlists of the signed-in user
func (c *Client) Playlists(ctx context.Context) ([]Playlist, error) {
	var playlists []Playlist
	if err := c.getJSON(ctx, playlistPrefix, &playlists); err != nil {
		return nil, fmt.Errorf("get playlists failed: %w", err)
	}
	return playlists, nil
}

// Playlist returns a single playlist
func (c *Client) Playlist(ctx context.Context, playlistID string) (*Playlist, error) {
	var pl Playlist
	if err := c.getJSON(ctx, playlistPrefix+"/"+url.PathEscape(playlistID), &pl); err != nil {
		return nil, fmt.Errorf("get playlist failed: %w", err)
	}
	return &pl, nil
}

// CreatePlaylist creates an empty playlist
func (c *Client) CreatePlaylist(ctx context.Context, name, description string) (*Playlist, error) {
	body := map[string]string{"name": name, "description": description}
	var pl Playlist
	if err := c.sendJSON(ctx, http.MethodPost, playlistPrefix+"/create-playlist", body, &pl); err != nil {
		return nil, fmt.Errorf("create playlist failed: %w", err)
	}
	return &pl, nil
}

// DeletePlaylist deletes a playlist
func (c *Client) DeletePlaylist(ctx context.Context, playlistID string) error {
	path := playlistPrefix + "/delete-playlist/" + url.PathEscape(playlistID)
	if err := c.sendJSON(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("delete playlist failed: %w", err)
	}
	return nil
}

// AddToPlaylist appends a video to a playlist
func (c *Client) AddToPlaylist(ctx context.Context, playlistID, videoID string) (*Playlist, error) {
	return c.playlistMembership(ctx, "/add-video", playlistID, videoID)
}

// RemoveFromPlaylist removes a video from a playlist
func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID, videoID string) (*Playlist, error) {
	return c.playlistMembership(ctx, "/remove-video", playlistID, videoID)
}

func (c *Client) playlistMembership(ctx context.Context, action, playlistID, videoID string) (*Playlist, error) {
	body := map[string]string{"playlistId": playlistID, "videoId": videoID}
	var pl Playlist
	if err := c.sendJSON(ctx, http.MethodPost, playlistPrefix+action, body, &pl); err != nil {
		return nil, fmt.Errorf("playlist %s failed: %w", action[1:], err)
	}
	return &pl, nil
}

// SubscriptionStatus reports whether the signed-in user is subscribed to a channel
func (c *Client) SubscriptionStatus(ctx context.Context, channelID string) (*SubscriptionStatus, error) {
	var st SubscriptionStatus
	if err := c.getJSON(ctx, "/subscription/status/"+url.PathEscape(channelID), &st); err != nil {
		return nil, fmt.Errorf("get subscription status failed: %w", err)
	}
	return &st, nil
}

// Subscribe follows a channel
func (c *Client) Subscribe(ctx context.Context, channelID string) error {
	if err := c.sendJSON(ctx, http.MethodPost, "/subscription/subscribe?channelId="+url.QueryEscape(channelID), nil, nil); err != nil {
		return fmt.Errorf("subscribe failed: %w", err)
	}
	return nil
}

// Unsubscribe stops following a channel
func (c *Client) Unsubscribe(ctx context.Context, channelID string) error {
	if err := c.sendJSON(ctx, http.MethodPost, "/subscription/unSubscribe?channelId="+url.QueryEscape(channelID), nil, nil); err != nil {
		return fmt.Errorf("unsubscribe failed: %w", err)
	}
	return nil
}
