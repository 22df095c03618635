package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/matthieugras/vidctl/internal/logging"
)

// ListOptions selects a page of the video listing
type ListOptions struct {
	Page   int
	Limit  int
	SortBy string // e.g. createdAt, views
	Order  string // asc or desc
}

// DefaultListOptions returns the listing the home page shows
func DefaultListOptions() ListOptions {
	return ListOptions{Page: 1, Limit: 10, SortBy: "createdAt", Order: "desc"}
}

func (o ListOptions) query() string {
	d := DefaultListOptions()
	if o.Page < 1 {
		o.Page = d.Page
	}
	if o.Limit < 1 {
		o.Limit = d.Limit
	}
	if o.SortBy == "" {
		o.SortBy = d.SortBy
	}
	if o.Order == "" {
		o.Order = d.Order
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(o.Page))
	q.Set("limit", strconv.Itoa(o.Limit))
	q.Set("sortBy", o.SortBy)
	q.Set("order", o.Order)
	return q.Encode()
}

// ListVideos returns one page of published videos
func (c *Client) ListVideos(ctx context.Context, opts ListOptions) (*VideoPage, error) {
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/videos?"+opts.query(), &raw); err != nil {
		return nil, fmt.Errorf("list videos failed: %w", err)
	}
	page, err := decodeVideoPage(raw)
	if err != nil {
		return nil, fmt.Errorf("list videos failed: %w", err)
	}
	return page, nil
}

// WalkVideos pages through the video listing starting at opts.Page and calls fn
// for every page until the last page, maxPages pages, or fn returns false.
// maxPages <= 0 means no limit. Returns the number of videos seen.
func (c *Client) WalkVideos(ctx context.Context, opts ListOptions, maxPages int, fn func(page *VideoPage) bool) (int, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	seen := 0
	for pages := 0; maxPages <= 0 || pages < maxPages; pages++ {
		select {
		case <-ctx.Done():
			return seen, ctx.Err()
		default:
		}

		page, err := c.ListVideos(ctx, opts)
		if err != nil {
			return seen, err
		}
		seen += len(page.Videos)
		if !fn(page) {
			break
		}

		// An empty page or a page past the reported total ends the walk
		if len(page.Videos) == 0 || page.TotalPages == 0 || opts.Page >= page.TotalPages {
			logging.Debug("Stopping pagination at page %d (total pages %d)", opts.Page, page.TotalPages)
			break
		}
		opts.Page++
	}
	return seen, nil
}

// Trending returns the most popular videos
func (c *Client) Trending(ctx context.Context, limit int) ([]Video, error) {
	if limit < 1 {
		limit = 20
	}
	var raw json.RawMessage
	if err := c.getJSON(ctx, "/videos/trending?limit="+strconv.Itoa(limit), &raw); err != nil {
		return nil, fmt.Errorf("get trending failed: %w", err)
	}
	page, err := decodeVideoPage(raw)
	if err != nil {
		return nil, fmt.Errorf("get trending failed: %w", err)
	}
	return page.Videos, nil
}

// WatchVideo returns a single video with its owner populated
func (c *Client) WatchVideo(ctx context.Context, videoID string) (*Video, error) {
	var v Video
	if err := c.getJSON(ctx, "/videos/watch/"+url.PathEscape(videoID), &v); err != nil {
		return nil, fmt.Errorf("get video failed: %w", err)
	}
	return &v, nil
}

// LikeVideo toggles the like of the signed-in user on a video
func (c *Client) LikeVideo(ctx context.Context, videoID string) (*ReactionState, error) {
	return c.react(ctx, "/videos/like-video/"+url.PathEscape(videoID))
}

// DislikeVideo toggles the dislike of the signed-in user on a video
func (c *Client) DislikeVideo(ctx context.Context, videoID string) (*ReactionState, error) {
	return c.react(ctx, "/videos/dislike-video/"+url.PathEscape(videoID))
}

func (c *Client) react(ctx context.Context, path string) (*ReactionState, error) {
	var st ReactionState
	if err := c.sendJSON(ctx, http.MethodPatch, path, nil, &st); err != nil {
		return nil, fmt.Errorf("reaction failed: %w", err)
	}
	return &st, nil
}

// AddView counts one view of a video
func (c *Client) AddView(ctx context.Context, videoID string) error {
	if err := c.sendJSON(ctx, http.MethodPost, "/videos/"+url.PathEscape(videoID)+"/views", nil, nil); err != nil {
		return fmt.Errorf("add view failed: %w", err)
	}
	return nil
}

// decodeVideoPage accepts either a bare array of videos or a paged object
func decodeVideoPage(raw json.RawMessage) (*VideoPage, error) {
	if len(raw) == 0 {
		return &VideoPage{}, nil
	}
	if raw[0] == '[' {
		var videos []Video
		if err := json.Unmarshal(raw, &videos); err != nil {
			return nil, fmt.Errorf("failed to parse videos: %w", err)
		}
		return &VideoPage{Videos: videos}, nil
	}
	var page VideoPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, fmt.Errorf("failed to parse video page: %w", err)
	}
	return &page, nil
}
