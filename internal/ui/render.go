package ui

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matthieugras/vidctl/internal/api"
)

// maxTitleLen is where video titles are cut in listings
const maxTitleLen = 48

func ownerName(ref api.Ref[api.User]) string {
	if ref.Value != nil && ref.Value.UserName != "" {
		return "@" + ref.Value.UserName
	}
	return ref.ID
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// PrintVideos writes one line per video
func PrintVideos(w io.Writer, videos []api.Video) {
	if len(videos) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No videos."))
		return
	}
	for _, v := range videos {
		meta := []string{FormatViews(v.Views)}
		if rel := RelativeTime(v.CreatedAt); rel != "" {
			meta = append(meta, rel)
		}
		if owner := ownerName(v.Owner); owner != "" {
			meta = append(meta, owner)
		}
		fmt.Fprintf(w, "%s  %-*s %s  %s\n",
			MutedStyle.Render(v.ID),
			maxTitleLen, truncate(v.Title, maxTitleLen),
			HighlightStyle.Render(fmt.Sprintf("%8s", FormatDuration(v.Duration))),
			MutedStyle.Render(strings.Join(meta, " • ")))
	}
}

// PrintVideoPage writes a listing page and its position
func PrintVideoPage(w io.Writer, page *api.VideoPage) {
	PrintVideos(w, page.Videos)
	if page.TotalPages > 0 {
		fmt.Fprintln(w, FooterStyle.Render(fmt.Sprintf("Page %d of %d (%d videos)", page.Page, page.TotalPages, page.Total)))
	}
}

// PrintVideo writes a single video in a box
func PrintVideo(w io.Writer, v *api.Video) {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(v.Title) + "\n")
	fmt.Fprintf(&b, "%s • %s • %s\n", FormatDuration(v.Duration), FormatViews(v.Views), RelativeTime(v.CreatedAt))
	if owner := ownerName(v.Owner); owner != "" {
		b.WriteString("by " + owner + "\n")
	}
	if v.Description != "" {
		b.WriteString("\n" + v.Description + "\n")
	}
	if v.VideoFile != "" {
		b.WriteString("\n" + MutedStyle.Render(v.VideoFile))
	}
	fmt.Fprintln(w, BoxStyle.Render(strings.TrimRight(b.String(), "\n")))
}

// PrintUser writes the signed-in user
func PrintUser(w io.Writer, u *api.User) {
	var b strings.Builder
	b.WriteString(HeaderStyle.Render(u.FullName) + "  " + MutedStyle.Render("@"+u.UserName) + "\n")
	b.WriteString(u.Email)
	if !u.CreatedAt.IsZero() {
		b.WriteString("\n" + MutedStyle.Render("joined "+RelativeTime(u.CreatedAt)))
	}
	fmt.Fprintln(w, BoxStyle.Render(b.String()))
}

// PrintComments writes one line per comment
func PrintComments(w io.Writer, comments []api.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No comments."))
		return
	}
	for _, c := range comments {
		fmt.Fprintf(w, "%s %s\n  %s\n",
			HighlightStyle.Render(ownerName(c.Owner)),
			MutedStyle.Render(RelativeTime(c.CreatedAt)),
			c.Content)
	}
}

// PrintPlaylists writes one line per playlist
func PrintPlaylists(w io.Writer, playlists []api.Playlist) {
	if len(playlists) == 0 {
		fmt.Fprintln(w, MutedStyle.Render("No playlists."))
		return
	}
	for _, p := range playlists {
		count := "1 video"
		if len(p.Videos) != 1 {
			count = fmt.Sprintf("%d videos", len(p.Videos))
		}
		fmt.Fprintf(w, "%s  %s  %s\n", MutedStyle.Render(p.ID), HeaderStyle.Render(p.Name), MutedStyle.Render(count))
	}
}

// PrintResult writes the status line of a raw request, then its body
func PrintResult(w io.Writer, method, url string, resp *http.Response, body []byte, elapsed time.Duration) {
	status := StatusStyle(resp.StatusCode).Render(resp.Status)
	fmt.Fprintf(w, "%s %s %s %s\n", method, url, status,
		MutedStyle.Render(fmt.Sprintf("(%s, %s)", FormatBytes(int64(len(body))), elapsed.Round(time.Millisecond))))
	if len(body) > 0 {
		fmt.Fprintln(w, strings.TrimRight(string(body), "\n"))
	}
}
