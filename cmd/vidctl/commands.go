package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matthieugras/vidctl/internal/api"
	"github.com/matthieugras/vidctl/internal/output"
	"github.com/matthieugras/vidctl/internal/ui"
)

// newRequestCmd sends one arbitrary request through the refreshing client
func newRequestCmd(v *viper.Viper) *cobra.Command {
	var (
		method  string
		headers []string
		data    string
	)

	cmd := &cobra.Command{
		Use:   "request <path|url>",
		Short: "Send a single request with the current session",
		Example: `  vidctl request /users/current-user
  vidctl request -X PATCH /videos/like-video/665f1c
  vidctl request -X POST -H 'Content-Type: application/json' -d @comment.json /comments/665f1c`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := buildRequestOptions(method, headers, data)
			if err != nil {
				return err
			}
			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				start := time.Now()
				resp, err := rt.client.Do(ctx, args[0], opts)
				if err != nil {
					return err
				}
				defer resp.Body.Close()

				body, err := io.ReadAll(resp.Body)
				if err != nil {
					return fmt.Errorf("failed to read response: %w", err)
				}
				ui.PrintResult(cmd.OutOrStdout(), opts.Method, rt.client.ResolveURL(args[0]), resp, body, time.Since(start))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringArrayVarP(&headers, "header", "H", nil, "Extra header 'Name: value' (repeatable)")
	cmd.Flags().StringVarP(&data, "data", "d", "", "Request body, or @file to read it from a file ('@-' for stdin)")
	return cmd
}

// buildRequestOptions turns curl-style flags into RequestOptions
func buildRequestOptions(method string, headers []string, data string) (*api.RequestOptions, error) {
	opts := &api.RequestOptions{
		Method: strings.ToUpper(strings.TrimSpace(method)),
		Header: http.Header{},
	}
	if opts.Method == "" {
		opts.Method = http.MethodGet
	}

	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("invalid header %q, expected 'Name: value'", h)
		}
		opts.Header.Add(strings.TrimSpace(name), strings.TrimSpace(value))
	}

	body, err := readData(data)
	if err != nil {
		return nil, err
	}
	opts.Body = body
	if len(body) > 0 && opts.Header.Get("Content-Type") == "" {
		opts.Header.Set("Content-Type", "application/json")
	}
	return opts, nil
}

func readData(data string) ([]byte, error) {
	switch {
	case data == "":
		return nil, nil
	case data == "@-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read body from stdin: %w", err)
		}
		return b, nil
	case strings.HasPrefix(data, "@"):
		b, err := os.ReadFile(data[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read body file: %w", err)
		}
		return b, nil
	default:
		return []byte(data), nil
	}
}

func newLoginCmd(v *viper.Viper) *cobra.Command {
	var (
		email         string
		password      string
		passwordStdin bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session cookies",
		RunE: func(cmd *cobra.Command, args []string) error {
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if passwordStdin {
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				password = os.Getenv("VID_PASSWORD")
			}
			if password == "" {
				return fmt.Errorf("a password is required (--password, --password-stdin or VID_PASSWORD)")
			}

			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				result, err := rt.client.Login(ctx, api.Credentials{Email: email, Password: password})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Signed in as %s\n",
					ui.SuccessStyle.Render("✓"), ui.HighlightStyle.Render("@"+result.User.UserName))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prefer --password-stdin)")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "Read the password from stdin")
	return cmd
}

func newLogoutCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and forget stored cookies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				defer rt.forgetSession()
				if err := rt.client.Logout(ctx); err != nil {
					return fmt.Errorf("logout failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), ui.SuccessStyle.Render("✓")+" Signed out")
				return nil
			})
		},
	}
}

// jsonFlag adds --json to a listing command
func jsonFlag(cmd *cobra.Command) *bool {
	return cmd.Flags().Bool("json", false, "Print the decoded response as JSON")
}

// printJSON writes v as one JSON line
func printJSON(w io.Writer, v any) error {
	jw := output.NewStreamWriter(w)
	if err := jw.WriteAny(v); err != nil {
		return err
	}
	return jw.Close()
}

func newWhoamiCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			user, err := rt.client.CurrentUser(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), user)
			}
			ui.PrintUser(cmd.OutOrStdout(), user)
			return nil
		})
	}
	return cmd
}

func newVideosCmd(v *viper.Viper) *cobra.Command {
	var (
		opts  = api.DefaultListOptions()
		pages int
	)

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List published videos",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			out := cmd.OutOrStdout()
			_, err := rt.client.WalkVideos(ctx, opts, pages, func(page *api.VideoPage) bool {
				if *asJSON {
					for _, video := range page.Videos {
						if err := printJSON(out, video); err != nil {
							return false
						}
					}
					return true
				}
				ui.PrintVideoPage(out, page)
				return true
			})
			return err
		})
	}

	cmd.Flags().IntVar(&opts.Page, "page", opts.Page, "First page to fetch")
	cmd.Flags().IntVar(&opts.Limit, "limit", opts.Limit, "Videos per page")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", opts.SortBy, "Sort field (createdAt, views, duration)")
	cmd.Flags().StringVar(&opts.Order, "order", opts.Order, "Sort order (asc, desc)")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to fetch (0 = all)")
	return cmd
}

func newTrendingCmd(v *viper.Viper) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "trending",
		Short: "List trending videos",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			videos, err := rt.client.Trending(ctx, limit)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), videos)
			}
			ui.PrintVideos(cmd.OutOrStdout(), videos)
			return nil
		})
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of videos")
	return cmd
}

func newWatchCmd(v *viper.Viper) *cobra.Command {
	var (
		like, dislike, later, record bool
	)

	cmd := &cobra.Command{
		Use:   "watch <video-id>",
		Short: "Show a video and optionally react to it",
		Args:  cobra.ExactArgs(1),
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		if like && dislike {
			return fmt.Errorf("--like and --dislike are mutually exclusive")
		}
		id := args[0]
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			out := cmd.OutOrStdout()
			video, err := rt.client.WatchVideo(ctx, id)
			if err != nil {
				return err
			}
			if *asJSON {
				if err := printJSON(out, video); err != nil {
					return err
				}
			} else {
				ui.PrintVideo(out, video)
			}

			if record {
				if err := rt.client.AddView(ctx, id); err != nil {
					return err
				}
				if err := rt.client.AddWatchHistory(ctx, id); err != nil {
					return err
				}
			}
			if like || dislike {
				react := rt.client.LikeVideo
				if dislike {
					react = rt.client.DislikeVideo
				}
				st, err := react(ctx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "👍 %d  👎 %d\n", st.TotalLikes, st.TotalDislikes)
			}
			if later {
				if err := rt.client.AddWatchLater(ctx, id); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.SuccessStyle.Render("✓")+" Added to watch later")
			}
			return nil
		})
	}

	cmd.Flags().BoolVar(&like, "like", false, "Toggle your like")
	cmd.Flags().BoolVar(&dislike, "dislike", false, "Toggle your dislike")
	cmd.Flags().BoolVar(&later, "later", false, "Add to your watch-later list")
	cmd.Flags().BoolVar(&record, "record", false, "Count a view and add it to your history")
	return cmd
}

func newHistoryCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your watch history",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			videos, err := rt.client.History(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), videos)
			}
			ui.PrintVideos(cmd.OutOrStdout(), videos)
			return nil
		})
	}
	return cmd
}

func newWatchLaterCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch-later [add <video-id>]",
		Short: "List or extend your watch-later list",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || (len(args) == 2 && args[0] == "add") {
				return nil
			}
			return fmt.Errorf("usage: watch-later [add <video-id>]")
		},
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			out := cmd.OutOrStdout()
			if len(args) == 2 {
				if err := rt.client.AddWatchLater(ctx, args[1]); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.SuccessStyle.Render("✓")+" Added to watch later")
				return nil
			}
			videos, err := rt.client.WatchLater(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(out, videos)
			}
			ui.PrintVideos(out, videos)
			return nil
		})
	}
	return cmd
}

func newPlaylistsCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "playlists",
		Short: "List and edit your playlists",
		Args:  cobra.NoArgs,
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			playlists, err := rt.client.Playlists(ctx)
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(cmd.OutOrStdout(), playlists)
			}
			ui.PrintPlaylists(cmd.OutOrStdout(), playlists)
			return nil
		})
	}

	var description string
	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				p, err := rt.client.CreatePlaylist(ctx, args[0], description)
				if err != nil {
					return err
				}
				ui.PrintPlaylists(cmd.OutOrStdout(), []api.Playlist{*p})
				return nil
			})
		},
	}
	create.Flags().StringVar(&description, "description", "", "Playlist description")

	show := &cobra.Command{
		Use:   "show <playlist-id>",
		Short: "Show the videos of a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				p, err := rt.client.Playlist(ctx, args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, ui.HeaderStyle.Render(p.Name))
				videos := make([]api.Video, 0, len(p.Videos))
				for _, ref := range p.Videos {
					if ref.Value != nil {
						videos = append(videos, *ref.Value)
					} else {
						videos = append(videos, api.Video{ID: ref.ID})
					}
				}
				ui.PrintVideos(out, videos)
				return nil
			})
		},
	}

	remove := &cobra.Command{
		Use:   "delete <playlist-id>",
		Short: "Delete a playlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithClient(v, func(ctx context.Context, rt *runtime) error {
				return rt.client.DeletePlaylist(ctx, args[0])
			})
		},
	}

	membership := func(use, short string, fn func(*api.Client) func(context.Context, string, string) (*api.Playlist, error)) *cobra.Command {
		return &cobra.Command{
			Use:   use + " <playlist-id> <video-id>",
			Short: short,
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runWithClient(v, func(ctx context.Context, rt *runtime) error {
					p, err := fn(rt.client)(ctx, args[0], args[1])
					if err != nil {
						return err
					}
					ui.PrintPlaylists(cmd.OutOrStdout(), []api.Playlist{*p})
					return nil
				})
			},
		}
	}

	cmd.AddCommand(
		create,
		show,
		remove,
		membership("add", "Add a video to a playlist", func(c *api.Client) func(context.Context, string, string) (*api.Playlist, error) {
			return c.AddToPlaylist
		}),
		membership("remove", "Remove a video from a playlist", func(c *api.Client) func(context.Context, string, string) (*api.Playlist, error) {
			return c.RemoveFromPlaylist
		}),
	)
	return cmd
}

func newCommentsCmd(v *viper.Viper) *cobra.Command {
	var add string

	cmd := &cobra.Command{
		Use:   "comments <video-id>",
		Short: "List the comments of a video, or add one",
		Args:  cobra.ExactArgs(1),
	}
	asJSON := jsonFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runWithClient(v, func(ctx context.Context, rt *runtime) error {
			out := cmd.OutOrStdout()
			if add != "" {
				if _, err := rt.client.AddComment(ctx, args[0], add); err != nil {
					return err
				}
				fmt.Fprintln(out, ui.SuccessStyle.Render("✓")+" Comment added")
			}
			comments, err := rt.client.Comments(ctx, args[0])
			if err != nil {
				return err
			}
			if *asJSON {
				return printJSON(out, comments)
			}
			ui.PrintComments(out, comments)
			return nil
		})
	}

	cmd.Flags().StringVar(&add, "add", "", "Post this comment first")
	return cmd
}
