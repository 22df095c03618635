package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/matthieugras/vidctl/internal/api"
	"github.com/matthieugras/vidctl/internal/logging"
	"github.com/matthieugras/vidctl/internal/output"
	"github.com/matthieugras/vidctl/internal/ui"
	"github.com/matthieugras/vidctl/internal/worker"
)

type batchOptions struct {
	file       string
	from, to   int
	method     string
	headers    []string
	data       string
	simple     bool
	errorsOnly bool
	bodies     bool
	toStdout   bool
	name       string
}

func newBatchCmd(v *viper.Viper) *cobra.Command {
	var opts batchOptions

	cmd := &cobra.Command{
		Use:   "batch [path...]",
		Short: "Send many requests in parallel with one shared session",
		Long: `Send many requests in parallel. All workers share one session, so when it
expires it is refreshed once for everybody. If it cannot be refreshed the
remaining requests are cancelled.

Paths come from the arguments and/or --file (one per line, # comments allowed).
With --to, each path is expanded into one request per page: {page} in the path
is replaced, or a page query parameter is set.`,
		Example: `  vidctl batch --to 5 '/videos?limit=50'
  vidctl batch -f paths.txt -o results --gzip --bodies
  vidctl batch --from 2 --to 4 /videos/page/{page} --stdout | jq .status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(v, opts, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.file, "file", "f", "", "Read paths from this file ('-' for stdin)")
	flags.IntVar(&opts.from, "from", 1, "First page when expanding page ranges")
	flags.IntVar(&opts.to, "to", 0, "Last page when expanding page ranges (0 = no expansion)")
	flags.StringVarP(&opts.method, "method", "X", "GET", "HTTP method for every request")
	flags.StringArrayVarP(&opts.headers, "header", "H", nil, "Extra header 'Name: value' (repeatable)")
	flags.StringVarP(&opts.data, "data", "d", "", "Request body for every request, or @file")
	flags.BoolVar(&opts.simple, "simple", false, "Use simple output mode (no fancy UI)")
	flags.BoolVar(&opts.errorsOnly, "errors-only", false, "Only record failed and non-2xx requests")
	flags.BoolVar(&opts.bodies, "bodies", false, "Include response bodies in the records")
	flags.BoolVar(&opts.toStdout, "stdout", false, "Write records to stdout instead of --output")
	flags.StringVar(&opts.name, "name", "", "Base name of the output file (default: first path)")
	return cmd
}

func runBatch(v *viper.Viper, opts batchOptions, args []string) error {
	paths := append([]string(nil), args...)
	if opts.file != "" {
		filePaths, err := readPaths(opts.file)
		if err != nil {
			return err
		}
		paths = append(paths, filePaths...)
	}

	reqOpts, err := buildRequestOptions(opts.method, opts.headers, opts.data)
	if err != nil {
		return err
	}

	jobs, err := buildBatchJobs(paths, opts, reqOpts)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return fmt.Errorf("no requests to send: pass paths as arguments or with --file")
	}

	return runWithClient(v, func(ctx context.Context, rt *runtime) error {
		writer, location, err := openRecordWriter(rt, opts, jobs[0].Path)
		if err != nil {
			return err
		}

		logging.Info("Starting batch of %d requests with %d workers", len(jobs), rt.cfg.Workers)

		pool := worker.NewPool(ctx, worker.PoolConfig{
			NumWorkers:    rt.cfg.Workers,
			Client:        rt.client,
			Backoff:       rt.backoff,
			CaptureBodies: opts.bodies && writer != nil,
		})
		pool.SubmitAll(jobs)
		go pool.StopAndWait()

		// Every result is recorded before the display sees it
		display := make(chan worker.Result, rt.cfg.Workers)
		fanoutDone := make(chan struct{})
		go func() {
			defer close(fanoutDone)
			defer close(display)
			for result := range pool.Results() {
				if writer != nil {
					if err := writer.WriteRecord(output.FromResult(result)); err != nil {
						logging.Error("Failed to write record for job %d: %v", result.Job.ID, err)
					}
				}
				result.Body = nil
				display <- result
			}
		}()

		var (
			summary ui.Summary
			uiErr   error
		)
		useTUI := !opts.simple && !opts.toStdout && isTerminal()
		if !useTUI {
			go func() {
				for range pool.StatusUpdates() {
				}
			}()
			var progress io.Writer = os.Stdout
			if opts.toStdout {
				progress = os.Stderr
			}
			summary = ui.RunSimple(progress, len(jobs), display)
		} else {
			// onQuit triggers cancellation when the user quits via the UI (pressing 'q')
			app := ui.NewApp(len(jobs), rt.cfg.Workers, display, pool.StatusUpdates(), rt.backoff, pool.Stop)
			summary, uiErr = app.Run()
			pool.Stop()
			for range display {
			}
		}
		<-fanoutDone

		if writer != nil {
			if err := writer.Close(); err != nil {
				return fmt.Errorf("failed to close output: %w", err)
			}
			if location != "" {
				fmt.Fprintf(os.Stderr, "Wrote %d records to %s\n", writer.Count(), location)
			}
		}

		if uiErr != nil {
			return uiErr
		}
		if summary.Fatal != "" {
			return errBatchAborted
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d of %d requests failed", summary.Failed, summary.Total)
		}
		return nil
	})
}

// buildBatchJobs expands page ranges when --to is set, else makes one job per path
func buildBatchJobs(paths []string, opts batchOptions, ro *api.RequestOptions) ([]worker.Job, error) {
	if opts.to <= 0 {
		return worker.BuildJobs(paths, ro, 0), nil
	}
	if opts.from < 1 || opts.from > opts.to {
		return nil, fmt.Errorf("invalid page range %d..%d", opts.from, opts.to)
	}

	var jobs []worker.Job
	for _, p := range worker.BuildJobs(paths, nil, 0) {
		expanded, err := worker.ExpandPages(p.Path, opts.from, opts.to, ro, len(jobs))
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, expanded...)
	}
	return jobs, nil
}

// openRecordWriter picks where batch records go: stdout, a file under
// --output, or nowhere.
func openRecordWriter(rt *runtime, opts batchOptions, firstPath string) (*output.JSONLWriter, string, error) {
	var (
		writer   *output.JSONLWriter
		location string
	)
	switch {
	case opts.toStdout:
		writer = output.NewStreamWriter(os.Stdout)
	case rt.cfg.OutputDir != "":
		fm, err := output.NewFileManager(rt.cfg.OutputDir, rt.cfg.Gzip)
		if err != nil {
			return nil, "", fmt.Errorf("failed to setup output directory: %w", err)
		}
		name := opts.name
		if name == "" {
			name, _, _ = strings.Cut(firstPath, "?")
		}
		w, path, err := fm.GetWriter(name)
		if err != nil {
			return nil, "", err
		}
		writer, location = w, path
	default:
		return nil, "", nil
	}

	if opts.errorsOnly {
		writer.SetFilter(output.FailuresOnly)
	}
	return writer, location, nil
}

// readPaths reads one path per line from a file or stdin
func readPaths(name string) ([]string, error) {
	var r io.Reader = os.Stdin
	if name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open paths file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var paths []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		paths = append(paths, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read paths: %w", err)
	}
	return paths, nil
}
