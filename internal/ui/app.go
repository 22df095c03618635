package ui

import (
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/matthieugras/vidctl/internal/backoff"
	"github.com/matthieugras/vidctl/internal/worker"
)

// App wraps the Bubble Tea program
type App struct {
	program *tea.Program
	model   Model
	onQuit  func() // Called when user requests quit (ctrl+c)
}

// NewApp creates a new UI application
func NewApp(
	totalJobs int,
	numWorkers int,
	resultsCh <-chan worker.Result,
	workerUpdates <-chan worker.WorkerStatus,
	bo *backoff.GlobalBackoff,
	onQuit func(),
) *App {
	model := NewModel(totalJobs, numWorkers, resultsCh, workerUpdates, onQuit)

	app := &App{
		model:  model,
		onQuit: onQuit,
	}

	// Set up backoff callbacks
	if bo != nil {
		bo.SetCallbacks(
			func(duration time.Duration) {
				if app.program != nil {
					app.program.Send(BackoffMsg{Active: true, Duration: duration})
				}
			},
			func() {
				if app.program != nil {
					app.program.Send(BackoffMsg{Active: false})
				}
			},
		)
	}

	return app
}

// Run starts the UI and returns the final tallies
func (a *App) Run() (Summary, error) {
	a.program = tea.NewProgram(a.model, tea.WithAltScreen())

	final, err := a.program.Run()
	if err != nil {
		return Summary{}, fmt.Errorf("UI error: %w", err)
	}
	if m, ok := final.(Model); ok {
		return m.summary, nil
	}
	return a.model.summary, nil
}

// Quit quits the UI
func (a *App) Quit() {
	if a.program != nil {
		a.program.Quit()
	}
}

// Summary tallies a finished batch
type Summary struct {
	Total     int
	Succeeded int // 2xx
	NonOK     int // completed with another status
	Failed    int // no response
	Bytes     int64
	Fatal     string
}

// Add records one result
func (s *Summary) Add(r worker.Result) {
	switch {
	case r.Error != nil:
		s.Failed++
		if r.Fatal && s.Fatal == "" {
			s.Fatal = r.Error.Error()
		}
	case r.OK():
		s.Succeeded++
	default:
		s.NonOK++
	}
	s.Bytes += r.Bytes
}

// Done returns how many results were recorded
func (s *Summary) Done() int {
	return s.Succeeded + s.NonOK + s.Failed
}

// resultLabel names a result for display, e.g. "GET /videos?page=2 [2/5]"
func resultLabel(r worker.Result) string {
	if r.Job == nil {
		return "?"
	}
	label := r.Job.Method() + " " + r.Job.Path
	if r.Job.PageInfo != nil {
		label += " [" + r.Job.PageInfo.PageLabel() + "]"
	}
	return label
}

// RunSimple prints results as they arrive (for non-interactive mode)
func RunSimple(w io.Writer, totalJobs int, resultsCh <-chan worker.Result) Summary {
	summary := Summary{Total: totalJobs}

	fmt.Fprintf(w, "Processing %d requests...\n\n", totalJobs)

	for result := range resultsCh {
		summary.Add(result)
		label := resultLabel(result)

		if result.Error != nil {
			fmt.Fprintf(w, "%s %s: %v\n", ErrorStyle.Render("✗"), label, result.Error)
			continue
		}
		mark := SuccessStyle.Render("✓")
		if !result.OK() {
			mark = WarningStyle.Render("!")
		}
		fmt.Fprintf(w, "%s %s: %s %s (%s)\n",
			mark,
			label,
			StatusStyle(result.StatusCode).Render(fmt.Sprintf("%d", result.StatusCode)),
			FormatBytes(result.Bytes),
			result.Duration.Round(time.Millisecond))
	}

	fmt.Fprintf(w, "\nComplete: %d succeeded, %d non-2xx, %d failed, %s received\n",
		summary.Succeeded, summary.NonOK, summary.Failed, FormatBytes(summary.Bytes))
	if summary.Fatal != "" {
		fmt.Fprintln(w, FatalStyle.Render("FATAL: "+summary.Fatal))
	}
	return summary
}
