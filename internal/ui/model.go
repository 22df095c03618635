package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matthieugras/vidctl/internal/worker"
)

// Model represents the batch progress UI state
type Model struct {
	summary Summary

	// Worker tracking
	workers       []worker.WorkerStatus
	workerUpdates <-chan worker.WorkerStatus

	// Backoff state
	isBackingOff     bool
	backoffRemaining time.Duration

	overallProgress progress.Model
	spinner         spinner.Model

	// Results channel
	resultsCh <-chan worker.Result

	// Recent results for display
	recentResults []resultInfo
	maxRecent     int

	// Errors
	errors []string

	// Dimensions
	width int

	// State
	quitting   bool
	done       bool
	startTime  time.Time
	finishTime time.Time

	// Quit callback
	onQuit func()
}

type resultInfo struct {
	label    string
	status   int
	bytes    int64
	errorMsg string
}

// Message types
type ResultMsg worker.Result
type WorkerStatusMsg worker.WorkerStatus
type BackoffMsg struct {
	Active   bool
	Duration time.Duration
}
type TickMsg time.Time
type DoneMsg struct{}

// NewModel creates a new UI model
func NewModel(
	totalJobs int,
	numWorkers int,
	resultsCh <-chan worker.Result,
	workerUpdates <-chan worker.WorkerStatus,
	onQuit func(),
) Model {
	prog := progress.New(
		progress.WithGradient(ProgressGradientStart, ProgressGradientEnd),
		progress.WithWidth(40),
	)

	workers := make([]worker.WorkerStatus, numWorkers)
	for i := range workers {
		workers[i] = worker.WorkerStatus{ID: i, State: worker.WorkerStateIdle}
	}

	return Model{
		summary:         Summary{Total: totalJobs},
		workers:         workers,
		workerUpdates:   workerUpdates,
		overallProgress: prog,
		spinner:         spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(WorkerWorkingStyle)),
		resultsCh:       resultsCh,
		recentResults:   make([]resultInfo, 0, 10),
		maxRecent:       5,
		errors:          make([]string, 0),
		startTime:       time.Now(),
		onQuit:          onQuit,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		waitForResult(m.resultsCh),
		waitForWorkerStatus(m.workerUpdates),
	)
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.onQuit != nil {
				m.onQuit()
			}
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.overallProgress.Width = max(msg.Width-30, 20)
		return m, nil

	case ResultMsg:
		return m.handleResult(worker.Result(msg))

	case WorkerStatusMsg:
		// Ignore status updates after the session died (workers are already shown as idle)
		if m.summary.Fatal != "" {
			return m, nil
		}
		status := worker.WorkerStatus(msg)
		if status.ID >= 0 && status.ID < len(m.workers) {
			m.workers[status.ID] = status
		}
		return m, waitForWorkerStatus(m.workerUpdates)

	case BackoffMsg:
		m.isBackingOff = msg.Active
		m.backoffRemaining = msg.Duration
		return m, nil

	case TickMsg:
		return m, tickCmd()

	case DoneMsg:
		m.done = true
		if m.finishTime.IsZero() {
			m.finishTime = time.Now()
		}
		for i := range m.workers {
			m.workers[i] = worker.WorkerStatus{ID: i, State: worker.WorkerStateDone}
		}
		return m, nil // Keep TUI visible, user can press 'q' to quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		progressModel, cmd := m.overallProgress.Update(msg)
		m.overallProgress = progressModel.(progress.Model)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleResult(result worker.Result) (tea.Model, tea.Cmd) {
	hadFatal := m.summary.Fatal != ""
	m.summary.Add(result)
	label := resultLabel(result)

	if result.Fatal && !hadFatal {
		m.finishTime = time.Now() // Stop the elapsed timer
		m.errors = append(m.errors, "FATAL: "+m.summary.Fatal)

		// Clear all worker statuses to idle (status updates may be dropped after cancel)
		for i := range m.workers {
			m.workers[i] = worker.WorkerStatus{ID: i, State: worker.WorkerStateIdle}
		}
		return m, waitForResult(m.resultsCh)
	}

	info := resultInfo{label: label, status: result.StatusCode, bytes: result.Bytes}
	if result.Error != nil {
		info.errorMsg = result.Error.Error()
		m.errors = append(m.errors, fmt.Sprintf("%s: %v", label, result.Error))
	}
	m.addRecentResult(info)

	// Stop timer when all jobs are processed
	if m.summary.Done() >= m.summary.Total && m.finishTime.IsZero() {
		m.finishTime = time.Now()
	}
	return m, waitForResult(m.resultsCh)
}

func (m *Model) addRecentResult(r resultInfo) {
	m.recentResults = append(m.recentResults, r)
	if len(m.recentResults) > m.maxRecent {
		m.recentResults = m.recentResults[1:]
	}
}

func (m Model) elapsed() time.Duration {
	if m.finishTime.IsZero() {
		return time.Since(m.startTime).Round(time.Second)
	}
	return m.finishTime.Sub(m.startTime).Round(time.Second)
}

// View renders the UI
func (m Model) View() string {
	if m.quitting {
		return m.renderFinalSummary()
	}

	var b strings.Builder

	b.WriteString(TitleStyle.Render(" vidctl batch ") + "\n\n")

	if m.summary.Fatal != "" {
		// Use terminal width minus padding, with a reasonable default
		bannerWidth := m.width - 6
		if bannerWidth < 40 {
			bannerWidth = 80
		}
		b.WriteString(FatalStyle.Width(bannerWidth).Render("SESSION EXPIRED: "+m.summary.Fatal) + "\n")
		b.WriteString(MutedStyle.Render("Run 'vidctl login' and retry the batch.") + "\n\n")
	}

	// Overall progress
	done := m.summary.Done()
	pct := 0.0
	if m.summary.Total > 0 {
		pct = float64(done) / float64(m.summary.Total)
	}
	fmt.Fprintf(&b, "Progress: %s %d/%d requests\n\n", m.overallProgress.ViewAs(pct), done, m.summary.Total)

	fmt.Fprintf(&b, "OK: %s  Non-2xx: %s  Failed: %s  Received: %s  Elapsed: %s\n\n",
		SuccessStyle.Render(fmt.Sprintf("%d", m.summary.Succeeded)),
		WarningStyle.Render(fmt.Sprintf("%d", m.summary.NonOK)),
		ErrorStyle.Render(fmt.Sprintf("%d", m.summary.Failed)),
		HighlightStyle.Render(FormatBytes(m.summary.Bytes)),
		m.elapsed())

	// Workers status
	b.WriteString(MutedStyle.Render("Workers:") + "\n")
	for _, w := range m.workers {
		b.WriteString(m.renderWorker(w) + "\n")
	}

	if m.isBackingOff {
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render(
			fmt.Sprintf("⚠ Server overloaded - backing off for %s", m.backoffRemaining.Round(time.Second))) + "\n")
	}

	if len(m.recentResults) > 0 {
		b.WriteString("\n" + MutedStyle.Render("Recent:") + "\n")
		for _, r := range m.recentResults {
			b.WriteString(renderRecent(r) + "\n")
		}
	}

	b.WriteString("\n" + FooterStyle.Render("Press 'q' to quit"))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

func (m Model) renderWorker(w worker.WorkerStatus) string {
	path := truncate(w.Path, 45)
	page := ""
	if w.PageLabel != "" {
		page = "[" + w.PageLabel + "]"
	}
	switch w.State {
	case worker.WorkerStateWorking:
		running := time.Since(w.Started).Round(100 * time.Millisecond)
		return WorkerWorkingStyle.Render(fmt.Sprintf("  [%2d] %s %-45s %-9s %s", w.ID, m.spinner.View(), path, page, running))
	case worker.WorkerStateBackingOff:
		return WorkerBackoffStyle.Render(fmt.Sprintf("  [%2d]   %-45s %-9s backing off...", w.ID, path, page))
	case worker.WorkerStateDone:
		return MutedStyle.Render(fmt.Sprintf("  [%2d] done", w.ID))
	default:
		return WorkerIdleStyle.Render(fmt.Sprintf("  [%2d] idle", w.ID))
	}
}

func renderRecent(r resultInfo) string {
	if r.errorMsg != "" {
		return ErrorStyle.Render(fmt.Sprintf("  ✗ %s: %s", r.label, truncate(r.errorMsg, 50)))
	}
	line := fmt.Sprintf("  %d %s (%s)", r.status, r.label, FormatBytes(r.bytes))
	if r.status >= 200 && r.status < 300 {
		return SuccessStyle.Render("  ✓" + line[1:])
	}
	return StatusStyle(r.status).Render("  !" + line[1:])
}

func (m Model) renderFinalSummary() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render(" Batch Complete ") + "\n\n")

	fmt.Fprintf(&b, "Total requests: %d\n", m.summary.Total)
	fmt.Fprintf(&b, "Succeeded:      %s\n", SuccessStyle.Render(fmt.Sprintf("%d", m.summary.Succeeded)))
	fmt.Fprintf(&b, "Non-2xx:        %s\n", WarningStyle.Render(fmt.Sprintf("%d", m.summary.NonOK)))
	fmt.Fprintf(&b, "Failed:         %s\n", ErrorStyle.Render(fmt.Sprintf("%d", m.summary.Failed)))
	fmt.Fprintf(&b, "Received:       %s\n", HighlightStyle.Render(FormatBytes(m.summary.Bytes)))
	fmt.Fprintf(&b, "Duration:       %s\n", m.elapsed())

	if len(m.errors) > 0 && len(m.errors) <= 10 {
		b.WriteString("\n" + ErrorStyle.Render("Errors:") + "\n")
		for _, err := range m.errors {
			fmt.Fprintf(&b, "  • %s\n", err)
		}
	} else if len(m.errors) > 10 {
		b.WriteString("\n" + ErrorStyle.Render(fmt.Sprintf("Errors: %d (showing first 10)", len(m.errors))) + "\n")
		for _, err := range m.errors[:10] {
			fmt.Fprintf(&b, "  • %s\n", err)
		}
	}

	b.WriteString("\n")
	return b.String()
}

// Helper commands
func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

func waitForResult(ch <-chan worker.Result) tea.Cmd {
	return func() tea.Msg {
		result, ok := <-ch
		if !ok {
			return DoneMsg{}
		}
		return ResultMsg(result)
	}
}

func waitForWorkerStatus(ch <-chan worker.WorkerStatus) tea.Cmd {
	return func() tea.Msg {
		status, ok := <-ch
		if !ok {
			return nil
		}
		return WorkerStatusMsg(status)
	}
}
