package ui

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthieugras/vidctl/internal/api"
	"github.com/matthieugras/vidctl/internal/auth"
	"github.com/matthieugras/vidctl/internal/worker"
)

func pagedJob(id, page, total int) *worker.Job {
	return &worker.Job{
		ID:       id,
		Path:     fmt.Sprintf("/videos?page=%d", page),
		PageInfo: &worker.PageInfo{Page: page, TotalPages: total},
	}
}

func sampleResults() []worker.Result {
	expired := &api.SessionExpiredError{Err: auth.ErrSessionExpired}
	return []worker.Result{
		{Job: pagedJob(0, 1, 4), StatusCode: 200, Bytes: 1000, Duration: 12 * time.Millisecond},
		{Job: pagedJob(1, 2, 4), StatusCode: 404, Bytes: 50},
		{Job: pagedJob(2, 3, 4), Error: errors.New("connection reset")},
		{Job: pagedJob(3, 4, 4), Error: expired, Fatal: true},
	}
}

func TestSummaryAdd(t *testing.T) {
	s := Summary{Total: 4}
	for _, r := range sampleResults() {
		s.Add(r)
	}

	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 1, s.NonOK)
	assert.Equal(t, 2, s.Failed)
	assert.Equal(t, 4, s.Done())
	assert.Equal(t, int64(1050), s.Bytes)
	assert.NotEmpty(t, s.Fatal)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "GET /videos?page=2 [2/5]", resultLabel(worker.Result{Job: pagedJob(0, 2, 5)}))

	post := &worker.Job{Path: "/users/logout", Options: &api.RequestOptions{Method: "POST"}}
	assert.Equal(t, "POST /users/logout", resultLabel(worker.Result{Job: post}))
	assert.Equal(t, "?", resultLabel(worker.Result{}))
}

func TestRunSimple(t *testing.T) {
	results := make(chan worker.Result, 4)
	for _, r := range sampleResults() {
		results <- r
	}
	close(results)

	var buf bytes.Buffer
	summary := RunSimple(&buf, 4, results)
	out := buf.String()

	assert.Equal(t, 4, summary.Done())
	assert.Contains(t, out, "Processing 4 requests")
	assert.Contains(t, out, "GET /videos?page=1 [1/4]: 200")
	assert.Contains(t, out, "connection reset")
	assert.Contains(t, out, "Complete: 1 succeeded, 1 non-2xx, 2 failed")
	assert.Contains(t, out, "FATAL:")
}

func TestModelCountsResults(t *testing.T) {
	results := make(chan worker.Result)
	statuses := make(chan worker.WorkerStatus)
	m := NewModel(4, 2, results, statuses, nil)

	for _, r := range sampleResults()[:3] {
		next, cmd := m.Update(ResultMsg(r))
		require.NotNil(t, cmd, "model should keep listening for results")
		m = next.(Model)
	}

	assert.Equal(t, 3, m.summary.Done())
	assert.Len(t, m.recentResults, 3)
	assert.Len(t, m.errors, 1)
	assert.Empty(t, m.summary.Fatal)
	assert.Contains(t, m.View(), "3/4 requests")
}

func TestModelFatalResult(t *testing.T) {
	m := NewModel(4, 2, nil, nil, nil)

	working := worker.WorkerStatus{ID: 1, State: worker.WorkerStateWorking, Path: "/videos", Started: time.Now()}
	next, _ := m.Update(WorkerStatusMsg(working))
	m = next.(Model)
	require.Equal(t, worker.WorkerStateWorking, m.workers[1].State)

	next, _ = m.Update(ResultMsg(sampleResults()[3]))
	m = next.(Model)

	assert.NotEmpty(t, m.summary.Fatal)
	assert.False(t, m.finishTime.IsZero())
	for _, w := range m.workers {
		assert.Equal(t, worker.WorkerStateIdle, w.State)
	}
	assert.Contains(t, m.View(), "SESSION EXPIRED")

	// Late status updates are ignored once the session is gone
	next, cmd := m.Update(WorkerStatusMsg(working))
	m = next.(Model)
	assert.Nil(t, cmd)
	assert.Equal(t, worker.WorkerStateIdle, m.workers[1].State)
}

func TestModelQuitCallsOnQuit(t *testing.T) {
	quits := 0
	m := NewModel(1, 1, nil, nil, func() { quits++ })

	next, cmd := m.Update(keyMsg("q"))
	m = next.(Model)

	assert.Equal(t, 1, quits)
	assert.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.True(t, strings.Contains(m.View(), "Batch Complete"))
}

func TestModelDone(t *testing.T) {
	m := NewModel(0, 3, nil, nil, nil)
	next, _ := m.Update(DoneMsg{})
	m = next.(Model)

	assert.True(t, m.done)
	for _, w := range m.workers {
		assert.Equal(t, worker.WorkerStateDone, w.State)
	}
}

func TestModelBackoffBanner(t *testing.T) {
	m := NewModel(1, 1, nil, nil, nil)
	next, _ := m.Update(BackoffMsg{Active: true, Duration: 3 * time.Second})
	m = next.(Model)
	assert.Contains(t, m.View(), "backing off for 3s")

	next, _ = m.Update(BackoffMsg{Active: false})
	m = next.(Model)
	assert.NotContains(t, m.View(), "backing off for")
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}
