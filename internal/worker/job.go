package worker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/matthieugras/vidctl/internal/api"
)

// Job is one request of a batch
type Job struct {
	ID      int
	Path    string              // relative to the API base, or absolute
	Options *api.RequestOptions // nil means GET without body

	// PageInfo is set when the job was expanded from a page range
	PageInfo *PageInfo
}

// PageInfo identifies a job's place in an expanded page range
type PageInfo struct {
	Page       int
	TotalPages int
}

// PageLabel returns a display label like "2/5"
func (p *PageInfo) PageLabel() string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("%d/%d", p.Page, p.TotalPages)
}

// Method returns the HTTP method the job will use
func (j *Job) Method() string {
	if j.Options == nil || j.Options.Method == "" {
		return http.MethodGet
	}
	return j.Options.Method
}

// Result represents the outcome of a job
type Result struct {
	Job        *Job
	RequestID  string
	StatusCode int
	Bytes      int64
	Body       []byte // only when the pool captures bodies
	Error      error
	Duration   time.Duration
	Fatal      bool // the session is gone; remaining jobs were cancelled
}

// OK reports whether the request completed with a 2xx status
func (r *Result) OK() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// WorkerStatus represents the status of a worker
type WorkerStatus struct {
	ID        int
	State     WorkerState
	JobID     int
	Path      string
	PageLabel string
	Started   time.Time
}

// WorkerState represents the state of a worker
type WorkerState int

const (
	WorkerStateIdle WorkerState = iota
	WorkerStateWorking
	WorkerStateBackingOff
	WorkerStateDone
)

func (s WorkerState) String() string {
	switch s {
	case WorkerStateIdle:
		return "idle"
	case WorkerStateWorking:
		return "working"
	case WorkerStateBackingOff:
		return "backing off"
	case WorkerStateDone:
		return "done"
	default:
		return "unknown"
	}
}
