package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/matthieugras/vidctl/internal/api"
	"github.com/matthieugras/vidctl/internal/auth"
	"github.com/matthieugras/vidctl/internal/backoff"
	"github.com/matthieugras/vidctl/internal/logging"
)

// PoolConfig configures the worker pool
type PoolConfig struct {
	NumWorkers int
	Client     *api.Client
	Backoff    *backoff.GlobalBackoff // optional, only used for status reporting

	// CaptureBodies keeps up to MaxBodyBytes of each response body in the result
	CaptureBodies bool
	MaxBodyBytes  int64
}

// Pool runs batch jobs on a pond pool. All workers share one client, so
// concurrent 401s are recovered by a single session refresh.
type Pool struct {
	pond       pond.Pool
	numWorkers int

	// Dependencies
	client        *api.Client
	backoff       *backoff.GlobalBackoff
	captureBodies bool
	maxBodyBytes  int64

	// Results channel
	results chan Result

	// Status tracking
	statusMu      sync.RWMutex
	workerStatus  map[int]*WorkerStatus
	statusUpdates chan WorkerStatus
	workerIDPool  chan int // Pool of reusable worker IDs

	fatalOnce sync.Once

	ctx    context.Context
	cancel context.CancelFunc
}

// NewPool creates a new worker pool using pond.
// Cancelling ctx aborts in-flight requests.
func NewPool(ctx context.Context, cfg PoolConfig) *Pool {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	ctx, cancel := context.WithCancel(ctx)

	// Create pool of reusable worker IDs for status tracking
	workerIDPool := make(chan int, cfg.NumWorkers)
	for i := range cfg.NumWorkers {
		workerIDPool <- i
	}

	return &Pool{
		pond:          pond.NewPool(cfg.NumWorkers),
		numWorkers:    cfg.NumWorkers,
		client:        cfg.Client,
		backoff:       cfg.Backoff,
		captureBodies: cfg.CaptureBodies,
		maxBodyBytes:  cfg.MaxBodyBytes,
		results:       make(chan Result, cfg.NumWorkers*2),
		workerStatus:  make(map[int]*WorkerStatus),
		statusUpdates: make(chan WorkerStatus, cfg.NumWorkers*10),
		workerIDPool:  workerIDPool,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Submit adds a job to the pool.
func (p *Pool) Submit(job Job) {
	p.pond.Submit(func() {
		p.executeJob(&job)
	})
}

// SubmitAll submits multiple jobs
func (p *Pool) SubmitAll(jobs []Job) {
	for _, job := range jobs {
		p.Submit(job)
	}
}

// Results returns channel of completed results. It is closed by StopAndWait.
// Every submitted job produces exactly one result.
func (p *Pool) Results() <-chan Result {
	return p.results
}

// StatusUpdates returns channel of worker status updates
func (p *Pool) StatusUpdates() <-chan WorkerStatus {
	return p.statusUpdates
}

// GetWorkerStatus returns the current status of all workers
func (p *Pool) GetWorkerStatus() []WorkerStatus {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()

	status := make([]WorkerStatus, 0, len(p.workerStatus))
	for _, ws := range p.workerStatus {
		status = append(status, *ws)
	}
	return status
}

// StopAndWait waits for all submitted jobs and closes the result channels.
// The caller must keep draining Results until it is closed.
func (p *Pool) StopAndWait() {
	p.pond.StopAndWait()
	p.cancel()
	close(p.results)
	close(p.statusUpdates)
}

// Stop cancels in-flight requests; queued jobs report the cancellation.
func (p *Pool) Stop() {
	p.cancel()
}

// executeJob processes a single job and sends its result
func (p *Pool) executeJob(job *Job) {
	// Acquire a worker ID from the pool (blocks until one is available)
	workerID := <-p.workerIDPool
	defer func() {
		p.workerIDPool <- workerID
	}()

	p.updateStatus(workerID, WorkerStateWorking, job)
	defer p.updateStatus(workerID, WorkerStateIdle, nil)

	p.results <- p.processJob(workerID, job)
}

func (p *Pool) processJob(workerID int, job *Job) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := p.ctx.Err(); err != nil {
		result.Error = fmt.Errorf("skipped: %w", err)
		return result
	}

	if p.backoff != nil && p.backoff.IsBackingOff() {
		p.updateStatus(workerID, WorkerStateBackingOff, job)
		logging.Debug("Job %d waiting %v for backoff", job.ID, p.backoff.GetBackoffRemaining())
	}

	resp, err := p.client.Do(p.ctx, job.Path, job.Options)
	p.updateStatus(workerID, WorkerStateWorking, job)
	if err != nil {
		result.Error = err
		result.Duration = time.Since(start)

		if errors.Is(err, auth.ErrSessionExpired) {
			// No other job can succeed without a new login
			result.Fatal = true
			p.fatalOnce.Do(func() {
				logging.Error("Session expired, cancelling remaining jobs")
				p.cancel()
			})
		} else {
			logging.Error("Job %d %s %s failed: %v", job.ID, job.Method(), job.Path, err)
		}
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.Request != nil {
		result.RequestID = resp.Request.Header.Get(api.RequestIDHeader)
	}

	if p.captureBodies {
		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(resp.Body, p.maxBodyBytes))
		result.Bytes = n
		result.Body = buf.Bytes()
		if err != nil {
			result.Error = fmt.Errorf("failed to read response body: %w", err)
		}
	} else {
		n, err := io.Copy(io.Discard, resp.Body)
		result.Bytes = n
		if err != nil {
			result.Error = fmt.Errorf("failed to read response body: %w", err)
		}
	}

	result.Duration = time.Since(start)
	logging.Info("Job %d %s %s -> %d (%d bytes, %v)", job.ID, job.Method(), job.Path, result.StatusCode, result.Bytes, result.Duration)
	return result
}

func (p *Pool) updateStatus(id int, state WorkerState, job *Job) {
	status := WorkerStatus{
		ID:    id,
		State: state,
	}
	if job != nil {
		status.JobID = job.ID
		status.Path = job.Path
		status.PageLabel = job.PageInfo.PageLabel()
		status.Started = time.Now()
	}

	p.statusMu.Lock()
	p.workerStatus[id] = &status
	p.statusMu.Unlock()

	// Non-blocking send to status updates channel
	select {
	case p.statusUpdates <- status:
	default:
	}
}
