package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"hedge-lab/internal/domain"
	"hedge-lab/internal/orchestrator"
	"hedge-lab/internal/pairing"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the job has finished.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// ErrRegistryFull is returned when every retained job is still running.
var ErrRegistryFull = errors.New("too many active runs")

// eventBuffer is the per-subscriber channel capacity. Progress events
// beyond it are dropped; the final status event is always delivered.
const eventBuffer = 64

// Event is one message on a job's progress stream.
type Event struct {
	Type     string `json:"type"` // "progress" or "status"
	JobID    string `json:"job_id"`
	Status   Status `json:"status"`
	Group    string `json:"group,omitempty"`
	Done     int    `json:"groups_done"`
	Total    int    `json:"groups_total"`
	Admitted int    `json:"pairs_admitted"`
	Error    string `json:"error,omitempty"`
}

// Job is one analysis submitted to the server.
type Job struct {
	ID        string
	Params    domain.AnalysisParameters
	CreatedAt time.Time

	mu         sync.RWMutex
	status     Status
	finishedAt time.Time
	err        string
	run        *orchestrator.AnalysisRun
	last       Event
	cancel     context.CancelFunc
	subs       map[chan Event]struct{}
}

func newJob(id string, params domain.AnalysisParameters, now time.Time) *Job {
	return &Job{
		ID:        id,
		Params:    params,
		CreatedAt: now,
		status:    StatusPending,
		last:      Event{Type: "status", JobID: id, Status: StatusPending},
		subs:      make(map[chan Event]struct{}),
	}
}

// Snapshot is a consistent copy of a job's state.
type Snapshot struct {
	ID         string
	Status     Status
	Params     domain.AnalysisParameters
	CreatedAt  time.Time
	FinishedAt time.Time
	Error      string
	Progress   Event
	Run        *orchestrator.AnalysisRun // nil until completed
}

// Snapshot returns the job's current state.
func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Snapshot{
		ID:         j.ID,
		Status:     j.status,
		Params:     j.Params,
		CreatedAt:  j.CreatedAt,
		FinishedAt: j.finishedAt,
		Error:      j.err,
		Progress:   j.last,
		Run:        j.run,
	}
}

func (j *Job) start(cancel context.CancelFunc) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusRunning
	j.cancel = cancel
	j.last.Type = "status"
	j.last.Status = StatusRunning
	j.publish(j.last)
}

// progress records a finished group. Callbacks may arrive out of order;
// Done only moves forward.
func (j *Job) progress(p pairing.Progress) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}
	ev := j.last
	ev.Type = "progress"
	ev.Group = p.Group
	ev.Total = p.Total
	ev.Admitted += p.Admitted
	if p.Done > ev.Done {
		ev.Done = p.Done
	}
	j.last = ev
	j.publish(ev)
}

func (j *Job) finish(run *orchestrator.AnalysisRun, err error, now time.Time) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return
	}

	switch {
	case err == nil:
		j.status = StatusCompleted
		j.run = run
	case errors.Is(err, context.Canceled):
		j.status = StatusCancelled
		j.err = err.Error()
	default:
		j.status = StatusFailed
		j.err = err.Error()
	}
	j.finishedAt = now
	j.cancel = nil

	ev := j.last
	ev.Type = "status"
	ev.Status = j.status
	ev.Error = j.err
	if run != nil {
		ev.Admitted = len(run.Pairs)
	}
	j.last = ev

	for ch := range j.subs {
		deliver(ch, ev)
		close(ch)
	}
	j.subs = nil
}

// Cancel requests cancellation. It returns false when the job has already
// finished.
func (j *Job) Cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	if j.cancel != nil {
		j.cancel()
	}
	return true
}

// Subscribe returns a stream of events starting with the current state.
// The channel is closed after the final status event. Call the returned
// func to unsubscribe early.
func (j *Job) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)

	j.mu.Lock()
	defer j.mu.Unlock()

	ch <- j.last
	if j.status.Terminal() {
		close(ch)
		return ch, func() {}
	}
	j.subs[ch] = struct{}{}

	return ch, func() {
		j.mu.Lock()
		defer j.mu.Unlock()
		if _, ok := j.subs[ch]; ok {
			delete(j.subs, ch)
			close(ch)
		}
	}
}

// publish must be called with j.mu held.
func (j *Job) publish(ev Event) {
	for ch := range j.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// deliver sends ev, evicting the oldest buffered event when full.
// Only the job writes to ch, so one eviction always makes room.
func deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- ev:
	default:
	}
}

// Registry retains the most recent jobs in memory.
type Registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string // creation order
	limit int
}

// NewRegistry creates a registry that keeps at most limit jobs.
func NewRegistry(limit int) *Registry {
	if limit < 1 {
		limit = 1
	}
	return &Registry{jobs: make(map[string]*Job), limit: limit}
}

// Add registers a job, evicting the oldest finished jobs to stay within
// the limit.
func (r *Registry) Add(j *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for len(r.order) >= r.limit {
		if !r.evictOldestFinished() {
			return ErrRegistryFull
		}
	}
	r.jobs[j.ID] = j
	r.order = append(r.order, j.ID)
	return nil
}

func (r *Registry) evictOldestFinished() bool {
	for i, id := range r.order {
		if r.jobs[id].Snapshot().Status.Terminal() {
			delete(r.jobs, id)
			r.order = append(r.order[:i], r.order[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the job with the given id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}

// List returns snapshots of all retained jobs, oldest first.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id].Snapshot())
	}
	return out
}

// CancelAll cancels every unfinished job.
func (r *Registry) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, j := range r.jobs {
		j.Cancel()
	}
}
