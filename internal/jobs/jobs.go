// Package jobs tracks background work such as detached indexing runs. Each
// job's state is owned by the goroutine running it; everyone else reads
// immutable snapshots, so no caller can mutate another job's bookkeeping.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// State is the lifecycle of a job.
type State string

const (
	// StatePending means the job is registered but not yet started.
	StatePending State = "pending"
	// StateRunning means the job goroutine is executing.
	StateRunning State = "running"
	// StateSucceeded means the job finished without error.
	StateSucceeded State = "succeeded"
	// StateFailed means the job returned an error.
	StateFailed State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// Snapshot is an immutable view of a job at one instant.
type Snapshot struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	State      State     `json:"state"`
	Stage      string    `json:"stage,omitempty"`
	Processed  int       `json:"processed"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Tracker is handed to the job function as the single writer of the job's
// progress. It must not escape the job goroutine.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// SetStage updates the current stage label.
func (t *Tracker) SetStage(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Stage = stage
}

// SetProgress updates the processed/total counters.
func (t *Tracker) SetProgress(processed, total int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Processed = processed
	t.snap.Total = total
}

// Snapshot returns a copy of the current job state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

func (t *Tracker) setState(state State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.State = state
	switch state {
	case StateRunning:
		t.snap.StartedAt = time.Now()
	case StateSucceeded, StateFailed:
		t.snap.FinishedAt = time.Now()
	}
}

func (t *Tracker) setError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snap.Error = err.Error()
}

type job struct {
	tracker *Tracker
	done    chan struct{}
}

// Registry runs and tracks jobs.
type Registry struct {
	mu     sync.RWMutex
	jobs   map[string]*job
	order  []string
	nextID int
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*job)}
}

// Fn is a job body. It reports progress through the tracker it owns.
type Fn func(ctx context.Context, t *Tracker) error

// Submit registers and starts a job, returning its ID immediately.
func (r *Registry) Submit(ctx context.Context, name string, fn Fn) string {
	r.mu.Lock()
	r.nextID++
	id := fmt.Sprintf("job-%d", r.nextID)
	j := &job{
		tracker: &Tracker{snap: Snapshot{ID: id, Name: name, State: StatePending}},
		done:    make(chan struct{}),
	}
	r.jobs[id] = j
	r.order = append(r.order, id)
	r.mu.Unlock()

	go func() {
		defer close(j.done)
		j.tracker.setState(StateRunning)
		if err := fn(ctx, j.tracker); err != nil {
			j.tracker.setError(err)
			j.tracker.setState(StateFailed)
			return
		}
		j.tracker.setState(StateSucceeded)
	}()

	return id
}

// Get returns a snapshot of the job with the given ID.
func (r *Registry) Get(id string) (Snapshot, bool) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, false
	}
	return j.tracker.Snapshot(), true
}

// List returns snapshots of all jobs in submission order.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]Snapshot, 0, len(r.order))
	for _, id := range r.order {
		snaps = append(snaps, r.jobs[id].tracker.Snapshot())
	}
	return snaps
}

// Wait blocks until the job reaches a terminal state or the context is
// cancelled, returning the final snapshot.
func (r *Registry) Wait(ctx context.Context, id string) (Snapshot, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("unknown job %s", id)
	}

	select {
	case <-ctx.Done():
		return j.tracker.Snapshot(), ctx.Err()
	case <-j.done:
		return j.tracker.Snapshot(), nil
	}
}
