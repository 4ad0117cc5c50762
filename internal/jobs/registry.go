package jobs

import (
	"fmt"
	"sync"
	"time"

	"styletransfer/internal/domain"
)

// Registry is the authoritative table of job snapshots. Readers always see a
// complete snapshot; writes replace the whole entry.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]domain.JobSnapshot
	now  func() time.Time
}

func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{jobs: make(map[string]domain.JobSnapshot), now: now}
}

// Begin records a new pending job.
func (r *Registry) Begin(id string) (domain.JobSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return domain.JobSnapshot{}, fmt.Errorf("%w: job %s", domain.ErrDuplicateKey, id)
	}
	snap := domain.JobSnapshot{ID: id, State: domain.JobStatePending, UpdatedAt: r.now()}
	r.jobs[id] = snap
	return snap, nil
}

// Fold applies a progress event and moves the job to processing. Progress
// never decreases: an event reporting less than what was already folded keeps
// the higher value.
func (r *Registry) Fold(id string, ev domain.ProgressEvent) (domain.JobSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.mutable(id)
	if err != nil {
		return snap, err
	}

	progress := snap.Progress
	if ev.TotalSteps > 0 {
		p := ev.Iteration * 100 / ev.TotalSteps
		p = max(0, min(100, p))
		progress = max(progress, p)
	}
	style := domain.FiniteLoss(ev.StyleLoss)
	content := domain.FiniteLoss(ev.ContentLoss)

	snap.State = domain.JobStateProcessing
	snap.Progress = progress
	snap.StyleLoss = &style
	snap.ContentLoss = &content
	snap.UpdatedAt = r.now()
	r.jobs[id] = snap
	return snap, nil
}

// Complete moves the job to completed. resultURL must be non-empty.
func (r *Registry) Complete(id, resultURL string) (domain.JobSnapshot, error) {
	if resultURL == "" {
		return domain.JobSnapshot{}, fmt.Errorf("%w: completed job needs a result locator", domain.ErrInvalidInput)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.mutable(id)
	if err != nil {
		return snap, err
	}
	snap.State = domain.JobStateCompleted
	snap.Progress = 100
	snap.ResultURL = resultURL
	snap.UpdatedAt = r.now()
	r.jobs[id] = snap
	return snap, nil
}

// Fail moves the job to failed with message.
func (r *Registry) Fail(id, message string) (domain.JobSnapshot, error) {
	if message == "" {
		message = "unknown error"
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	snap, err := r.mutable(id)
	if err != nil {
		return snap, err
	}
	snap.State = domain.JobStateFailed
	snap.Error = message
	snap.UpdatedAt = r.now()
	r.jobs[id] = snap
	return snap, nil
}

func (r *Registry) Get(id string) (domain.JobSnapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.jobs[id]
	return snap, ok
}

// Counts tallies snapshots per state.
func (r *Registry) Counts() map[domain.JobState]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.JobState]int, 4)
	for _, snap := range r.jobs {
		out[snap.State]++
	}
	return out
}

// mutable must be called with mu held.
func (r *Registry) mutable(id string) (domain.JobSnapshot, error) {
	snap, ok := r.jobs[id]
	if !ok {
		return snap, fmt.Errorf("%w: job %s", domain.ErrNotFound, id)
	}
	if snap.State.Terminal() {
		return snap, fmt.Errorf("%w: job %s is %s", domain.ErrTerminal, id, snap.State)
	}
	return snap, nil
}
