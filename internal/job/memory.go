package job

import (
	"context"
	"sync"
)

var _ Repository = (*MemoryRepository)(nil)

// DefaultMaxRetained bounds the finished runs a MemoryRepository keeps.
const DefaultMaxRetained = 500

// MemoryRepository keeps runs in process memory. Runs are lost on restart;
// use SQLiteRepository to keep the run log.
//
// Once more than maxRetained runs have reached a terminal state, the oldest
// finished runs are evicted on Save. Queued and running jobs are never evicted.
type MemoryRepository struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	maxRetained int
}

// MemoryOption configures a MemoryRepository.
type MemoryOption func(*MemoryRepository)

// WithMaxRetained sets how many finished runs are kept. n <= 0 keeps all.
func WithMaxRetained(n int) MemoryOption {
	return func(r *MemoryRepository) {
		r.maxRetained = n
	}
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository(opts ...MemoryOption) *MemoryRepository {
	r := &MemoryRepository{
		jobs:        make(map[string]*Job),
		maxRetained: DefaultMaxRetained,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Save stores a copy of job, replacing any previous version.
func (r *MemoryRepository) Save(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job.Clone()
	if job.IsTerminal() {
		r.evictFinished()
	}
	return nil
}

// Update replaces an existing job.
func (r *MemoryRepository) Update(_ context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return ErrJobNotFound
	}
	r.jobs[job.ID] = job.Clone()
	if job.IsTerminal() {
		r.evictFinished()
	}
	return nil
}

// evictFinished drops the oldest terminal runs above the retention limit.
// Callers hold the write lock.
func (r *MemoryRepository) evictFinished() {
	if r.maxRetained <= 0 {
		return
	}
	finished := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j.IsTerminal() {
			finished = append(finished, j)
		}
	}
	if len(finished) <= r.maxRetained {
		return
	}
	sortNewestFirst(finished)
	for _, j := range finished[r.maxRetained:] {
		delete(r.jobs, j.ID)
	}
}

// FindByID returns a copy of the job with the given ID.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.Clone(), nil
}

// List returns copies of all jobs, newest first.
func (r *MemoryRepository) List(_ context.Context) ([]*Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		result = append(result, j.Clone())
	}
	sortNewestFirst(result)
	return result, nil
}

// Delete removes a job.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return ErrJobNotFound
	}
	delete(r.jobs, id)
	return nil
}
