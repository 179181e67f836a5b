package job

import (
	"context"
	"errors"
	"slices"
)

// ErrJobNotFound is returned when a job cannot be found by ID.
var ErrJobNotFound = errors.New("job not found")

// Repository defines the interface for job persistence.
type Repository interface {
	// Save persists a job, replacing any stored job with the same ID.
	Save(ctx context.Context, job *Job) error

	// Update replaces a stored job. Returns ErrJobNotFound if the job no
	// longer exists; it never recreates a deleted job.
	Update(ctx context.Context, job *Job) error

	// FindByID retrieves a job by its unique identifier.
	// Returns ErrJobNotFound if the job does not exist.
	FindByID(ctx context.Context, id string) (*Job, error)

	// List returns all jobs, most recently created first.
	List(ctx context.Context) ([]*Job, error)

	// Delete removes a job from storage.
	// Returns ErrJobNotFound if the job does not exist.
	Delete(ctx context.Context, id string) error
}

// sortNewestFirst orders jobs by creation time, newest first, with the ID as
// a tie breaker.
func sortNewestFirst(jobs []*Job) {
	slices.SortFunc(jobs, func(a, b *Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
}
