package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

type repoFactory struct {
	name string
	new  func(t *testing.T) Repository
}

func repositories() []repoFactory {
	return []repoFactory{
		{"memory", func(t *testing.T) Repository {
			return NewMemoryRepository()
		}},
		{"sqlite", func(t *testing.T) Repository {
			repo, err := OpenSQLiteRepository(context.Background(), filepath.Join(t.TempDir(), "db", "jobs.db"))
			if err != nil {
				t.Fatalf("open sqlite repository: %v", err)
			}
			t.Cleanup(func() { _ = repo.Close() })
			return repo
		}},
	}
}

func forEachRepository(t *testing.T, fn func(t *testing.T, repo Repository)) {
	for _, f := range repositories() {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.new(t))
		})
	}
}

func TestRepository_SaveAndFind(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		job := New()
		job.Filename = "talk.wav"
		job.Options = Options{Denoise: true, ChunkSize: 500, Language: "id"}

		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		saved, err := repo.FindByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if saved.ID != job.ID {
			t.Errorf("expected ID %s, got %s", job.ID, saved.ID)
		}
		if saved.Options != job.Options {
			t.Errorf("expected options %+v, got %+v", job.Options, saved.Options)
		}
		if saved.Steps == nil {
			t.Error("expected Steps to be initialized")
		}
	})
}

func TestRepository_SaveUpdate(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		job := New()
		_ = repo.Save(ctx, job)

		_ = job.Start()
		job.UpdateProgress(55)
		job.LogStep(StepTranscription, StepSuccess, "Transcription completed", map[string]any{"detected_language": "en"})
		job.UpdateResult(func(r *Result) {
			r.Transcript = "hello"
			r.Enhancement = &Enhancement{Tier: "medium", Stages: []string{"highpass@100Hz"}}
		})
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		saved, _ := repo.FindByID(ctx, job.ID)
		if saved.Status != StatusRunning {
			t.Errorf("expected status %s, got %s", StatusRunning, saved.Status)
		}
		if saved.Progress != 55 {
			t.Errorf("expected progress 55, got %d", saved.Progress)
		}
		if len(saved.Steps) != 1 || saved.Steps[0].Fields["detected_language"] != "en" {
			t.Errorf("unexpected steps %+v", saved.Steps)
		}
		if saved.Result.Transcript != "hello" || saved.Result.Enhancement == nil || saved.Result.Enhancement.Tier != "medium" {
			t.Errorf("unexpected result %+v", saved.Result)
		}
	})
}

func TestRepository_FindByID_NotFound(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		_, err := repo.FindByID(context.Background(), "nonexistent")
		if !errors.Is(err, ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
	})
}

func TestRepository_FindByID_ReturnsCopy(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		job := New()
		_ = repo.Save(ctx, job)

		found, _ := repo.FindByID(ctx, job.ID)
		found.Progress = 99
		_ = found.Start()

		original, _ := repo.FindByID(ctx, job.ID)
		if original.Progress != 0 {
			t.Error("modifying returned job should not affect repository")
		}
		if original.Status != StatusInQueue {
			t.Error("modifying returned job status should not affect repository")
		}
	})
}

func TestRepository_List(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()

		jobs, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 0 {
			t.Errorf("expected 0 jobs, got %d", len(jobs))
		}

		older := New()
		older.CreatedAt = time.Now().Add(-time.Hour)
		newer := New()
		_ = repo.Save(ctx, older)
		_ = repo.Save(ctx, newer)

		jobs, err = repo.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 2 {
			t.Fatalf("expected 2 jobs, got %d", len(jobs))
		}
		if jobs[0].ID != newer.ID || jobs[1].ID != older.ID {
			t.Errorf("expected newest first, got %s, %s", jobs[0].ID, jobs[1].ID)
		}
	})
}

func TestRepository_Delete(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		job := New()
		_ = repo.Save(ctx, job)

		if err := repo.Delete(ctx, job.ID); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if _, err := repo.FindByID(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound on second delete, got %v", err)
		}
	})
}

func TestRepository_ConcurrentAccess(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		done := make(chan bool)

		go func() {
			for i := 0; i < 50; i++ {
				_ = repo.Save(ctx, New())
			}
			done <- true
		}()

		go func() {
			for i := 0; i < 50; i++ {
				_, _ = repo.List(ctx)
			}
			done <- true
		}()

		<-done
		<-done

		jobs, err := repo.List(ctx)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(jobs) != 50 {
			t.Errorf("expected 50 jobs, got %d", len(jobs))
		}
	})
}

func TestSQLiteRepository_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "jobs.db")

	repo, err := OpenSQLiteRepository(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	job := New()
	_ = job.Start()
	_ = job.Fail("transcribe: service unavailable")
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("save: %v", err)
	}
	_ = repo.Close()

	reopened, err := OpenSQLiteRepository(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	saved, err := reopened.FindByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if saved.Status != StatusFailed || saved.Error != "transcribe: service unavailable" {
		t.Errorf("unexpected job after reopen: %s %q", saved.Status, saved.Error)
	}
	if !saved.CompletedAt.Equal(job.CompletedAt) {
		t.Errorf("expected CompletedAt %v, got %v", job.CompletedAt, saved.CompletedAt)
	}
}

func TestMemoryRepository_EvictsOldestFinished(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(WithMaxRetained(2))
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	queued := New()
	queued.CreatedAt = base
	if err := repo.Save(ctx, queued); err != nil {
		t.Fatalf("save queued: %v", err)
	}

	var finished []*Job
	for i := range 3 {
		j := New()
		j.CreatedAt = base.Add(time.Duration(i+1) * time.Minute)
		_ = j.Start()
		_ = j.Complete()
		if err := repo.Save(ctx, j); err != nil {
			t.Fatalf("save finished %d: %v", i, err)
		}
		finished = append(finished, j)
	}

	if _, err := repo.FindByID(ctx, finished[0].ID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected oldest finished run evicted, got %v", err)
	}
	for _, j := range append(finished[1:], queued) {
		if _, err := repo.FindByID(ctx, j.ID); err != nil {
			t.Errorf("expected %s kept: %v", j.ID, err)
		}
	}
}

func TestMemoryRepository_UnlimitedRetention(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository(WithMaxRetained(0))
	for range 5 {
		j := New()
		_ = j.Start()
		_ = j.Fail("boom")
		if err := repo.Save(ctx, j); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	jobs, _ := repo.List(ctx)
	if len(jobs) != 5 {
		t.Errorf("expected 5 jobs, got %d", len(jobs))
	}
}

func TestRepository_UpdateDoesNotRecreate(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo Repository) {
		ctx := context.Background()
		job := New()
		if err := repo.Save(ctx, job); err != nil {
			t.Fatalf("save: %v", err)
		}

		_ = job.Start()
		if err := repo.Update(ctx, job); err != nil {
			t.Fatalf("update: %v", err)
		}
		saved, err := repo.FindByID(ctx, job.ID)
		if err != nil {
			t.Fatalf("find: %v", err)
		}
		if saved.Status != StatusRunning {
			t.Errorf("expected status %s, got %s", StatusRunning, saved.Status)
		}

		if err := repo.Delete(ctx, job.ID); err != nil {
			t.Fatalf("delete: %v", err)
		}
		_ = job.Fail("late write")
		if err := repo.Update(ctx, job); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("expected ErrJobNotFound, got %v", err)
		}
		if _, err := repo.FindByID(ctx, job.ID); !errors.Is(err, ErrJobNotFound) {
			t.Errorf("expected deleted job to stay deleted, got %v", err)
		}
	})
}
