package repositories

import (
	"bytes"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func TestNextSequence(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(db, "generations")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestGenerationRepository(t *testing.T) {
	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		job := models.NewGenerationJob(0, "pl-1", 3)

		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}
		if job.ID() == "" {
			t.Error("job ID should be set after creation")
		}
		if job.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", job.Sequence())
		}
	})

	t.Run("Get", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		job := models.NewGenerationJob(0, "pl-1", 3)
		job.Start(time.Now())

		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if retrieved.RequestID() != "pl-1" {
			t.Errorf("expected request pl-1, got %s", retrieved.RequestID())
		}
		if retrieved.Status() != models.JobRunning {
			t.Errorf("expected running, got %s", retrieved.Status())
		}
		if retrieved.StartedAt() == nil {
			t.Error("start time should round-trip")
		}
		if retrieved.CompletedAt() != nil {
			t.Error("completion time should be empty")
		}
	})

	t.Run("Get NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		_, err := NewGenerationRepository(db).Get("nonexistent-id")
		if !errors.Is(err, shared.ErrGenerationNotFound) {
			t.Errorf("expected ErrGenerationNotFound, got %v", err)
		}
	})

	t.Run("Update", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		job := models.NewGenerationJob(0, "pl-1", 3)
		job.Start(time.Now())
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		job.Finish(models.GenerationResult{Path: "/p/pl-1/media_file", Partial: true, Skipped: []int{1}, Bytes: 6}, time.Now())
		if err := repo.Update(job); err != nil {
			t.Fatalf("failed to update job: %v", err)
		}

		retrieved, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if retrieved.Status() != models.JobPartial {
			t.Errorf("expected partial, got %s", retrieved.Status())
		}
		if retrieved.MediaFilePath() != "/p/pl-1/media_file" {
			t.Errorf("unexpected path %q", retrieved.MediaFilePath())
		}
		if retrieved.SourcesSkipped() != 1 || retrieved.BytesWritten() != 6 {
			t.Errorf("unexpected counts: skipped=%d bytes=%d", retrieved.SourcesSkipped(), retrieved.BytesWritten())
		}
	})

	t.Run("Update NotFound", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		job := models.NewGenerationJob(0, "pl-1", 1)
		job.SetID("missing")
		if err := NewGenerationRepository(db).Update(job); !errors.Is(err, shared.ErrGenerationNotFound) {
			t.Errorf("expected ErrGenerationNotFound, got %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		job := models.NewGenerationJob(0, "pl-1", 1)
		if err := repo.Create(job); err != nil {
			t.Fatalf("failed to create job: %v", err)
		}

		if err := repo.Delete(job.ID()); err != nil {
			t.Fatalf("failed to delete job: %v", err)
		}
		if _, err := repo.Get(job.ID()); err == nil {
			t.Error("soft-deleted job should not be returned")
		}
		if err := repo.Delete(job.ID()); err == nil {
			t.Error("expected error deleting twice")
		}
	})

	t.Run("List", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		for _, id := range []string{"a", "b", "a"} {
			job := models.NewGenerationJob(0, id, 1)
			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
		}

		all, err := repo.List(map[string]any{})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 jobs, got %d", len(all))
		}
		if all[0].Sequence() > all[2].Sequence() {
			t.Error("jobs should be ordered by sequence")
		}

		byRequest, err := repo.List(map[string]any{"request_id": "a"})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(byRequest) != 2 {
			t.Errorf("expected 2 jobs for a, got %d", len(byRequest))
		}

		limited, err := repo.List(map[string]any{"limit": 1, "status": models.JobPending})
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(limited) != 1 {
			t.Errorf("expected 1 job, got %d", len(limited))
		}
	})

	t.Run("Latest", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		first := models.NewGenerationJob(0, "pl", 1)
		second := models.NewGenerationJob(0, "pl", 2)
		for _, job := range []*models.GenerationJob{first, second} {
			if err := repo.Create(job); err != nil {
				t.Fatalf("failed to create job: %v", err)
			}
		}

		latest, err := repo.Latest("pl")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if latest.ID() != second.ID() {
			t.Errorf("expected %s, got %s", second.ID(), latest.ID())
		}

		if _, err := repo.Latest("other"); !errors.Is(err, shared.ErrGenerationNotFound) {
			t.Errorf("expected ErrGenerationNotFound, got %v", err)
		}
	})
}

func TestJobRecorder(t *testing.T) {
	t.Run("records lifecycle", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		recorder := NewJobRecorder(repo, log.New(&bytes.Buffer{}))

		job := recorder.Started(models.NewGenerationRequest("pl", []string{"http://a/1"}))
		if job == nil {
			t.Fatal("expected job to be recorded")
		}

		recorder.Finished(job, models.GenerationResult{ID: "pl", Path: "/p/pl/media_file", Bytes: 3})

		stored, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if stored.Status() != models.JobSucceeded {
			t.Errorf("expected succeeded, got %s", stored.Status())
		}
	})

	t.Run("records cancellation", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewGenerationRepository(db)
		recorder := NewJobRecorder(repo, log.New(&bytes.Buffer{}))

		job := recorder.Started(models.NewGenerationRequest("pl", nil))
		recorder.Cancelled(job)

		stored, err := repo.Get(job.ID())
		if err != nil {
			t.Fatalf("failed to get job: %v", err)
		}
		if stored.Status() != models.JobCancelled {
			t.Errorf("expected cancelled, got %s", stored.Status())
		}
	})

	t.Run("nil repository is a no-op", func(t *testing.T) {
		recorder := NewJobRecorder(nil, log.New(&bytes.Buffer{}))
		job := recorder.Started(models.NewGenerationRequest("pl", nil))
		if job != nil {
			t.Error("expected no job without a repository")
		}
		recorder.Finished(job, models.GenerationResult{})
		recorder.Cancelled(job)
	})

	t.Run("logs storage failures", func(t *testing.T) {
		db := setupTestDB(t)
		var buf bytes.Buffer
		recorder := NewJobRecorder(NewGenerationRepository(db), log.New(&buf))
		db.Close()

		if job := recorder.Started(models.NewGenerationRequest("pl", nil)); job != nil {
			t.Error("expected nil job on closed database")
		}
		if !bytes.Contains(buf.Bytes(), []byte("failed to record generation start")) {
			t.Errorf("expected warning in log, got %q", buf.String())
		}
	})
}
