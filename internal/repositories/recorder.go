package repositories

import (
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/plmerge/internal/models"
)

// JobRecorder writes generation history around a downloader run.
//
// Recording is best effort: storage errors are logged and never fail the generation.
type JobRecorder struct {
	repo   *GenerationRepository
	logger *log.Logger
}

// NewJobRecorder creates a recorder backed by repo. A nil repo yields a recorder that does nothing.
func NewJobRecorder(repo *GenerationRepository, logger *log.Logger) *JobRecorder {
	return &JobRecorder{repo: repo, logger: logger}
}

// Started creates a running job for req and returns it, or nil when nothing was stored.
func (r *JobRecorder) Started(req models.GenerationRequest) *models.GenerationJob {
	if r == nil || r.repo == nil {
		return nil
	}

	job := models.NewGenerationJob(0, req.ID, len(req.Sources))
	job.Start(time.Now())
	if err := r.repo.Create(job); err != nil {
		r.logger.Warn("failed to record generation start", "request", req.ID, "error", err)
		return nil
	}
	return job
}

// Finished stores the delivered result on job.
func (r *JobRecorder) Finished(job *models.GenerationJob, result models.GenerationResult) {
	if r == nil || r.repo == nil || job == nil {
		return
	}

	job.Finish(result, time.Now())
	if err := r.repo.Update(job); err != nil {
		r.logger.Warn("failed to record generation result", "job", job.ID(), "error", err)
	}
}

// Cancelled marks job as cancelled.
func (r *JobRecorder) Cancelled(job *models.GenerationJob) {
	if r == nil || r.repo == nil || job == nil {
		return
	}

	job.Cancel(time.Now())
	if err := r.repo.Update(job); err != nil {
		r.logger.Warn("failed to record cancellation", "job", job.ID(), "error", err)
	}
}
