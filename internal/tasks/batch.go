package tasks

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"golang.org/x/time/rate"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// Recorder stores generation history. repositories.JobRecorder implements it.
type Recorder interface {
	Started(req models.GenerationRequest) *models.GenerationJob
	Finished(job *models.GenerationJob, result models.GenerationResult)
	Cancelled(job *models.GenerationJob)
}

// BatchOptions contains configuration for batch generations.
type BatchOptions struct {
	BaseDir   string   // Parent of every playlist directory
	RateLimit float64  // Generations started per second (default: 1)
	Burst     int      // Limiter burst (default: 1)
	OutputDir string   // Where batch_manifest.json is written; empty skips the manifest
	Fs        afero.Fs // Filesystem for the manifest (default: OS filesystem)
	Recorder  Recorder // Optional history
	Logger    *log.Logger
}

// BatchRunner generates many playlists through one downloader, one at a time.
type BatchRunner struct {
	downloader *MediaFileDownloader
	limiter    *rate.Limiter
	opts       BatchOptions
}

// NewBatchRunner creates a runner that shares d with any other caller; d stays single-flight.
func NewBatchRunner(d *MediaFileDownloader, opts BatchOptions) *BatchRunner {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1.0
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &BatchRunner{
		downloader: d,
		limiter:    rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		opts:       opts,
	}
}

// Run generates reqs in order. A failed playlist does not stop the batch; a cancelled ctx does, after
// cancelling the playlist in progress.
func (b *BatchRunner) Run(ctx context.Context, reqs []models.GenerationRequest, progress chan<- ProgressUpdate) (*models.BatchSummary, error) {
	summary := &models.BatchSummary{Total: len(reqs), StartedAt: time.Now()}
	defer func() { summary.FinishedAt = time.Now() }()

	for i, req := range reqs {
		if err := b.limiter.Wait(ctx); err != nil {
			return summary, err
		}

		sendProgress(progress, runBatchUpdate(i+1, len(reqs), req.ID))

		res, err := b.runOne(ctx, req, progress)
		if errors.Is(err, shared.ErrCancelled) {
			summary.Cancelled++
			if ctx.Err() != nil {
				return summary, ctx.Err()
			}
			continue
		}
		summary.Add(res)
	}

	summary.FinishedAt = time.Now()
	if b.opts.OutputDir != "" {
		path := filepath.Join(b.opts.OutputDir, "batch_manifest.json")
		if err := formatter.WriteBatchManifest(b.opts.Fs, summary, path); err != nil {
			return summary, fmt.Errorf("batch completed but failed to write manifest: %w", err)
		}
		summary.ManifestPath = path
	}

	return summary, nil
}

// runOne returns the delivered result, or ErrCancelled when the generation was cancelled. Requests the
// downloader refuses become failed results.
func (b *BatchRunner) runOne(ctx context.Context, req models.GenerationRequest, progress chan<- ProgressUpdate) (models.GenerationResult, error) {
	job := b.record().Started(req)

	gen, err := b.downloader.Generate(ctx, req, b.opts.BaseDir, progress)
	if err != nil {
		if ctx.Err() != nil {
			b.record().Cancelled(job)
			return models.GenerationResult{ID: req.ID}, shared.ErrCancelled
		}
		b.opts.Logger.Error("generation rejected", "id", req.ID, "error", err)
		res := models.GenerationResult{ID: req.ID, Sources: len(req.Sources), Err: err}
		b.record().Finished(job, res)
		return res, err
	}

	res, err := gen.Wait(ctx)
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		if cerr := b.downloader.Cancel(context.Background()); cerr != nil {
			b.opts.Logger.Warn("failed to cancel generation", "id", req.ID, "error", cerr)
		}
		err = shared.ErrCancelled
	}
	if errors.Is(err, shared.ErrCancelled) {
		b.record().Cancelled(job)
		return res, shared.ErrCancelled
	}

	b.record().Finished(job, res)
	return res, err
}

func (b *BatchRunner) record() Recorder {
	if b.opts.Recorder == nil {
		return noopRecorder{}
	}
	return b.opts.Recorder
}

type noopRecorder struct{}

func (noopRecorder) Started(models.GenerationRequest) *models.GenerationJob { return nil }
func (noopRecorder) Finished(*models.GenerationJob, models.GenerationResult) {}
func (noopRecorder) Cancelled(*models.GenerationJob) {}
