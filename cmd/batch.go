package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// Batch generates every playlist listed in a manifest, one after another.
func (r *Runner) Batch(ctx context.Context, cmd *cli.Command) error {
	manifest, err := models.LoadManifest(cmd.String("manifest"))
	if err != nil {
		return err
	}

	reqs, err := manifest.GenerationRequests(shared.GenerateID)
	if err != nil {
		return err
	}

	baseDir := cmd.String("base-dir")
	if baseDir == "" {
		baseDir = r.config.Downloader.BaseDir
	}

	d, stop := r.newDownloader(ctx)
	defer stop()

	_, recorder, closeHistory := r.openHistory()
	defer closeHistory()

	runner := tasks.NewBatchRunner(d, tasks.BatchOptions{
		BaseDir:   baseDir,
		RateLimit: r.config.Batch.RateLimit,
		Burst:     r.config.Batch.Burst,
		OutputDir: cmd.String("output"),
		Fs:        r.fs,
		Recorder:  recorder,
		Logger:    r.logger,
	})

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	r.logger.Info("starting batch", "playlists", len(reqs), "base_dir", baseDir)

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.printProgress(update)
		}
	}()

	summary, runErr := runner.Run(sigCtx, reqs, progress)
	close(progress)
	<-printed

	if cmd.Bool("publish") {
		for _, res := range summary.Results {
			if !res.Succeeded() || res.Path == "" {
				continue
			}
			if err := r.publish(ctx, res); err != nil {
				r.logger.Error("failed to publish media file", "id", res.ID, "error", err)
			}
		}
	}

	switch cmd.String("format") {
	case "csv":
		data, err := formatter.BatchToCSV(summary)
		if err != nil {
			return err
		}
		r.output.Write(data)
	case "markdown", "md":
		r.output.Write(formatter.BatchToMarkdown(summary))
	case "json":
		if err := r.writeJSON(formatter.NewBatchManifest(summary), true); err != nil {
			return err
		}
	default:
		r.writePlain("\n")
		r.writePlainHeader("Batch Complete")
		r.writePlain("Playlists: %d\n", summary.Total)
		r.writePlain("Succeeded: %d  Partial: %d  Failed: %d  Cancelled: %d\n",
			summary.Succeeded, summary.Partial, summary.Failed, summary.Cancelled)
		r.writePlain("Elapsed: %s\n", shared.FormatElapsed(summary.FinishedAt.Sub(summary.StartedAt)))
		if summary.ManifestPath != "" {
			r.writePlain("Manifest: %s\n", summary.ManifestPath)
		}
	}

	if runErr != nil && sigCtx.Err() != nil {
		r.writePlainln("Batch interrupted")
		return nil
	}
	if runErr != nil {
		return runErr
	}
	if summary.Failed > 0 {
		return fmt.Errorf("%d of %d playlists failed", summary.Failed, summary.Total)
	}
	return nil
}
