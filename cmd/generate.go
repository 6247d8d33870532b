package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/storage"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// Generate downloads one playlist's media files and assembles them into a single file.
//
// The playlist comes from --url flags or from a record file (--file). Interrupting the command
// cancels the generation; nothing is reported for it except the cancellation itself.
func (r *Runner) Generate(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("tui") {
		return r.TUI(ctx, cmd)
	}

	req, record, err := r.requestFromFlags(cmd)
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

	r.logger.Info("starting generation", "id", req.ID, "sources", len(req.Sources), "base_dir", baseDir)
	r.writePlain("Generating %s from %d media files...\n\n", req.ID, len(req.Sources))

	progress := make(chan tasks.ProgressUpdate, 64)
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for update := range progress {
			r.printProgress(update)
		}
	}()

	gen, err := d.Generate(ctx, req, baseDir, progress)
	if err != nil {
		close(progress)
		<-printed
		return err
	}
	job := recorder.Started(req)

	sigCtx, stopSignals := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	res, err := gen.Wait(sigCtx)
	if sigCtx.Err() != nil && errors.Is(err, sigCtx.Err()) {
		if cerr := d.Cancel(context.Background()); cerr != nil {
			r.logger.Warn("failed to cancel generation", "id", req.ID, "error", cerr)
		}
		err = shared.ErrCancelled
	}
	close(progress)
	<-printed

	if errors.Is(err, shared.ErrCancelled) {
		recorder.Cancelled(job)
		r.writePlainln("Generation of %s cancelled", req.ID)
		return nil
	}
	recorder.Finished(job, res)

	if record != nil {
		res.ApplyTo(record, r.recordKeys())
		if werr := writeRecord(cmd.String("file"), record); werr != nil {
			r.logger.Error("failed to update record file", "file", cmd.String("file"), "error", werr)
		}
	}

	if res.Succeeded() && res.Path != "" {
		if cmd.Bool("publish") {
			if perr := r.publish(ctx, res); perr != nil {
				r.logger.Error("failed to publish media file", "id", res.ID, "error", perr)
			}
		}
		if cmd.Bool("open") {
			if oerr := shared.OpenPath(res.Path); oerr != nil {
				r.logger.Warn("failed to open media file", "path", res.Path, "error", oerr)
			}
		}
	}

	if cmd.Bool("json") {
		data, jerr := formatter.ResultToJSON(res)
		if jerr != nil {
			return jerr
		}
		r.writePlain("%s\n", data)
	} else {
		r.writePlain("\n")
		r.writePlainHeader("Generation Complete")
		r.output.Write(formatter.ResultToText(res))
	}

	return res.Err
}

func (r *Runner) printProgress(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.CreateStaging, tasks.DownloadSources, tasks.AssembleSources:
		r.writePlain("→ %s\n", update.Message)
	case tasks.SourceFinished:
		marker := "✓"
		if status, ok := update.Data.(tasks.SourceStatus); ok && status.Err != nil {
			marker = "✗"
		}
		r.writePlain("   %s [%d/%d] %s\n", marker, update.Step, update.Total, update.Message)
	case tasks.RunBatch:
		r.writePlain("\n▶ %s\n", update.Message)
	case tasks.Completed:
		r.writePlain("→ %s\n", update.Message)
	}
}

func (r *Runner) publish(ctx context.Context, res models.GenerationResult) error {
	if r.config.Publish.BucketURL == "" {
		return fmt.Errorf("%w: publish.bucket_url is not set", shared.ErrMissingConfig)
	}

	p, err := storage.NewPublisher(ctx, r.config.Publish.BucketURL, r.fs, r.logger)
	if err != nil {
		return err
	}
	defer p.Close()

	key, err := p.Publish(ctx, res)
	if err != nil {
		return err
	}
	r.writePlain("Published to %s (%s)\n", r.config.Publish.BucketURL, key)
	return nil
}

// requestFromFlags builds the request from --file or from --id and --url. The record is returned
// when it came from a file so the result can be written back into it.
func (r *Runner) requestFromFlags(cmd *cli.Command) (models.GenerationRequest, map[string]any, error) {
	if path := cmd.String("file"); path != "" {
		if len(cmd.StringSlice("url")) > 0 {
			return models.GenerationRequest{}, nil, fmt.Errorf("%w: cannot combine --file and --url", shared.ErrInvalidArgument)
		}

		record, err := readRecord(path)
		if err != nil {
			return models.GenerationRequest{}, nil, err
		}
		if _, ok := record["id"]; !ok && cmd.String("id") != "" {
			record["id"] = cmd.String("id")
		}

		req, err := models.RequestFromRecord(record, r.recordKeys())
		if err != nil {
			return models.GenerationRequest{}, nil, err
		}
		return req, record, nil
	}

	urls := cmd.StringSlice("url")
	if len(urls) == 0 {
		return models.GenerationRequest{}, nil, fmt.Errorf("%w: --url or --file is required", shared.ErrMissingArgument)
	}

	id := cmd.String("id")
	if id == "" {
		id = shared.GenerateID()
	}

	req := models.NewGenerationRequest(id, urls)
	if err := req.Validate(); err != nil {
		return models.GenerationRequest{}, nil, err
	}
	return req, nil, nil
}

// readRecord loads a playlist record from a JSON or YAML file.
func readRecord(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	record := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &record)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &record)
	default:
		return nil, fmt.Errorf("%w: unsupported record extension %q", shared.ErrInvalidInput, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return record, nil
}

// writeRecord stores record back in the format it was read in.
func writeRecord(path string, record map[string]any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(record)
	default:
		data, err = shared.MarshalJSON(record, true)
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
