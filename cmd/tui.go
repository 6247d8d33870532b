package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/repositories"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/desertthunder/plmerge/internal/tasks"
	"github.com/desertthunder/plmerge/internal/ui"
)

// TUI launches the interactive terminal UI for one generation; it takes the same playlist flags as
// generate.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	req, _, err := r.requestFromFlags(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/plmerge-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	baseDir := cmd.String("base-dir")
	if baseDir == "" {
		baseDir = r.config.Downloader.BaseDir
	}

	d, stop := r.newDownloader(ctx)
	defer stop()

	_, recorder, closeHistory := r.openHistory()
	defer closeHistory()

	return r.runGenerationTUI(ctx, d, req, baseDir, recorder)
}

// runGenerationTUI runs the interactive model and records the outcome it ended with.
func (r *Runner) runGenerationTUI(ctx context.Context, d *tasks.MediaFileDownloader, req models.GenerationRequest, baseDir string, recorder *repositories.JobRecorder) error {
	model := ui.NewModel(ctx, d, req, baseDir)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	switch res, ok := model.Result(); {
	case ok:
		job := recorder.Started(req)
		recorder.Finished(job, res)
		r.output.Write(formatter.ResultToText(res))
	case model.Cancelled():
		job := recorder.Started(req)
		recorder.Cancelled(job)
		r.writePlain("Generation of %s cancelled\n", req.ID)
	}

	return nil
}
