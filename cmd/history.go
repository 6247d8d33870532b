package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/plmerge/internal/formatter"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/repositories"
	"github.com/desertthunder/plmerge/internal/shared"
)

// HistoryList prints recorded generations, oldest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	criteria := map[string]any{"limit": int(cmd.Int("limit"))}
	if id := cmd.String("id"); id != "" {
		criteria["request_id"] = id
	}
	if status := cmd.String("status"); status != "" {
		criteria["status"] = models.JobStatus(status)
	}

	jobs, err := repositories.NewGenerationRepository(db).List(criteria)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.NewJobViews(jobs), true)
	}
	_, err = r.output.Write(formatter.JobsToText(jobs))
	return err
}

// HistoryShow prints the latest generation recorded for a playlist id.
func (r *Runner) HistoryShow(ctx context.Context, cmd *cli.Command) error {
	id := cmd.StringArg("id")
	if id == "" {
		return fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	job, err := repositories.NewGenerationRepository(db).Latest(id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(formatter.NewJobView(job), true)
	}
	_, err = r.output.Write(formatter.JobToText(job))
	return err
}
