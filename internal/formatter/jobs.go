package formatter

import (
	"bytes"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// JobView is the serialisable form of a stored [models.GenerationJob].
type JobView struct {
	ID             string     `json:"id"`
	Sequence       int        `json:"sequence"`
	RequestID      string     `json:"request_id"`
	Status         string     `json:"status"`
	SourcesTotal   int        `json:"sources_total"`
	SourcesSkipped int        `json:"sources_skipped"`
	BytesWritten   int64      `json:"bytes_written"`
	MediaFilePath  string     `json:"media_file_path,omitempty"`
	Error          string     `json:"error,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

func NewJobView(job *models.GenerationJob) JobView {
	return JobView{
		ID:             job.ID(),
		Sequence:       job.Sequence(),
		RequestID:      job.RequestID(),
		Status:         string(job.Status()),
		SourcesTotal:   job.SourcesTotal(),
		SourcesSkipped: job.SourcesSkipped(),
		BytesWritten:   job.BytesWritten(),
		MediaFilePath:  job.MediaFilePath(),
		Error:          job.ErrorMessage(),
		StartedAt:      job.StartedAt(),
		CompletedAt:    job.CompletedAt(),
		CreatedAt:      job.CreatedAt(),
	}
}

// NewJobViews converts jobs, never returning nil so empty history encodes as [].
func NewJobViews(jobs []*models.GenerationJob) []JobView {
	views := make([]JobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, NewJobView(job))
	}
	return views
}

// JobsToText renders history as an aligned table
func JobsToText(jobs []*models.GenerationJob) []byte {
	var buf bytes.Buffer
	if len(jobs) == 0 {
		buf.WriteString("No generations recorded.\n")
		return buf.Bytes()
	}

	tw := tabwriter.NewWriter(&buf, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tREQUEST\tSTATUS\tSOURCES\tSIZE\tDURATION")
	for _, job := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d/%d\t%s\t%s\n",
			job.Sequence(),
			job.RequestID(),
			job.Status(),
			job.SourcesTotal()-job.SourcesSkipped(),
			job.SourcesTotal(),
			shared.FormatBytes(job.BytesWritten()),
			jobDuration(job),
		)
	}
	tw.Flush()
	return buf.Bytes()
}

// JobToText renders one stored job in detail
func JobToText(job *models.GenerationJob) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Job: %s (#%d)\n", job.ID(), job.Sequence()))
	buf.WriteString(fmt.Sprintf("Playlist: %s\n", job.RequestID()))
	buf.WriteString(fmt.Sprintf("Status: %s\n", job.Status()))
	buf.WriteString(fmt.Sprintf("Sources: %d (%d skipped)\n", job.SourcesTotal(), job.SourcesSkipped()))
	if job.MediaFilePath() != "" {
		buf.WriteString(fmt.Sprintf("Media file: %s\n", job.MediaFilePath()))
		buf.WriteString(fmt.Sprintf("Size: %s\n", shared.FormatBytes(job.BytesWritten())))
	}
	if job.ErrorMessage() != "" {
		buf.WriteString(fmt.Sprintf("Error: %s\n", job.ErrorMessage()))
	}
	buf.WriteString(fmt.Sprintf("Duration: %s\n", jobDuration(job)))

	return buf.Bytes()
}

func jobDuration(job *models.GenerationJob) string {
	started, completed := job.StartedAt(), job.CompletedAt()
	if started == nil || completed == nil {
		return "-"
	}
	return shared.FormatElapsed(completed.Sub(*started))
}
