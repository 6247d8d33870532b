// package formatter renders generation results as plain text, Markdown, JSON and CSV
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// ResultView is the serialisable form of a [models.GenerationResult].
type ResultView struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Path    string `json:"path"`
	Partial bool   `json:"partial"`
	Skipped []int  `json:"skipped,omitempty"`
	Sources int    `json:"sources"`
	Bytes   int64  `json:"bytes"`
	Error   string `json:"error,omitempty"`
}

// NewResultView flattens a result, turning its error into a message.
func NewResultView(res models.GenerationResult) ResultView {
	return ResultView{
		ID:      res.ID,
		Status:  string(res.Status()),
		Path:    res.Path,
		Partial: res.Partial,
		Skipped: res.Skipped,
		Sources: res.Sources,
		Bytes:   res.Bytes,
		Error:   res.Error(),
	}
}

// BatchManifest is the JSON document written next to a batch run.
type BatchManifest struct {
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Total      int          `json:"total"`
	Succeeded  int          `json:"succeeded"`
	Partial    int          `json:"partial"`
	Failed     int          `json:"failed"`
	Cancelled  int          `json:"cancelled"`
	Results    []ResultView `json:"results"`
}

// ResultToJSON renders a single result as indented JSON
func ResultToJSON(res models.GenerationResult) ([]byte, error) {
	return shared.MarshalJSON(NewResultView(res), true)
}

// ResultToText renders a single result for the terminal
func ResultToText(res models.GenerationResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Playlist: %s\n", res.ID))
	buf.WriteString(fmt.Sprintf("Status: %s\n", res.Status()))

	if !res.Succeeded() {
		buf.WriteString(fmt.Sprintf("Error: %s\n", res.Error()))
		return buf.Bytes()
	}

	if res.Path == "" {
		buf.WriteString("Media file: none (no sources)\n")
		return buf.Bytes()
	}

	buf.WriteString(fmt.Sprintf("Media file: %s\n", res.Path))
	buf.WriteString(fmt.Sprintf("Size: %s\n", shared.FormatBytes(res.Bytes)))
	buf.WriteString(fmt.Sprintf("Sources: %d of %d\n", res.Sources-len(res.Skipped), res.Sources))
	if res.Partial {
		buf.WriteString(fmt.Sprintf("Skipped: %s\n", joinInts(res.Skipped)))
	}

	return buf.Bytes()
}

// ResultToMarkdown renders a single result as a Markdown section
func ResultToMarkdown(res models.GenerationResult) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("## %s\n\n", res.ID))
	buf.WriteString(fmt.Sprintf("**Status**: %s\n", res.Status()))

	if !res.Succeeded() {
		buf.WriteString(fmt.Sprintf("**Error**: %s\n", res.Error()))
		return buf.Bytes()
	}

	if res.Path != "" {
		buf.WriteString(fmt.Sprintf("**Media file**: `%s`\n", res.Path))
		buf.WriteString(fmt.Sprintf("**Size**: %s\n", shared.FormatBytes(res.Bytes)))
	}
	if res.Partial {
		buf.WriteString(fmt.Sprintf("**Skipped sources**: %s\n", joinInts(res.Skipped)))
	}

	return buf.Bytes()
}

// BatchToMarkdown renders a batch summary with a section per playlist
func BatchToMarkdown(summary *models.BatchSummary) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Batch generation\n\n")
	buf.WriteString(fmt.Sprintf("**Playlists**: %d\n", summary.Total))
	buf.WriteString(fmt.Sprintf("**Succeeded**: %d\n", summary.Succeeded))
	buf.WriteString(fmt.Sprintf("**Partial**: %d\n", summary.Partial))
	buf.WriteString(fmt.Sprintf("**Failed**: %d\n", summary.Failed))
	if summary.Cancelled > 0 {
		buf.WriteString(fmt.Sprintf("**Cancelled**: %d\n", summary.Cancelled))
	}
	if !summary.StartedAt.IsZero() && !summary.FinishedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Elapsed**: %s\n", shared.FormatElapsed(summary.FinishedAt.Sub(summary.StartedAt))))
	}

	for _, res := range summary.Results {
		buf.WriteString("\n")
		buf.Write(ResultToMarkdown(res))
	}

	return buf.Bytes()
}

// BatchToCSV converts a batch summary to CSV with columns: ID, Status, Path, Partial, Skipped, Bytes, Error
func BatchToCSV(summary *models.BatchSummary) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Status", "Path", "Partial", "Skipped", "Bytes", "Error"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, res := range summary.Results {
		record := []string{
			res.ID,
			string(res.Status()),
			res.Path,
			strconv.FormatBool(res.Partial),
			joinInts(res.Skipped),
			strconv.FormatInt(res.Bytes, 10),
			res.Error(),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// NewBatchManifest builds the manifest document for a summary
func NewBatchManifest(summary *models.BatchSummary) BatchManifest {
	m := BatchManifest{
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
		Total:      summary.Total,
		Succeeded:  summary.Succeeded,
		Partial:    summary.Partial,
		Failed:     summary.Failed,
		Cancelled:  summary.Cancelled,
		Results:    make([]ResultView, 0, len(summary.Results)),
	}
	for _, res := range summary.Results {
		m.Results = append(m.Results, NewResultView(res))
	}
	return m
}

// WriteBatchManifest writes the summary as indented JSON to path, creating parent directories.
func WriteBatchManifest(fs afero.Fs, summary *models.BatchSummary, path string) error {
	data, err := shared.MarshalJSON(NewBatchManifest(summary), true)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := afero.WriteFile(fs, path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}

	return nil
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
