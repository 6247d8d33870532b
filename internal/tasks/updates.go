package tasks

import (
	"fmt"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// ProgressUpdate represents a progress event during a generation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	CreateStaging Phase = iota
	DownloadSources
	SourceFinished
	AssembleSources
	Completed
	RunBatch
)

func (p Phase) String() string {
	switch p {
	case CreateStaging:
		return "create_staging"
	case DownloadSources:
		return "download_sources"
	case SourceFinished:
		return "source_finished"
	case AssembleSources:
		return "assemble_sources"
	case Completed:
		return "completed"
	case RunBatch:
		return "run_batch"
	default:
		return ""
	}
}

// SourceStatus is the Data payload of a [SourceFinished] update.
type SourceStatus struct {
	Index int
	URL   string
	Err   error
}

// sendProgress sends a progress update through the channel without blocking.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func createStagingUpdate(id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreateStaging,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Preparing staging directory for %s...", id),
	}
}

func downloadSourcesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   DownloadSources,
		Step:    0,
		Total:   total,
		Message: fmt.Sprintf("Downloading %d media files...", total),
	}
}

func sourceFinishedUpdate(done, total int, src models.SourceDescriptor, err error) ProgressUpdate {
	msg := fmt.Sprintf("Downloaded media file %d", src.Index)
	if err != nil {
		msg = fmt.Sprintf("Media file %d failed, it will be skipped", src.Index)
	}
	return ProgressUpdate{
		Phase:   SourceFinished,
		Step:    done,
		Total:   total,
		Message: msg,
		Data:    SourceStatus{Index: src.Index, URL: src.URL, Err: err},
	}
}

func assembleSourcesUpdate(total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AssembleSources,
		Step:    0,
		Total:   total,
		Message: "Assembling unified media file...",
	}
}

func completedUpdate(result models.GenerationResult) ProgressUpdate {
	var msg string
	switch {
	case !result.Succeeded():
		msg = fmt.Sprintf("Generation failed: %v", result.Err)
	case result.Partial:
		msg = fmt.Sprintf("Generated %s (partial, %d skipped, %s)", result.Path, len(result.Skipped), shared.FormatBytes(result.Bytes))
	case result.Path == "":
		msg = "Nothing to generate"
	default:
		msg = fmt.Sprintf("Generated %s (%s)", result.Path, shared.FormatBytes(result.Bytes))
	}
	return ProgressUpdate{
		Phase:   Completed,
		Step:    1,
		Total:   1,
		Message: msg,
		Data:    result,
	}
}

func runBatchUpdate(step, total int, id string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RunBatch,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Generating %s (%d/%d)...", id, step, total),
	}
}
