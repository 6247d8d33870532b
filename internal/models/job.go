package models

import (
	"fmt"
	"time"
)

// JobStatus is the lifecycle state of a recorded generation.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobPartial   JobStatus = "partial"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobSucceeded, JobPartial, JobFailed, JobCancelled:
		return true
	}
	return false
}

func (s JobStatus) valid() bool {
	switch s {
	case JobPending, JobRunning, JobSucceeded, JobPartial, JobFailed, JobCancelled:
		return true
	}
	return false
}

// GenerationJob is the persisted history entry for one generation attempt.
type GenerationJob struct {
	id             string
	sequence       int
	requestID      string
	status         JobStatus
	sourcesTotal   int
	sourcesSkipped int
	bytesWritten   int64
	mediaFilePath  string
	errorMessage   string
	startedAt      *time.Time
	completedAt    *time.Time
	createdAt      time.Time
	updatedAt      time.Time
	deletedAt      *time.Time
}

// NewGenerationJob creates a pending job for the request with the given id and source count.
func NewGenerationJob(sequence int, requestID string, sourcesTotal int) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		sequence:     sequence,
		requestID:    requestID,
		status:       JobPending,
		sourcesTotal: sourcesTotal,
		createdAt:    now,
		updatedAt:    now,
	}
}

func (j *GenerationJob) ID() string { return j.id }
func (j *GenerationJob) Sequence() int { return j.sequence }
func (j *GenerationJob) RequestID() string { return j.requestID }
func (j *GenerationJob) Status() JobStatus { return j.status }
func (j *GenerationJob) SourcesTotal() int { return j.sourcesTotal }
func (j *GenerationJob) SourcesSkipped() int { return j.sourcesSkipped }
func (j *GenerationJob) BytesWritten() int64 { return j.bytesWritten }
func (j *GenerationJob) MediaFilePath() string { return j.mediaFilePath }
func (j *GenerationJob) ErrorMessage() string { return j.errorMessage }
func (j *GenerationJob) StartedAt() *time.Time { return j.startedAt }
func (j *GenerationJob) CompletedAt() *time.Time { return j.completedAt }
func (j *GenerationJob) CreatedAt() time.Time { return j.createdAt }
func (j *GenerationJob) UpdatedAt() time.Time { return j.updatedAt }
func (j *GenerationJob) DeletedAt() *time.Time { return j.deletedAt }

func (j *GenerationJob) SetID(id string) { j.id = id }
func (j *GenerationJob) SetSequence(seq int) { j.sequence = seq }
func (j *GenerationJob) SetCreatedAt(t time.Time) { j.createdAt = t }
func (j *GenerationJob) SetUpdatedAt(t time.Time) { j.updatedAt = t }
func (j *GenerationJob) SetDeletedAt(t *time.Time) { j.deletedAt = t }
func (j *GenerationJob) SetStartedAt(t *time.Time) { j.startedAt = t }
func (j *GenerationJob) SetCompletedAt(t *time.Time) { j.completedAt = t }
func (j *GenerationJob) SetStatus(status JobStatus) { j.status = status }
func (j *GenerationJob) SetMediaFilePath(path string) { j.mediaFilePath = path }
func (j *GenerationJob) SetErrorMessage(msg string) { j.errorMessage = msg }
func (j *GenerationJob) SetSourcesSkipped(n int) { j.sourcesSkipped = n }
func (j *GenerationJob) SetBytesWritten(n int64) { j.bytesWritten = n }

// Start marks the job as running.
func (j *GenerationJob) Start(at time.Time) {
	j.status = JobRunning
	j.startedAt = &at
	j.updatedAt = at
}

// Finish records the outcome of a delivered result.
func (j *GenerationJob) Finish(result GenerationResult, at time.Time) {
	j.status = result.Status()
	j.errorMessage = result.Error()
	j.mediaFilePath = result.Path
	j.sourcesSkipped = len(result.Skipped)
	j.bytesWritten = result.Bytes
	j.completedAt = &at
	j.updatedAt = at
}

// Cancel records a generation that ended without a notification.
func (j *GenerationJob) Cancel(at time.Time) {
	j.status = JobCancelled
	j.completedAt = &at
	j.updatedAt = at
}

// Validate checks that the job can be stored.
func (j *GenerationJob) Validate() error {
	if j.id == "" {
		return fmt.Errorf("generation job id is required")
	}
	if j.requestID == "" {
		return fmt.Errorf("request id is required")
	}
	if !j.status.valid() {
		return fmt.Errorf("invalid job status %q", j.status)
	}
	if j.sourcesTotal < 0 || j.sourcesSkipped < 0 || j.sourcesSkipped > j.sourcesTotal {
		return fmt.Errorf("invalid source counts %d/%d", j.sourcesSkipped, j.sourcesTotal)
	}
	return nil
}
