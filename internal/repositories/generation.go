package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

const generationColumns = `id, sequence, request_id, status, sources_total, sources_skipped, bytes_written,
		media_file_path, error_message, started_at, completed_at, created_at, updated_at, deleted_at`

// GenerationRepository implements models.Repository[*models.GenerationJob] for generation history.
type GenerationRepository struct {
	db *sql.DB
}

// NewGenerationRepository creates a new GenerationRepository with the given database connection
func NewGenerationRepository(db *sql.DB) *GenerationRepository {
	return &GenerationRepository{db: db}
}

// Create inserts a new job into the database with generated ID and sequence
func (r *GenerationRepository) Create(job *models.GenerationJob) error {
	sequence, err := NextSequence(r.db, "generations")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	id := shared.GenerateID()
	job.SetID(id)
	job.SetSequence(sequence)

	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	query := `
		INSERT INTO generations (id, sequence, request_id, status, sources_total, sources_skipped, bytes_written,
			media_file_path, error_message, started_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Exec(query,
		id,
		sequence,
		job.RequestID(),
		string(job.Status()),
		job.SourcesTotal(),
		job.SourcesSkipped(),
		job.BytesWritten(),
		nullString(job.MediaFilePath()),
		nullString(job.ErrorMessage()),
		nullTime(job.StartedAt()),
		nullTime(job.CompletedAt()),
		job.CreatedAt(),
		job.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation: %w", err)
	}

	return nil
}

// Get retrieves a job by ID, excluding soft-deleted jobs
func (r *GenerationRepository) Get(id string) (*models.GenerationJob, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE id = ? AND deleted_at IS NULL`
	job, err := scanGeneration(r.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrGenerationNotFound, id)
	}
	return job, err
}

// Latest returns the most recent job for a playlist id
func (r *GenerationRepository) Latest(requestID string) (*models.GenerationJob, error) {
	query := `SELECT ` + generationColumns + ` FROM generations
		WHERE request_id = ? AND deleted_at IS NULL
		ORDER BY sequence DESC LIMIT 1`
	job, err := scanGeneration(r.db.QueryRow(query, requestID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no generations for %s", shared.ErrGenerationNotFound, requestID)
	}
	return job, err
}

// Update stores the job's progress and outcome
func (r *GenerationRepository) Update(job *models.GenerationJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	job.SetUpdatedAt(now)

	query := `
		UPDATE generations
		SET status = ?, sources_skipped = ?, bytes_written = ?, media_file_path = ?, error_message = ?,
			started_at = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(job.Status()),
		job.SourcesSkipped(),
		job.BytesWritten(),
		nullString(job.MediaFilePath()),
		nullString(job.ErrorMessage()),
		nullTime(job.StartedAt()),
		nullTime(job.CompletedAt()),
		now,
		job.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update generation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrGenerationNotFound, job.ID())
	}

	return nil
}

// Delete soft-deletes a job by ID
func (r *GenerationRepository) Delete(id string) error {
	query := `UPDATE generations SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete generation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrGenerationNotFound, id)
	}

	return nil
}

// List retrieves all jobs matching the given criteria, excluding soft-deleted jobs.
//
// Supported criteria: "request_id" (string), "status" (string or models.JobStatus), "limit" (int).
func (r *GenerationRepository) List(criteria map[string]any) ([]*models.GenerationJob, error) {
	query := `SELECT ` + generationColumns + ` FROM generations WHERE deleted_at IS NULL`
	args := []any{}

	if requestID, ok := criteria["request_id"].(string); ok && requestID != "" {
		query += " AND request_id = ?"
		args = append(args, requestID)
	}

	switch status := criteria["status"].(type) {
	case string:
		if status != "" {
			query += " AND status = ?"
			args = append(args, status)
		}
	case models.JobStatus:
		query += " AND status = ?"
		args = append(args, string(status))
	}

	query += " ORDER BY sequence ASC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanGeneration scans a row from either [sql.Row] or [sql.Rows] into a [models.GenerationJob].
//
// [sql.ErrNoRows] is returned unwrapped so callers can map it.
func scanGeneration(row scanner) (*models.GenerationJob, error) {
	var (
		id             string
		sequence       int
		requestID      string
		status         string
		sourcesTotal   int
		sourcesSkipped int
		bytesWritten   int64
		mediaFilePath  sql.NullString
		errorMessage   sql.NullString
		startedAt      sql.NullTime
		completedAt    sql.NullTime
		createdAt      time.Time
		updatedAt      time.Time
		deletedAt      sql.NullTime
	)

	err := row.Scan(&id, &sequence, &requestID, &status, &sourcesTotal, &sourcesSkipped, &bytesWritten,
		&mediaFilePath, &errorMessage, &startedAt, &completedAt, &createdAt, &updatedAt, &deletedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation: %w", err)
	}

	job := models.NewGenerationJob(sequence, requestID, sourcesTotal)
	job.SetID(id)
	job.SetStatus(models.JobStatus(status))
	job.SetSourcesSkipped(sourcesSkipped)
	job.SetBytesWritten(bytesWritten)
	job.SetMediaFilePath(mediaFilePath.String)
	job.SetErrorMessage(errorMessage.String)
	job.SetCreatedAt(createdAt)
	job.SetUpdatedAt(updatedAt)
	if startedAt.Valid {
		job.SetStartedAt(&startedAt.Time)
	}
	if completedAt.Valid {
		job.SetCompletedAt(&completedAt.Time)
	}
	if deletedAt.Valid {
		job.SetDeletedAt(&deletedAt.Time)
	}

	return job, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
