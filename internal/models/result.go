package models

import "time"

// GenerationResult is delivered once per generation that was not cancelled.
//
// On failure Path is empty, Partial is false and Err says why.
type GenerationResult struct {
	ID      string `json:"id"`
	Path    string `json:"path"`
	Partial bool   `json:"partial"`
	Skipped []int  `json:"skipped,omitempty"`
	Sources int    `json:"sources"`
	Bytes   int64  `json:"bytes"`
	Err     error  `json:"-"`
}

// Succeeded reports whether a unified file was produced.
func (r GenerationResult) Succeeded() bool {
	return r.Err == nil
}

// Error returns the failure message, or an empty string on success.
func (r GenerationResult) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// ApplyTo writes the unified path and partial flag into a caller-owned record.
func (r GenerationResult) ApplyTo(record map[string]any, keys RecordKeys) {
	if r.Succeeded() {
		record[keys.Path] = r.Path
		record[keys.Partial] = r.Partial
		return
	}
	record[keys.Path] = ""
	record[keys.Partial] = false
}

// Status classifies the result for reports: "succeeded", "partial" or "failed".
func (r GenerationResult) Status() JobStatus {
	switch {
	case !r.Succeeded():
		return JobFailed
	case r.Partial:
		return JobPartial
	default:
		return JobSucceeded
	}
}

// BatchSummary collects the results of generating several playlists one after another.
type BatchSummary struct {
	Results      []GenerationResult
	Total        int
	Succeeded    int
	Partial      int
	Failed       int
	Cancelled    int
	StartedAt    time.Time
	FinishedAt   time.Time
	ManifestPath string
}

// Add counts res into the summary.
func (s *BatchSummary) Add(res GenerationResult) {
	s.Results = append(s.Results, res)
	switch res.Status() {
	case JobFailed:
		s.Failed++
	case JobPartial:
		s.Partial++
	default:
		s.Succeeded++
	}
}
