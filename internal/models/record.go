package models

import (
	"fmt"

	"github.com/desertthunder/plmerge/internal/shared"
)

// RecordKeys names the fields of a caller-owned playlist record.
//
// The id is always read from "id"; everything else is configurable so the generator is not tied to one schema.
type RecordKeys struct {
	Sources string // list of source entries
	URL     string // url field inside each source entry
	Path    string // output: unified media file path
	Partial string // output: partial-ready flag
}

// DefaultRecordKeys returns the field names used by the playlist service.
func DefaultRecordKeys() RecordKeys {
	return RecordKeys{
		Sources: "mediaFiles",
		URL:     "url",
		Path:    "mediaFilePath",
		Partial: "partialReady",
	}
}

// RequestFromRecord extracts a [GenerationRequest] from a record without keeping a reference to it.
func RequestFromRecord(record map[string]any, keys RecordKeys) (GenerationRequest, error) {
	id, _ := record["id"].(string)
	if err := ValidateID(id); err != nil {
		return GenerationRequest{}, err
	}

	raw, ok := record[keys.Sources]
	if !ok || raw == nil {
		return GenerationRequest{ID: id}, nil
	}

	entries, ok := raw.([]any)
	if !ok {
		return GenerationRequest{}, fmt.Errorf("%w: %q is not a list", shared.ErrInvalidRequest, keys.Sources)
	}

	urls := make([]string, len(entries))
	for i, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			return GenerationRequest{}, fmt.Errorf("%w: source %d is not an object", shared.ErrInvalidRequest, i)
		}
		u, ok := fields[keys.URL].(string)
		if !ok || u == "" {
			return GenerationRequest{}, fmt.Errorf("%w: source %d has empty media file url", shared.ErrInvalidRequest, i)
		}
		urls[i] = u
	}

	req := NewGenerationRequest(id, urls)
	if err := req.Validate(); err != nil {
		return GenerationRequest{}, err
	}
	return req, nil
}
