package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desertthunder/plmerge/internal/shared"
)

// SourceDescriptor is one media source of a playlist. Index fixes its position in the unified file.
type SourceDescriptor struct {
	URL   string `json:"url"`
	Index int    `json:"index"`
}

// GenerationRequest asks for the sources to be downloaded and concatenated into one file.
//
// A request is a value: the downloader keeps its own copy and never writes back into it.
type GenerationRequest struct {
	ID      string             `json:"id"`
	Sources []SourceDescriptor `json:"sources"`
}

// NewGenerationRequest builds a request whose source indices follow the order of urls.
func NewGenerationRequest(id string, urls []string) GenerationRequest {
	sources := make([]SourceDescriptor, len(urls))
	for i, u := range urls {
		sources[i] = SourceDescriptor{URL: u, Index: i}
	}
	return GenerationRequest{ID: id, Sources: sources}
}

// Validate checks the id and that indices are unique and dense in 0..N-1.
//
// An empty source list is valid.
func (r GenerationRequest) Validate() error {
	if err := ValidateID(r.ID); err != nil {
		return err
	}

	seen := make([]bool, len(r.Sources))
	for _, src := range r.Sources {
		if src.Index < 0 || src.Index >= len(r.Sources) {
			return fmt.Errorf("%w: source index %d out of range 0..%d", shared.ErrInvalidRequest, src.Index, len(r.Sources)-1)
		}
		if seen[src.Index] {
			return fmt.Errorf("%w: duplicate source index %d", shared.ErrInvalidRequest, src.Index)
		}
		seen[src.Index] = true

		if err := validateSourceURL(src.URL); err != nil {
			return fmt.Errorf("%w: source %d: %v", shared.ErrInvalidRequest, src.Index, err)
		}
	}

	return nil
}

// Ordered returns a copy of the sources sorted by index.
//
// Call only on a validated request.
func (r GenerationRequest) Ordered() []SourceDescriptor {
	ordered := make([]SourceDescriptor, len(r.Sources))
	for _, src := range r.Sources {
		ordered[src.Index] = src
	}
	return ordered
}

// ValidateID checks that id can be used as a single directory name.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: id is required", shared.ErrInvalidRequest)
	case id == "." || id == "..":
		return fmt.Errorf("%w: id %q is not a valid directory name", shared.ErrInvalidRequest, id)
	case strings.ContainsAny(id, `/\`+"\x00"):
		return fmt.Errorf("%w: id %q must not contain path separators", shared.ErrInvalidRequest, id)
	}
	return nil
}

func validateSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("empty media file url")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("malformed url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host")
	}
	return nil
}
