package models

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/desertthunder/plmerge/internal/shared"
)

// ManifestEntry is one playlist in a batch manifest.
type ManifestEntry struct {
	ID   string   `json:"id" yaml:"id"`
	URLs []string `json:"urls" yaml:"urls"`
}

// Manifest lists playlists to generate one after another.
type Manifest struct {
	Requests []ManifestEntry `json:"requests" yaml:"requests"`
}

// LoadManifest reads a JSON or YAML manifest, picking the decoder from the file extension.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &m)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("%w: unsupported manifest extension %q", shared.ErrInvalidInput, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse manifest: %v", shared.ErrInvalidInput, err)
	}

	return &m, nil
}

// GenerationRequests converts the manifest into validated generation requests.
//
// Entries without an id get one from newID.
func (m *Manifest) GenerationRequests(newID func() string) ([]GenerationRequest, error) {
	requests := make([]GenerationRequest, 0, len(m.Requests))
	for i, entry := range m.Requests {
		id := entry.ID
		if id == "" {
			id = newID()
		}
		req := NewGenerationRequest(id, entry.URLs)
		if err := req.Validate(); err != nil {
			return nil, fmt.Errorf("manifest entry %d: %w", i, err)
		}
		requests = append(requests, req)
	}
	return requests, nil
}
