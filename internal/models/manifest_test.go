package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/desertthunder/plmerge/internal/shared"
)

func writeManifest(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	t.Run("YAML", func(t *testing.T) {
		path := writeManifest(t, "batch.yaml", `requests:
  - id: morning
    urls:
      - http://cdn.example.com/1.mp3
      - http://cdn.example.com/2.mp3
  - urls:
      - http://cdn.example.com/3.mp3
`)

		m, err := LoadManifest(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(m.Requests) != 2 {
			t.Fatalf("expected 2 entries, got %d", len(m.Requests))
		}

		reqs, err := m.GenerationRequests(func() string { return "generated" })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if reqs[0].ID != "morning" || len(reqs[0].Sources) != 2 {
			t.Errorf("unexpected first request: %+v", reqs[0])
		}
		if reqs[1].ID != "generated" {
			t.Errorf("expected generated id, got %s", reqs[1].ID)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		path := writeManifest(t, "batch.json", `{"requests":[{"id":"a","urls":["https://x/1"]}]}`)

		m, err := LoadManifest(path)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if m.Requests[0].ID != "a" || m.Requests[0].URLs[0] != "https://x/1" {
			t.Errorf("unexpected manifest: %+v", m)
		}
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := writeManifest(t, "batch.txt", "requests: []")
		if _, err := LoadManifest(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		path := writeManifest(t, "batch.json", `{"requests":`)
		if _, err := LoadManifest(path); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("invalid entry", func(t *testing.T) {
		m := &Manifest{Requests: []ManifestEntry{{ID: "a", URLs: []string{"not a url"}}}}
		if _, err := m.GenerationRequests(func() string { return "x" }); !errors.Is(err, shared.ErrInvalidRequest) {
			t.Errorf("expected ErrInvalidRequest, got %v", err)
		}
	})
}
