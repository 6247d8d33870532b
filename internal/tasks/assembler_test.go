package tasks

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/shared"
	tu "github.com/desertthunder/plmerge/internal/testing"
)

const testPlaylistDir = "/playlists/pl"

func stage(t *testing.T, fs afero.Fs, sources map[int]string) {
	t.Helper()
	dir := filepath.Join(testPlaylistDir, "source_files")
	if err := fs.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create staging dir: %v", err)
	}
	for i, body := range sources {
		if err := afero.WriteFile(fs, stagingPath(dir, i), []byte(body), 0644); err != nil {
			t.Fatalf("failed to stage %d: %v", i, err)
		}
	}
}

func TestAssemble(t *testing.T) {
	dest := filepath.Join(testPlaylistDir, "media_file")
	stagingDir := filepath.Join(testPlaylistDir, "source_files")

	t.Run("Concatenates in index order", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		stage(t, fs, map[int]string{0: "AAA", 1: "BBB", 2: "CCC"})

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 3)

		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if out.Path != dest || out.Bytes != 9 || out.Partial() {
			t.Errorf("unexpected outcome: %+v", out)
		}
		if got := tu.MustReadFile(t, fs, dest); got != "AAABBBCCC" {
			t.Errorf("expected AAABBBCCC, got %q", got)
		}
		tu.AssertNotExists(t, fs, stagingDir)
	})

	t.Run("Skips missing sources", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		stage(t, fs, map[int]string{0: "AAA", 2: "CCC"})

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 3)

		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if !out.Partial() || len(out.Skipped) != 1 || out.Skipped[0] != 1 {
			t.Errorf("expected index 1 skipped, got %v", out.Skipped)
		}
		if got := tu.MustReadFile(t, fs, dest); got != "AAACCC" {
			t.Errorf("expected AAACCC, got %q", got)
		}
	})

	t.Run("Empty result is a failure", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		stage(t, fs, map[int]string{1: ""})

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 3)

		if !errors.Is(out.Err, shared.ErrEmptyResult) {
			t.Errorf("expected ErrEmptyResult, got %v", out.Err)
		}
		if out.Path != "" {
			t.Errorf("expected empty path, got %q", out.Path)
		}
		tu.AssertNotExists(t, fs, dest)
		tu.AssertNotExists(t, fs, stagingDir)
	})

	t.Run("Replaces previous unified file", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		stage(t, fs, map[int]string{0: "NEW"})
		if err := afero.WriteFile(fs, dest, []byte("OLD CONTENT"), 0644); err != nil {
			t.Fatal(err)
		}

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 1)

		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if got := tu.MustReadFile(t, fs, dest); got != "NEW" {
			t.Errorf("expected NEW, got %q", got)
		}
	})

	t.Run("Rolls back a source whose second chunk fails", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		big := strings.Repeat("B", ChunkSize+ChunkSize/2)
		stage(t, mem, map[int]string{0: "AAA", 1: big, 2: "CCC"})
		fs := &tu.FaultyFs{Fs: mem, Target: dest, FailOn: 3}

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 3)

		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		if len(out.Skipped) != 1 || out.Skipped[0] != 1 {
			t.Errorf("expected index 1 skipped, got %v", out.Skipped)
		}
		if got := tu.MustReadFile(t, mem, dest); got != "AAACCC" {
			t.Errorf("expected AAACCC, got %d bytes", len(got))
		}
		if out.Bytes != 6 {
			t.Errorf("expected 6 bytes, got %d", out.Bytes)
		}
		tu.AssertNotExists(t, mem, stagingDir)
	})

	t.Run("Rollback restores length before the failing source", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		stage(t, mem, map[int]string{0: "AAA", 1: strings.Repeat("B", 2*ChunkSize)})
		fs := &tu.FaultyFs{Fs: mem, Target: dest, FailOn: 3}

		out := Assemble(fs, testPlaylistDir, "source_files", "media_file", 2)

		if out.Err != nil {
			t.Fatalf("unexpected error: %v", out.Err)
		}
		info, err := mem.Stat(dest)
		if err != nil {
			t.Fatalf("failed to stat destination: %v", err)
		}
		if info.Size() != 3 {
			t.Errorf("expected destination length 3, got %d", info.Size())
		}
	})

	t.Run("Unwritable destination fails", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		stage(t, mem, map[int]string{0: "AAA"})
		if err := afero.WriteFile(mem, dest, []byte("OLD"), 0644); err != nil {
			t.Fatal(err)
		}

		out := Assemble(afero.NewReadOnlyFs(mem), testPlaylistDir, "source_files", "media_file", 1)

		if !errors.Is(out.Err, shared.ErrAssemblyWriteFailed) {
			t.Errorf("expected ErrAssemblyWriteFailed, got %v", out.Err)
		}
		if out.Path != "" {
			t.Errorf("expected empty path, got %q", out.Path)
		}
	})
}
