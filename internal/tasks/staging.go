package tasks

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/shared"
)

// stagingPath returns the per-source file a download is written to.
func stagingPath(stagingDir string, index int) string {
	return filepath.Join(stagingDir, strconv.Itoa(index))
}

// createStagingDir creates <playlistDir>/<name>, removing anything left there by an earlier run first.
func createStagingDir(fs afero.Fs, playlistDir, name string) (string, error) {
	dir := filepath.Join(playlistDir, name)

	if err := fs.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("%w: failed to clear %s: %v", shared.ErrDirectoryCreationFailed, dir, err)
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: %s: %v", shared.ErrDirectoryCreationFailed, dir, err)
	}

	return dir, nil
}
