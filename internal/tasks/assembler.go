package tasks

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/shared"
)

// ChunkSize is the copy unit used when appending a staged source to the unified file.
const ChunkSize = 64 * 1024

// AssemblyOutcome is what [Assemble] produced.
type AssemblyOutcome struct {
	Path    string // unified file, empty on failure
	Skipped []int  // indices that contributed no bytes
	Bytes   int64  // final length of the unified file
	Err     error  // ErrEmptyResult or ErrAssemblyWriteFailed
}

// Partial reports whether at least one source was skipped.
func (o AssemblyOutcome) Partial() bool {
	return len(o.Skipped) > 0
}

// Assemble concatenates the staged sources 0..n-1 of playlistDir into its unified file.
//
// Sources are appended in ascending index order. A missing staging file, or one whose bytes could
// not be fully written, is skipped and leaves no bytes behind. Staging files and the staging
// directory are removed whatever happens. An empty result is a failure and leaves no file.
func Assemble(fs afero.Fs, playlistDir, stagingName, unifiedName string, n int) AssemblyOutcome {
	stagingDir := filepath.Join(playlistDir, stagingName)
	dest := filepath.Join(playlistDir, unifiedName)

	defer fs.RemoveAll(stagingDir)

	out, err := openDestination(fs, dest)
	if err != nil {
		removeStaged(fs, stagingDir, n)
		return AssemblyOutcome{Err: fmt.Errorf("%w: %v", shared.ErrAssemblyWriteFailed, err)}
	}

	var (
		size    int64
		skipped []int
		buf     = make([]byte, ChunkSize)
	)

	for i := 0; i < n; i++ {
		src := stagingPath(stagingDir, i)

		written, err := appendSource(fs, out, src, buf)
		switch {
		case errors.Is(err, os.ErrNotExist):
			skipped = append(skipped, i)
		case err != nil:
			skipped = append(skipped, i)
			if rbErr := rollback(out, size); rbErr != nil {
				out.Close()
				fs.Remove(dest)
				removeStaged(fs, stagingDir, n)
				return AssemblyOutcome{
					Skipped: skipped,
					Err:     fmt.Errorf("%w: source %d: rollback failed: %v", shared.ErrAssemblyWriteFailed, i, rbErr),
				}
			}
		default:
			size += written
		}

		fs.Remove(src)
	}

	if err := out.Close(); err != nil {
		fs.Remove(dest)
		return AssemblyOutcome{Skipped: skipped, Err: fmt.Errorf("%w: %v", shared.ErrAssemblyWriteFailed, err)}
	}

	if size == 0 {
		fs.Remove(dest)
		return AssemblyOutcome{Skipped: skipped, Err: shared.ErrEmptyResult}
	}

	return AssemblyOutcome{Path: dest, Skipped: skipped, Bytes: size}
}

// openDestination replaces any previous unified file with a new, empty one opened for append.
func openDestination(fs afero.Fs, dest string) (afero.File, error) {
	if err := fs.Remove(dest); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove previous %s: %w", dest, err)
	}
	return fs.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0644)
}

// appendSource copies src into out chunk by chunk. It returns an error wrapping [os.ErrNotExist]
// when src was never staged.
func appendSource(fs afero.Fs, out afero.File, src string, buf []byte) (int64, error) {
	in, err := fs.Open(src)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%s: %w", src, os.ErrNotExist)
		}
		return 0, err
	}
	defer in.Close()

	var written int64
	for {
		nr, rerr := in.Read(buf)
		if nr > 0 {
			nw, werr := out.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nw != nr {
				return written, io.ErrShortWrite
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

// rollback drops everything written after size.
//
// Some filesystems only honour append at open time, so the offset is moved back explicitly.
func rollback(out afero.File, size int64) error {
	if err := out.Truncate(size); err != nil {
		return err
	}
	_, err := out.Seek(size, io.SeekStart)
	return err
}

func removeStaged(fs afero.Fs, stagingDir string, n int) {
	for i := 0; i < n; i++ {
		fs.Remove(stagingPath(stagingDir, i))
	}
}
