// package storage copies finished media files into a gocloud bucket.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/spf13/afero"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
)

// Publisher uploads unified media files to a bucket opened from a gocloud URL
// (file:///path or mem://).
type Publisher struct {
	bucket *blob.Bucket
	fs     afero.Fs
	logger *log.Logger
}

// NewPublisher opens the bucket at bucketURL. Files are read from fs.
func NewPublisher(ctx context.Context, bucketURL string, fs afero.Fs, logger *log.Logger) (*Publisher, error) {
	if bucketURL == "" {
		return nil, fmt.Errorf("%w: bucket url is required", shared.ErrInvalidConfig)
	}
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket: %w", err)
	}
	return NewPublisherWithBucket(bkt, fs, logger), nil
}

// NewPublisherWithBucket wraps an already opened bucket. The publisher takes ownership of it.
func NewPublisherWithBucket(bkt *blob.Bucket, fs afero.Fs, logger *log.Logger) *Publisher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Publisher{bucket: bkt, fs: fs, logger: logger}
}

// Key returns the object key a result is published under.
func Key(res models.GenerationResult) string {
	return path.Join(res.ID, filepath.Base(res.Path))
}

// Publish copies the unified file of a successful result into the bucket and returns its key.
func (p *Publisher) Publish(ctx context.Context, res models.GenerationResult) (string, error) {
	if !res.Succeeded() {
		return "", fmt.Errorf("%w: generation %s has no media file", shared.ErrPublishFailed, res.ID)
	}

	src, err := p.fs.Open(res.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrPublishFailed, err)
	}
	defer src.Close()

	key := Key(res)
	w, err := p.bucket.NewWriter(ctx, key, &blob.WriterOptions{
		ContentType: "application/octet-stream",
		Metadata: map[string]string{
			"request_id": res.ID,
			"partial":    fmt.Sprintf("%t", res.Partial),
		},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrPublishFailed, err)
	}

	n, err := io.Copy(w, src)
	if err != nil {
		w.Close()
		return "", fmt.Errorf("%w: %w", shared.ErrPublishFailed, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrPublishFailed, err)
	}

	p.logger.Info("published media file", "key", key, "bytes", n)
	return key, nil
}

// Close releases the bucket.
func (p *Publisher) Close() error {
	return p.bucket.Close()
}
