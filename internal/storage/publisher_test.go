package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
	"github.com/spf13/afero"
	"gocloud.dev/blob"
)

func newMemPublisher(t *testing.T, fs afero.Fs) (*Publisher, *blob.Bucket) {
	t.Helper()
	bkt, err := blob.OpenBucket(context.Background(), "mem://")
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	p := NewPublisherWithBucket(bkt, fs, nil)
	t.Cleanup(func() { p.Close() })
	return p, bkt
}

func TestPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("uploads unified file under id key", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		if err := afero.WriteFile(fs, "/playlists/pl-1/media_file", []byte("abcdef"), 0644); err != nil {
			t.Fatal(err)
		}
		p, bkt := newMemPublisher(t, fs)

		res := models.GenerationResult{ID: "pl-1", Path: "/playlists/pl-1/media_file", Partial: true, Bytes: 6}
		key, err := p.Publish(ctx, res)
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
		if key != "pl-1/media_file" {
			t.Errorf("key = %q, want %q", key, "pl-1/media_file")
		}

		data, err := bkt.ReadAll(ctx, key)
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if string(data) != "abcdef" {
			t.Errorf("object = %q, want %q", data, "abcdef")
		}

		attrs, err := bkt.Attributes(ctx, key)
		if err != nil {
			t.Fatalf("Attributes: %v", err)
		}
		if attrs.Metadata["partial"] != "true" {
			t.Errorf("partial metadata = %q, want true", attrs.Metadata["partial"])
		}
	})

	t.Run("rejects failed result", func(t *testing.T) {
		p, _ := newMemPublisher(t, afero.NewMemMapFs())
		res := models.GenerationResult{ID: "pl-2", Err: shared.ErrEmptyResult}
		if _, err := p.Publish(ctx, res); !errors.Is(err, shared.ErrPublishFailed) {
			t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		p, bkt := newMemPublisher(t, afero.NewMemMapFs())
		res := models.GenerationResult{ID: "pl-3", Path: "/playlists/pl-3/media_file"}
		if _, err := p.Publish(ctx, res); !errors.Is(err, shared.ErrPublishFailed) {
			t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
		}
		if ok, _ := bkt.Exists(ctx, "pl-3/media_file"); ok {
			t.Error("object should not exist")
		}
	})
}

func TestNewPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("empty url", func(t *testing.T) {
		if _, err := NewPublisher(ctx, "", nil, nil); !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("NewPublisher() error = %v, want ErrInvalidConfig", err)
		}
	})

	t.Run("unknown scheme", func(t *testing.T) {
		if _, err := NewPublisher(ctx, "nope://bucket", nil, nil); err == nil {
			t.Error("NewPublisher() expected error")
		}
	})

	t.Run("file bucket", func(t *testing.T) {
		dir := t.TempDir()
		src := afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
		if err := src.MkdirAll("/pl", 0755); err != nil {
			t.Fatal(err)
		}
		if err := afero.WriteFile(src, "/pl/media_file", []byte("xyz"), 0644); err != nil {
			t.Fatal(err)
		}

		p, err := NewPublisher(ctx, "file://"+dir, src, nil)
		if err != nil {
			t.Fatalf("NewPublisher() error = %v", err)
		}
		defer p.Close()

		key, err := p.Publish(ctx, models.GenerationResult{ID: "pl", Path: "/pl/media_file"})
		if err != nil {
			t.Fatalf("Publish() error = %v", err)
		}

		if key != "pl/media_file" {
			t.Errorf("key = %q, want pl/media_file", key)
		}

		out, err := blob.OpenBucket(ctx, "file://"+dir)
		if err != nil {
			t.Fatalf("reopen bucket: %v", err)
		}
		defer out.Close()

		data, err := out.ReadAll(ctx, key)
		if err != nil {
			t.Fatalf("read published object: %v", err)
		}
		if string(data) != "xyz" {
			t.Errorf("published = %q, want %q", data, "xyz")
		}
		if _, err := afero.ReadFile(afero.NewBasePathFs(afero.NewOsFs(), dir), key); err != nil {
			t.Errorf("object should be a plain file under the bucket dir: %v", err)
		}
	})
}
