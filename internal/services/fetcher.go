package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/shared"
)

// Fetcher downloads one remote media file to a local path.
//
// On success the file exists at path. On failure nothing is left at path.
type Fetcher interface {
	DownloadToFile(ctx context.Context, url, path string) error
}

// Options configures the HTTP client used for media downloads.
type Options struct {
	// UserAgent is sent with every request. Empty leaves Go's default.
	UserAgent string

	// MaxIdleConnsPerHost sets the maximum idle connections per host.
	// Default: 16
	MaxIdleConnsPerHost int

	// Monitor aborts in-flight requests when the local network changes. Optional.
	Monitor NetworkMonitor

	// Logger receives retry and failure reasons. Default: log.Default()
	Logger *log.Logger
}

// DefaultOptions returns options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:           "plmerge/0.1",
		MaxIdleConnsPerHost: 16,
	}
}

// HTTPFetcher implements [Fetcher] with plain GET requests streamed to an [afero.Fs].
//
// Requests carry no cookies or credentials and have no client timeout: cancellation comes from the context.
type HTTPFetcher struct {
	fs     afero.Fs
	client *http.Client
	opts   Options
	logger *log.Logger
}

// NewHTTPFetcher creates a fetcher writing into fs.
func NewHTTPFetcher(fs afero.Fs, opts Options) *HTTPFetcher {
	if opts.MaxIdleConnsPerHost <= 0 {
		opts.MaxIdleConnsPerHost = DefaultOptions().MaxIdleConnsPerHost
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: opts.MaxIdleConnsPerHost,
		MaxIdleConns:        opts.MaxIdleConnsPerHost * 2,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  true,
	}

	return NewHTTPFetcherWithClient(fs, &http.Client{Transport: transport, Timeout: 0}, opts)
}

// NewHTTPFetcherWithClient creates a fetcher that sends requests through client.
func NewHTTPFetcherWithClient(fs afero.Fs, client *http.Client, opts Options) *HTTPFetcher {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &HTTPFetcher{fs: fs, client: client, opts: opts, logger: logger}
}

// DownloadToFile fetches url into path.
//
// A failed attempt is retried exactly once, and only when it failed because the network changed.
func (f *HTTPFetcher) DownloadToFile(ctx context.Context, url, path string) error {
	err := f.attempt(ctx, url, path)
	if err != nil && IsNetworkChange(err) && ctx.Err() == nil {
		f.logger.Warn("network changed during download, retrying once", "url", url, "error", err)
		err = f.attempt(ctx, url, path)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", shared.ErrSourceDownloadFailed, url, err)
	}
	return nil
}

func (f *HTTPFetcher) attempt(ctx context.Context, url, path string) error {
	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	if f.opts.Monitor != nil {
		unsubscribe := f.opts.Monitor.Subscribe(func() { cancel(shared.ErrNetworkChanged) })
		defer unsubscribe()
	}

	err := f.stream(reqCtx, url, path)
	if err != nil && ctx.Err() == nil {
		if cause := context.Cause(reqCtx); errors.Is(cause, shared.ErrNetworkChanged) {
			return fmt.Errorf("%w: %w", cause, err)
		}
	}
	return err
}

func (f *HTTPFetcher) stream(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if f.opts.UserAgent != "" {
		req.Header.Set("User-Agent", f.opts.UserAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	tmp := path + ".part"
	file, err := f.fs.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		f.fs.Remove(tmp)
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := file.Close(); err != nil {
		f.fs.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}

	if err := f.fs.Rename(tmp, path); err != nil {
		f.fs.Remove(tmp)
		return fmt.Errorf("failed to move %s into place: %w", tmp, err)
	}

	return nil
}

// networkChangeErrnos are the socket errors raised when the interface carrying an established request
// goes down or is reset. ENETUNREACH and EADDRNOTAVAIL are left out: a host with no route at all reports
// them too.
var networkChangeErrnos = []syscall.Errno{
	syscall.ENETDOWN,
	syscall.ENETRESET,
}

// IsNetworkChange reports whether err was caused by the local network changing.
//
// Timeouts, refused connections, unreachable networks and HTTP status failures are not network changes.
func IsNetworkChange(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, shared.ErrNetworkChanged) {
		return true
	}
	for _, errno := range networkChangeErrnos {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
