// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

// MockFetcher is a test double for [services.Fetcher] that writes canned bodies into an [afero.Fs].
type MockFetcher struct {
	fs       afero.Fs
	mu       sync.Mutex
	bodies   map[string]string
	failures map[string]error
	gates    map[string]chan struct{}
	calls    []string
	started  chan string
}

func NewMockFetcher(fs afero.Fs) *MockFetcher {
	return &MockFetcher{
		fs:       fs,
		bodies:   make(map[string]string),
		failures: make(map[string]error),
		gates:    make(map[string]chan struct{}),
		started:  make(chan string, 64),
	}
}

// Serve makes url succeed with body.
func (m *MockFetcher) Serve(url, body string) *MockFetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bodies[url] = body
	return m
}

// Fail makes url fail with err.
func (m *MockFetcher) Fail(url string, err error) *MockFetcher {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[url] = err
	return m
}

// Block holds fetches of url until the returned channel is closed or the fetch context ends.
func (m *MockFetcher) Block(url string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	gate := make(chan struct{})
	m.gates[url] = gate
	return gate
}

// Started receives each url as its fetch begins.
func (m *MockFetcher) Started() <-chan string {
	return m.started
}

// Calls returns the urls fetched so far, in call order.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockFetcher) DownloadToFile(ctx context.Context, url, path string) error {
	m.mu.Lock()
	m.calls = append(m.calls, url)
	gate := m.gates[url]
	body, ok := m.bodies[url]
	failure := m.failures[url]
	m.mu.Unlock()

	select {
	case m.started <- url:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	if failure != nil {
		return failure
	}
	if !ok {
		return fmt.Errorf("no mock body for %s", url)
	}
	return afero.WriteFile(m.fs, path, []byte(body), 0644)
}

// FaultyFs wraps an [afero.Fs] and makes the FailOn-th write to Target a short write.
type FaultyFs struct {
	afero.Fs
	Target string
	FailOn int

	mu     sync.Mutex
	writes int
}

func (f *FaultyFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	file, err := f.Fs.OpenFile(name, flag, perm)
	if err != nil || name != f.Target {
		return file, err
	}
	return &faultyFile{File: file, fs: f}, nil
}

func (f *FaultyFs) Create(name string) (afero.File, error) {
	return f.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

type faultyFile struct {
	afero.File
	fs *FaultyFs
}

func (f *faultyFile) Write(p []byte) (int, error) {
	f.fs.mu.Lock()
	f.fs.writes++
	fail := f.fs.writes == f.fs.FailOn
	f.fs.mu.Unlock()

	if !fail {
		return f.File.Write(p)
	}
	n, err := f.File.Write(p[:len(p)/2])
	if err != nil {
		return n, err
	}
	return n, io.ErrShortWrite
}

// GatedFs wraps an [afero.Fs] and holds every OpenFile of Target until Release is called.
// Entered receives Target each time an open starts waiting.
type GatedFs struct {
	afero.Fs
	Target  string
	Entered chan string

	gate    chan struct{}
	release sync.Once
}

func NewGatedFs(fs afero.Fs, target string) *GatedFs {
	return &GatedFs{Fs: fs, Target: target, Entered: make(chan string, 8), gate: make(chan struct{})}
}

// Release lets held and future opens of Target proceed.
func (g *GatedFs) Release() {
	g.release.Do(func() { close(g.gate) })
}

func (g *GatedFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if name == g.Target {
		g.Entered <- name
		<-g.gate
	}
	return g.Fs.OpenFile(name, flag, perm)
}

func (g *GatedFs) Create(name string) (afero.File, error) {
	return g.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// SequenceRoundTripper returns the queued errors in order, then delegates to Next
type SequenceRoundTripper struct {
	mu    sync.Mutex
	errs  []error
	Next  http.RoundTripper
	Calls int
}

func NewSequenceRoundTripper(next http.RoundTripper, errs ...error) *SequenceRoundTripper {
	return &SequenceRoundTripper{errs: errs, Next: next}
}

func (s *SequenceRoundTripper) RoundTrip(r *http.Request) (*http.Response, error) {
	s.mu.Lock()
	s.Calls++
	var err error
	if len(s.errs) > 0 {
		err, s.errs = s.errs[0], s.errs[1:]
	}
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return s.Next.RoundTrip(r)
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func AssertFileExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if ok, _ := afero.Exists(fs, path); !ok {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNotExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	if ok, _ := afero.Exists(fs, path); ok {
		t.Errorf("Path should not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, fs afero.Fs, path string) {
	t.Helper()
	info, err := fs.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if err != nil {
		t.Errorf("Failed to stat %s: %v", path, err)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, fs afero.Fs, path string) string {
	t.Helper()
	content, err := afero.ReadFile(fs, path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
