package tasks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/services"
	"github.com/desertthunder/plmerge/internal/shared"
)

// Options configures a [MediaFileDownloader].
type Options struct {
	Fs              afero.Fs         // Filesystem for staging and output (default: OS filesystem)
	Fetcher         services.Fetcher // Downloads one source to a staging path
	StagingDir      string           // Per-playlist staging directory name (default: source_files)
	UnifiedFilename string           // Output file name (default: media_file)
	IOWorkers       int              // Blocking I/O workers (default: 1)
	Logger          *log.Logger      // Default: log.Default()
}

// DefaultOptions returns the options used when a field is left empty.
func DefaultOptions() Options {
	return Options{
		Fs:              afero.NewOsFs(),
		StagingDir:      "source_files",
		UnifiedFilename: "media_file",
		IOWorkers:       1,
	}
}

// MediaFileDownloader downloads the sources of one playlist at a time and assembles them into a
// single media file.
//
// All generation state is owned by one goroutine; fetches, directory creation and assembly report
// back to it as events tagged with the epoch they were started under. Events from an older epoch
// are dropped.
type MediaFileDownloader struct {
	fs          afero.Fs
	fetcher     services.Fetcher
	pool        *WorkerPool
	logger      *log.Logger
	stagingName string
	unifiedName string

	events    chan any
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	fetches   sync.WaitGroup
	busy      atomic.Bool

	// owned by run
	epoch uint64
	state generationState
}

// generationState is reset to its zero value whenever a generation is delivered or cancelled.
type generationState struct {
	active      bool
	cancelled   bool
	cleaned     bool
	req         models.GenerationRequest
	playlistDir string
	stagingDir  string
	remaining   int
	pending     int
	handles     map[int]context.CancelCauseFunc
	gen         *Generation
	progress    chan<- ProgressUpdate
	waiters     []chan struct{}
}

type startEvent struct {
	req         models.GenerationRequest
	playlistDir string
	progress    chan<- ProgressUpdate
	reply       chan startReply
}

type startReply struct {
	gen *Generation
	err error
}

type stagingEvent struct {
	epoch uint64
	dir   string
	err   error
}

type fetchEvent struct {
	epoch uint64
	index int
	err   error
}

type assembledEvent struct {
	epoch   uint64
	outcome AssemblyOutcome
}

type cleanupEvent struct {
	epoch uint64
}

type cancelEvent struct {
	reply chan struct{}
}

// NewMediaFileDownloader creates a downloader and starts its event loop. Call Close when done.
func NewMediaFileDownloader(opts Options) *MediaFileDownloader {
	defaults := DefaultOptions()
	if opts.Fs == nil {
		opts.Fs = defaults.Fs
	}
	if opts.StagingDir == "" {
		opts.StagingDir = defaults.StagingDir
	}
	if opts.UnifiedFilename == "" {
		opts.UnifiedFilename = defaults.UnifiedFilename
	}
	if opts.IOWorkers <= 0 {
		opts.IOWorkers = defaults.IOWorkers
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	d := &MediaFileDownloader{
		fs:          opts.Fs,
		fetcher:     opts.Fetcher,
		pool:        NewWorkerPool(opts.IOWorkers),
		logger:      opts.Logger,
		stagingName: opts.StagingDir,
		unifiedName: opts.UnifiedFilename,
		events:      make(chan any),
		quit:        make(chan struct{}),
		done:        make(chan struct{}),
	}
	go d.run()
	return d
}

// Generate starts downloading req's sources into <baseDir>/<req.ID>.
//
// Only one generation runs at a time; a second call while one is active fails with
// [shared.ErrGenerationInProgress]. ctx bounds only the hand-off: use [MediaFileDownloader.Cancel]
// to stop an accepted generation.
func (d *MediaFileDownloader) Generate(ctx context.Context, req models.GenerationRequest, baseDir string, progress chan<- ProgressUpdate) (*Generation, error) {
	if d.fetcher == nil {
		return nil, fmt.Errorf("%w: no fetcher configured", shared.ErrServiceUnavailable)
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: base directory %q: %v", shared.ErrInvalidRequest, baseDir, err)
	}

	ev := startEvent{
		req:         models.GenerationRequest{ID: req.ID, Sources: req.Ordered()},
		playlistDir: filepath.Join(base, req.ID),
		progress:    progress,
		reply:       make(chan startReply, 1),
	}

	select {
	case d.events <- ev:
	case <-d.done:
		return nil, shared.ErrDownloaderClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	reply := <-ev.reply
	return reply.gen, reply.err
}

// Cancel stops the active generation without notifying it and returns once its outstanding work has
// drained and the downloader is idle again. It is a no-op when nothing is running.
func (d *MediaFileDownloader) Cancel(ctx context.Context) error {
	reply := make(chan struct{})

	select {
	case d.events <- cancelEvent{reply: reply}:
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// InProgress reports whether a generation is active.
func (d *MediaFileDownloader) InProgress() bool {
	return d.busy.Load()
}

// Close stops the event loop. An active generation is abandoned without notification; queued
// background work is dropped.
func (d *MediaFileDownloader) Close() error {
	d.closeOnce.Do(func() {
		close(d.quit)
		<-d.done
		d.pool.Close()
		d.fetches.Wait()
	})
	return nil
}

func (d *MediaFileDownloader) run() {
	defer close(d.done)

	for {
		select {
		case <-d.quit:
			d.shutdown()
			return
		case ev := <-d.events:
			d.handle(ev)
		}
	}
}

func (d *MediaFileDownloader) handle(ev any) {
	switch ev := ev.(type) {
	case startEvent:
		d.onStart(ev)
	case stagingEvent:
		d.onStaging(ev)
	case fetchEvent:
		d.onFetch(ev)
	case assembledEvent:
		d.onAssembled(ev)
	case cleanupEvent:
		d.onCleanup(ev)
	case cancelEvent:
		d.onCancel(ev)
	}
}

// post hands an event from a worker back to the loop, dropping it if the loop has exited.
func (d *MediaFileDownloader) post(ev any) {
	select {
	case d.events <- ev:
	case <-d.done:
	}
}

// current reports whether an event tagged with epoch belongs to the active generation.
func (d *MediaFileDownloader) current(epoch uint64) bool {
	return d.state.active && epoch == d.epoch
}

// schedule runs work on the pool and posts the event it returns. The loop counts it as pending.
func (d *MediaFileDownloader) schedule(work func() any) error {
	d.state.pending++
	err := d.pool.Submit(func(context.Context) { d.post(work()) })
	if err != nil {
		d.state.pending--
	}
	return err
}

func (d *MediaFileDownloader) onStart(ev startEvent) {
	if d.state.active {
		ev.reply <- startReply{err: fmt.Errorf("%w: %s", shared.ErrGenerationInProgress, d.state.req.ID)}
		return
	}

	d.epoch++
	gen := newGeneration(ev.req.ID, d.epoch)
	d.state = generationState{
		active:      true,
		req:         ev.req,
		playlistDir: ev.playlistDir,
		handles:     make(map[int]context.CancelCauseFunc),
		gen:         gen,
		progress:    ev.progress,
	}
	d.busy.Store(true)
	ev.reply <- startReply{gen: gen}

	n := len(ev.req.Sources)
	d.logger.Info("generation started", "id", ev.req.ID, "sources", n, "epoch", d.epoch)

	if n == 0 {
		d.deliver(models.GenerationResult{ID: ev.req.ID})
		return
	}

	sendProgress(d.state.progress, createStagingUpdate(ev.req.ID))

	epoch, dir := d.epoch, ev.playlistDir
	err := d.schedule(func() any {
		staging, err := createStagingDir(d.fs, dir, d.stagingName)
		return stagingEvent{epoch: epoch, dir: staging, err: err}
	})
	if err != nil {
		d.deliver(models.GenerationResult{ID: ev.req.ID, Sources: n, Err: err})
	}
}

func (d *MediaFileDownloader) onStaging(ev stagingEvent) {
	if !d.current(ev.epoch) {
		return
	}
	d.state.pending--

	if d.state.cancelled {
		d.drain()
		return
	}

	req := d.state.req
	if ev.err != nil {
		d.logger.Error("failed to create staging directory", "id", req.ID, "error", ev.err)
		d.deliver(models.GenerationResult{ID: req.ID, Sources: len(req.Sources), Err: ev.err})
		return
	}

	d.state.stagingDir = ev.dir
	d.state.remaining = len(req.Sources)
	sendProgress(d.state.progress, downloadSourcesUpdate(len(req.Sources)))

	for _, src := range req.Sources {
		d.startFetch(src)
	}
}

func (d *MediaFileDownloader) startFetch(src models.SourceDescriptor) {
	ctx, cancel := context.WithCancelCause(context.Background())
	d.state.handles[src.Index] = cancel
	d.state.pending++
	d.fetches.Add(1)

	epoch := d.epoch
	path := stagingPath(d.state.stagingDir, src.Index)

	go func() {
		defer d.fetches.Done()

		err := d.fetcher.DownloadToFile(ctx, src.URL, path)
		if err != nil {
			d.fs.Remove(path)
		}
		d.post(fetchEvent{epoch: epoch, index: src.Index, err: err})
	}()
}

func (d *MediaFileDownloader) onFetch(ev fetchEvent) {
	if !d.current(ev.epoch) {
		return
	}
	d.state.pending--
	if cancel, ok := d.state.handles[ev.index]; ok {
		cancel(nil)
		delete(d.state.handles, ev.index)
	}

	if d.state.cancelled {
		d.drain()
		return
	}

	req := d.state.req
	src := req.Sources[ev.index]
	if ev.err != nil {
		d.logger.Warn("media file download failed", "id", req.ID, "index", src.Index, "url", src.URL, "error", ev.err)
	} else {
		d.logger.Debug("media file downloaded", "id", req.ID, "index", src.Index)
	}

	d.state.remaining--
	total := len(req.Sources)
	sendProgress(d.state.progress, sourceFinishedUpdate(total-d.state.remaining, total, src, ev.err))

	if d.state.remaining > 0 {
		return
	}

	sendProgress(d.state.progress, assembleSourcesUpdate(total))
	epoch, dir := d.epoch, d.state.playlistDir
	err := d.schedule(func() any {
		return assembledEvent{epoch: epoch, outcome: Assemble(d.fs, dir, d.stagingName, d.unifiedName, total)}
	})
	if err != nil {
		d.deliver(models.GenerationResult{ID: req.ID, Sources: total, Err: err})
	}
}

func (d *MediaFileDownloader) onAssembled(ev assembledEvent) {
	if !d.current(ev.epoch) {
		return
	}
	d.state.pending--

	if d.state.cancelled {
		d.drain()
		return
	}

	req := d.state.req
	out := ev.outcome
	result := models.GenerationResult{
		ID:      req.ID,
		Sources: len(req.Sources),
		Skipped: out.Skipped,
		Err:     out.Err,
	}
	if out.Err == nil {
		result.Path = out.Path
		result.Partial = out.Partial()
		result.Bytes = out.Bytes
	}
	d.deliver(result)
}

func (d *MediaFileDownloader) onCleanup(ev cleanupEvent) {
	if !d.current(ev.epoch) {
		return
	}
	d.state.pending--
	d.drain()
}

func (d *MediaFileDownloader) onCancel(ev cancelEvent) {
	if !d.state.active {
		close(ev.reply)
		return
	}

	d.state.waiters = append(d.state.waiters, ev.reply)
	if d.state.cancelled {
		return
	}

	d.state.cancelled = true
	for _, cancel := range d.state.handles {
		cancel(shared.ErrCancelled)
	}
	d.state.gen.suppress()
	d.logger.Info("cancelling generation", "id", d.state.req.ID, "epoch", d.epoch, "pending", d.state.pending)

	d.drain()
}

// drain finishes a cancellation once nothing is pending: first the staging directory is cleared on
// the pool, then the state is reset and waiting Cancel calls return.
func (d *MediaFileDownloader) drain() {
	if d.state.pending > 0 {
		return
	}

	if !d.state.cleaned && len(d.state.req.Sources) > 0 {
		d.state.cleaned = true
		epoch := d.epoch
		dir := filepath.Join(d.state.playlistDir, d.stagingName)
		err := d.schedule(func() any {
			d.fs.RemoveAll(dir)
			return cleanupEvent{epoch: epoch}
		})
		if err == nil {
			return
		}
	}

	waiters := d.state.waiters
	d.logger.Info("generation cancelled", "id", d.state.req.ID, "epoch", d.epoch)
	d.reset()
	d.epoch++
	for _, w := range waiters {
		close(w)
	}
}

// deliver resets the state, then completes the generation so a caller reacting to the result can
// start the next one straight away.
func (d *MediaFileDownloader) deliver(result models.GenerationResult) {
	gen := d.state.gen
	progress := d.state.progress

	switch {
	case !result.Succeeded():
		d.logger.Error("generation failed", "id", result.ID, "error", result.Err)
	case result.Partial:
		d.logger.Warn("generation finished with skipped sources", "id", result.ID, "path", result.Path, "skipped", result.Skipped)
	default:
		d.logger.Info("generation finished", "id", result.ID, "path", result.Path, "bytes", result.Bytes)
	}

	d.reset()
	sendProgress(progress, completedUpdate(result))
	gen.deliver(result)
}

func (d *MediaFileDownloader) reset() {
	d.state = generationState{}
	d.busy.Store(false)
}

// shutdown abandons the active generation when the loop stops.
func (d *MediaFileDownloader) shutdown() {
	if !d.state.active {
		return
	}

	for _, cancel := range d.state.handles {
		cancel(shared.ErrDownloaderClosed)
	}
	d.state.gen.suppress()
	d.logger.Info("generation abandoned on close", "id", d.state.req.ID, "epoch", d.epoch)

	waiters := d.state.waiters
	d.reset()
	d.epoch++
	for _, w := range waiters {
		close(w)
	}
}
