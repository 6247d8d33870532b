package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/plmerge/internal/shared"
)

// WorkerPool runs blocking work (directory creation, assembly) off the orchestration goroutine.
//
// The queue is unbounded so Submit never blocks its caller. Close abandons work that has not started
// and waits for running work to return.
type WorkerPool struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	wake   chan struct{}

	mu     sync.Mutex
	queue  []func(context.Context)
	closed bool
}

// NewWorkerPool starts a pool with the given number of workers (minimum 1).
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		ctx:    ctx,
		cancel: cancel,
		wake:   make(chan struct{}, 1),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit queues task. The context passed to task is cancelled when the pool closes.
func (p *WorkerPool) Submit(task func(ctx context.Context)) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("%w: worker pool closed", shared.ErrDownloaderClosed)
	}
	p.queue = append(p.queue, task)
	p.mu.Unlock()

	p.signal()
	return nil
}

// Close drops queued tasks and waits for running ones. Safe to call more than once.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.queue = nil
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()

	for {
		task, ok := p.next()
		if !ok {
			select {
			case <-p.wake:
				continue
			case <-p.ctx.Done():
				return
			}
		}
		task(p.ctx)
	}
}

// next pops the oldest task and passes the wake signal on if more work remains.
func (p *WorkerPool) next() (func(context.Context), bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed || len(p.queue) == 0 {
		return nil, false
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	if len(p.queue) > 0 {
		p.signal()
	}
	return task, true
}

func (p *WorkerPool) signal() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}
