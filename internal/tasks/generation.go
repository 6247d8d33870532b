package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/shared"
)

// Generation is the completion handle of one accepted request.
//
// Exactly one of two things happens: a single [models.GenerationResult] is sent on Done and the channel
// is closed, or the channel is closed without a value because the generation was cancelled.
type Generation struct {
	id        string
	epoch     uint64
	startedAt time.Time
	done      chan models.GenerationResult
	closed    chan struct{}
	once      sync.Once
	result    *models.GenerationResult
}

func newGeneration(id string, epoch uint64) *Generation {
	return &Generation{
		id:        id,
		epoch:     epoch,
		startedAt: time.Now(),
		done:      make(chan models.GenerationResult, 1),
		closed:    make(chan struct{}),
	}
}

func (g *Generation) ID() string { return g.id }
func (g *Generation) StartedAt() time.Time { return g.startedAt }

// Done yields the result, or closes empty on cancellation.
func (g *Generation) Done() <-chan models.GenerationResult {
	return g.done
}

// Wait blocks until the generation ends or ctx is done. It does not consume Done, so it can be called
// any number of times, before or after Done was read.
//
// A failed generation returns its result together with result.Err. A cancelled one returns [shared.ErrCancelled].
func (g *Generation) Wait(ctx context.Context) (models.GenerationResult, error) {
	select {
	case <-g.closed:
		if g.result == nil {
			return models.GenerationResult{ID: g.id}, shared.ErrCancelled
		}
		return *g.result, g.result.Err
	case <-ctx.Done():
		return models.GenerationResult{ID: g.id}, ctx.Err()
	}
}

// deliver stores res before closing, so Wait observes it through the closed channel.
func (g *Generation) deliver(res models.GenerationResult) {
	g.once.Do(func() {
		g.result = &res
		g.done <- res
		close(g.done)
		close(g.closed)
	})
}

func (g *Generation) suppress() {
	g.once.Do(func() {
		close(g.done)
		close(g.closed)
	})
}
