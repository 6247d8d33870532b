package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/plmerge/internal/shared"
)

func TestWorkerPool(t *testing.T) {
	t.Run("Runs submitted tasks", func(t *testing.T) {
		pool := NewWorkerPool(2)
		defer pool.Close()

		done := make(chan int, 5)
		for i := 0; i < 5; i++ {
			i := i
			if err := pool.Submit(func(context.Context) { done <- i }); err != nil {
				t.Fatalf("unexpected submit error: %v", err)
			}
		}

		seen := map[int]bool{}
		for len(seen) < 5 {
			select {
			case i := <-done:
				seen[i] = true
			case <-time.After(2 * time.Second):
				t.Fatalf("only %d of 5 tasks ran", len(seen))
			}
		}
	})

	t.Run("Single worker runs tasks in order", func(t *testing.T) {
		pool := NewWorkerPool(0)
		defer pool.Close()

		done := make(chan int, 3)
		for i := 0; i < 3; i++ {
			i := i
			pool.Submit(func(context.Context) { done <- i })
		}

		for want := 0; want < 3; want++ {
			select {
			case got := <-done:
				if got != want {
					t.Errorf("expected task %d, got %d", want, got)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("timed out waiting for task")
			}
		}
	})

	t.Run("Close abandons queued work", func(t *testing.T) {
		pool := NewWorkerPool(1)

		started := make(chan struct{})
		var queuedRan atomic.Bool

		pool.Submit(func(ctx context.Context) {
			close(started)
			<-ctx.Done()
		})
		pool.Submit(func(context.Context) { queuedRan.Store(true) })

		<-started
		pool.Close()

		if queuedRan.Load() {
			t.Error("queued task should not run after Close")
		}
	})

	t.Run("Submit after Close fails", func(t *testing.T) {
		pool := NewWorkerPool(1)
		pool.Close()
		pool.Close()

		err := pool.Submit(func(context.Context) {})
		if !errors.Is(err, shared.ErrDownloaderClosed) {
			t.Errorf("expected ErrDownloaderClosed, got %v", err)
		}
	})
}
