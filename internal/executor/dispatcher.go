package executor

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned by Submit after Close.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// Dispatcher is a fixed pool of worker goroutines shared by one batch.
// Callers must Close it on every exit path; Close waits for accepted jobs.
type Dispatcher struct {
	jobs   chan func()
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewDispatcher starts workers goroutines. Values below 1 start one.
func NewDispatcher(workers int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	d := &Dispatcher{jobs: make(chan func())}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			for job := range d.jobs {
				job()
			}
		}()
	}
	return d
}

// Submit blocks until a worker accepts job or ctx is done.
func (d *Dispatcher) Submit(ctx context.Context, job func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	// Check context first so a cancelled batch never starts another job
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting jobs and waits for running ones. Safe to call twice.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
