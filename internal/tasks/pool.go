package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Handle tracks one scheduled job. Callers that do not care about completion
// can drop it.
type Handle struct {
	name string
	done chan struct{}
	err  error
}

func (h *Handle) Name() string {
	return h.name
}

// Done is closed once the job has returned or was abandoned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Err is the reason the job did not run to completion: a recovered panic, or
// the pool context ending before a slot was free. Only valid after Done.
func (h *Handle) Err() error {
	<-h.done
	return h.err
}

// Pool runs background jobs on goroutines with bounded concurrency. Jobs get
// the pool's context, never the submitter's, so a finished HTTP request does
// not cancel the work it scheduled.
type Pool struct {
	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	logger zerolog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewPool(concurrency int, logger zerolog.Logger) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		ctx:    ctx,
		cancel: cancel,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		logger: logger.With().Str("component", "worker_pool").Logger(),
	}
}

// Go schedules fn and returns immediately. Jobs past the concurrency limit wait
// for a free slot on their own goroutine.
func (p *Pool) Go(name string, fn func(ctx context.Context)) (*Handle, error) {
	p.mu.RLock()
	if p.closed {
		p.mu.RUnlock()
		return nil, ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.RUnlock()

	h := &Handle{name: name, done: make(chan struct{})}
	go func() {
		defer p.wg.Done()
		defer close(h.done)

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			h.err = fmt.Errorf("job %s abandoned: %w", name, err)
			p.logger.Warn().Str("job", name).Msg("job abandoned before start")
			return
		}
		defer p.sem.Release(1)

		defer func() {
			if r := recover(); r != nil {
				h.err = fmt.Errorf("job %s panicked: %v", name, r)
				p.logger.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
			}
		}()
		fn(p.ctx)
	}()
	return h, nil
}

// Wait blocks until every job scheduled so far has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Shutdown stops accepting jobs and waits for running ones. When ctx ends
// first, the pool context is canceled so in-flight jobs unwind, and ctx's
// error is returned once they have.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.logger.Warn().Msg("shutdown deadline reached, canceling in-flight jobs")
		p.cancel()
		<-done
		return ctx.Err()
	}
}
