// Package workers is the explicit task pool behind the force model's
// parallel regions: sort, fork-join recursion and parallel-for.
//
// A Pool carries no global state. Its size bounds how many extra goroutines
// Fork may have in flight; when every slot is busy the task runs inline on
// the caller, so nested forks never block on each other.
package workers

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrPanic marks a task that panicked instead of returning.
var ErrPanic = errors.New("workers: task panicked")

type Pool struct {
	size  int
	slots chan struct{}
}

// New returns a pool of n workers; n <= 0 means one per CPU.
func New(n int) *Pool {
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return &Pool{size: n, slots: make(chan struct{}, n)}
}

// Serial is a single-worker pool; every task runs on the caller.
func Serial() *Pool { return New(1) }

func (p *Pool) Size() int { return p.size }

func (p *Pool) tryAcquire() bool {
	if p.size <= 1 {
		return false
	}
	select {
	case p.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (p *Pool) release() { <-p.slots }

// Fork runs fns concurrently and waits for all of them. The first error
// cancels the context handed to the remaining tasks and is returned.
func (p *Pool) Fork(ctx context.Context, fns ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	var inlineErr error

	for i, fn := range fns {
		fn := fn
		// the last task always runs on the caller
		if i < len(fns)-1 && p.tryAcquire() {
			g.Go(func() error {
				defer p.release()
				return call(gctx, fn)
			})
			continue
		}
		if inlineErr != nil {
			continue
		}
		// a failed forked task or a canceled caller ends the fork
		if err := gctx.Err(); err != nil {
			inlineErr = err
			continue
		}
		if err := call(gctx, fn); err != nil {
			inlineErr = err
			cancel()
		}
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return inlineErr
}

// For splits [0, n) into at most Size() chunks of at least minChunk items
// and runs fn on each chunk concurrently.
func (p *Pool) For(ctx context.Context, n, minChunk int, fn func(lo, hi int)) error {
	if n <= 0 {
		return nil
	}
	if minChunk < 1 {
		minChunk = 1
	}

	workers := p.size
	if n/minChunk < workers {
		workers = n / minChunk
	}
	if workers <= 1 {
		return call(ctx, func(context.Context) error {
			fn(0, n)
			return nil
		})
	}

	chunkSize := (n + workers - 1) / workers
	g, gctx := errgroup.WithContext(ctx)

	for start := 0; start < n; start += chunkSize {
		end := start + chunkSize
		if end > n {
			end = n
		}
		start := start
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return call(gctx, func(context.Context) error {
				fn(start, end)
				return nil
			})
		})
	}

	return g.Wait()
}

func call(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx)
}

// ScratchPool recycles slices of T between build cycles.
type ScratchPool[T any] struct {
	pool sync.Pool
}

func NewScratchPool[T any]() *ScratchPool[T] {
	return &ScratchPool[T]{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]T, 0)
				return &s
			},
		},
	}
}

// Get returns a zeroed slice of length n.
func (p *ScratchPool[T]) Get(n int) []T {
	sp := p.pool.Get().(*[]T)
	s := *sp
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	clear(s)
	return s
}

func (p *ScratchPool[T]) Put(s []T) {
	if s == nil {
		return
	}
	s = s[:0]
	p.pool.Put(&s)
}

// Reduce folds [0, n) chunk by chunk on the pool. combine must be
// associative; the order in which chunk results arrive is not fixed.
func Reduce[T any](ctx context.Context, p *Pool, n, minChunk int, zero T, chunk func(lo, hi int) T, combine func(a, b T) T) (T, error) {
	var mu sync.Mutex
	acc := zero
	err := p.For(ctx, n, minChunk, func(lo, hi int) {
		local := chunk(lo, hi)
		mu.Lock()
		acc = combine(acc, local)
		mu.Unlock()
	})
	if err != nil {
		return zero, err
	}
	return acc, nil
}
