// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package workerpool runs detached background tasks under supervision.
// Concurrency is bounded by a weighted semaphore, every task runs with a
// panic guard, and failures are logged under the task name instead of being
// lost with the goroutine.
package workerpool

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/atomic"
	"golang.org/x/sync/semaphore"

	gerrors "github.com/tochemey/gofleet/errors"
	"github.com/tochemey/gofleet/log"
)

// DefaultCapacity is the number of tasks allowed to run concurrently when no
// capacity option is supplied.
const DefaultCapacity = 32

// WorkerPool supervises fire-and-forget tasks. Submissions beyond the
// capacity block until a running task completes; queueing is the caller's
// concern, the pool only bounds execution.
type WorkerPool struct {
	capacity int64
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	logger   log.Logger
	stopped  *atomic.Bool
}

// New creates an instance of WorkerPool.
func New(opts ...Option) *WorkerPool {
	pool := &WorkerPool{
		capacity: DefaultCapacity,
		logger:   log.DiscardLogger,
		stopped:  atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(pool)
	}

	pool.sem = semaphore.NewWeighted(pool.capacity)
	return pool
}

// Submit schedules the named task for background execution. It blocks while
// the pool is at capacity and returns ErrPoolStopped once the pool has been
// stopped. A task error or panic is logged, never re-raised: Submit is for
// work whose caller has already moved on.
func (p *WorkerPool) Submit(name string, task func() error) error {
	if p.stopped.Load() {
		return gerrors.ErrPoolStopped
	}

	if err := p.sem.Acquire(context.Background(), 1); err != nil {
		return err
	}

	if p.stopped.Load() {
		p.sem.Release(1)
		return gerrors.ErrPoolStopped
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		if err := p.guard(task); err != nil {
			p.logger.Errorf("task=(%s) failed: %v", name, err)
		}
	}()
	return nil
}

// Stop rejects further submissions and waits for in-flight tasks to finish,
// bounded by the given context.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.stopped.Store(true)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Capacity returns the maximum number of tasks the pool runs concurrently.
func (p *WorkerPool) Capacity() int {
	return int(p.capacity)
}

// guard runs the task and converts a panic into a PanicError carrying the
// panic site.
func (p *WorkerPool) guard(task func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			pc, fn, line, _ := runtime.Caller(2)
			switch v := r.(type) {
			case error:
				err = gerrors.NewPanicError(
					fmt.Errorf("%w at %s[%s:%d]", v, runtime.FuncForPC(pc).Name(), fn, line),
				)
			default:
				err = gerrors.NewPanicError(
					fmt.Errorf("%#v at %s[%s:%d]", r, runtime.FuncForPC(pc).Name(), fn, line),
				)
			}
		}
	}()
	return task()
}
