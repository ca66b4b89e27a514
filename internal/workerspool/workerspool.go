// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package workerspool runs independent tasks (e.g. slabs of a strided traversal) on a bounded
// number of goroutines.
package workerspool

import (
	"context"
	"runtime"
	"sync"

	"github.com/gomlx/exceptions"
)

// Pool limits the number of tasks running in parallel. It is safe for concurrent use.
type Pool struct {
	// maxParallelism is the limit of tasks running at the same time.
	// 0 disables parallelism (tasks run inline), and < 0 means unlimited.
	maxParallelism int
	mu             sync.Mutex
	cond           sync.Cond // Signaled whenever numRunning is decreased.
	numRunning     int
}

// New returns a new Pool with the default parallelism (runtime.NumCPU()).
func New() *Pool {
	w := &Pool{}
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
	return w
}

// IsEnabled returns whether parallelism is enabled (maxParallelism is != 0)
func (w *Pool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// IsUnlimited returns whether parallelism is unlimited (maxParallelism < 0)
func (w *Pool) IsUnlimited() bool {
	return w.maxParallelism < 0
}

// MaxParallelism returns the limit of tasks running in parallel.
// 0 means parallelism is disabled, and -1 means unlimited.
func (w *Pool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism sets the maxParallelism and returns the pool, so it can be chained with New.
//
// Only change it while no tasks are running.
func (w *Pool) SetMaxParallelism(maxParallelism int) *Pool {
	w.maxParallelism = maxParallelism
	return w
}

// lockedIsFull returns whether all available workers are in use.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedIsFull() bool {
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart waits until there is a worker available and starts task in a new goroutine.
//
// If parallelism is disabled (maxParallelism is 0), it runs the task inline and returns when it is finished.
func (w *Pool) WaitToStart(task func()) {
	if w.IsUnlimited() {
		go task()
		return
	} else if w.maxParallelism == 0 {
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// lockedRunTaskInGoroutine and keep tabs on w.numRunning.
//
// It must be called with Pool.mu acquired.
func (w *Pool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		defer func() {
			w.mu.Lock()
			w.numRunning--
			w.cond.Signal()
			w.mu.Unlock()
		}()
		task()
	}()
}

// Run calls task(0), ..., task(numTasks-1), at most MaxParallelism of them at a time, and waits for
// all started tasks to finish.
//
// Before starting each task it checks ctx: once ctx is done no new tasks are started, and Run
// returns ctx.Err() after the running ones finish.
//
// If a task panics, the remaining tasks are not started and, once the running tasks finish,
// Run re-panics with the first panic value in the calling goroutine.
func (w *Pool) Run(ctx context.Context, numTasks int, task func(taskIdx int)) error {
	var (
		wg         sync.WaitGroup
		panicMu    sync.Mutex
		firstPanic any
	)
	panicked := func() bool {
		panicMu.Lock()
		defer panicMu.Unlock()
		return firstPanic != nil
	}
	for taskIdx := range numTasks {
		if ctx.Err() != nil || panicked() {
			break
		}
		wg.Add(1)
		w.WaitToStart(func() {
			defer wg.Done()
			exception := exceptions.Try(func() { task(taskIdx) })
			if exception != nil {
				panicMu.Lock()
				if firstPanic == nil {
					firstPanic = exception
				}
				panicMu.Unlock()
			}
		})
	}
	wg.Wait()
	if firstPanic != nil {
		panic(firstPanic)
	}
	return ctx.Err()
}
