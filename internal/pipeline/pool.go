// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pipeline implements the §5 coordinator: a bounded worker pool
// over independent, commutative per-item tasks, joined at each stage
// boundary before the next stage runs, plus the end-to-end wiring of every
// component package into the five output tables of §6.
package pipeline

import "sync"

// Task is one independent unit of stage work: a per-contig subcontig
// build, a per-anchor recruiter fit, or similar. A Task must not mutate
// any other task's input (spec.md §5).
type Task func() error

// Pool bounds the number of concurrently running tasks using a
// semaphore channel of execution slots, in the style of the biogo
// ecosystem's igor clusterer thread manager: a slot is acquired before a
// task starts and released when it completes, so RunAll never runs more
// than its concurrency limit at once.
type Pool struct {
	slots chan struct{}
}

// NewPool returns a Pool that runs at most concurrency tasks at a time.
// concurrency < 1 is treated as 1 (no parallelism, not an error).
func NewPool(concurrency int) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Pool{slots: make(chan struct{}, concurrency)}
}

// RunAll runs every task, blocking until all have finished — the §5
// "coordinator joins all workers before advancing" stage boundary. The
// returned slice has one entry per task, in task order, nil for a task
// that succeeded.
func (p *Pool) RunAll(tasks []Task) []error {
	errs := make([]error, len(tasks))
	var wg sync.WaitGroup
	wg.Add(len(tasks))
	for i, task := range tasks {
		i, task := i, task
		p.slots <- struct{}{}
		go func() {
			defer func() {
				<-p.slots
				wg.Done()
			}()
			errs[i] = task()
		}()
	}
	wg.Wait()
	return errs
}

// StageError identifies the stage and item that a fatal pipeline error
// occurred in, per spec.md §7's "structured error value identifying the
// stage, item id, and cause".
type StageError struct {
	Stage  string
	ItemID string
	Cause  error
}

func (e *StageError) Error() string {
	if e.ItemID == "" {
		return "pipeline: " + e.Stage + ": " + e.Cause.Error()
	}
	return "pipeline: " + e.Stage + " (" + e.ItemID + "): " + e.Cause.Error()
}

func (e *StageError) Unwrap() error { return e.Cause }
