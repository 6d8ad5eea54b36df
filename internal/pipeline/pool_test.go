// Copyright ©2020 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pipeline

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestPoolRunAllRunsEveryTask(t *testing.T) {
	p := NewPool(4)
	var n int32
	tasks := make([]Task, 50)
	for i := range tasks {
		tasks[i] = func() error {
			atomic.AddInt32(&n, 1)
			return nil
		}
	}
	errs := p.RunAll(tasks)
	if int(n) != len(tasks) {
		t.Fatalf("ran %d tasks, want %d", n, len(tasks))
	}
	for i, err := range errs {
		if err != nil {
			t.Errorf("task %d: %v", i, err)
		}
	}
}

func TestPoolRunAllPreservesOrderOfErrors(t *testing.T) {
	p := NewPool(2)
	boom := errors.New("boom")
	tasks := []Task{
		func() error { return nil },
		func() error { return boom },
		func() error { return nil },
	}
	errs := p.RunAll(tasks)
	if errs[0] != nil || errs[2] != nil {
		t.Fatalf("got %v, want nil at 0 and 2", errs)
	}
	if errs[1] != boom {
		t.Fatalf("got %v, want boom at 1", errs[1])
	}
}

func TestPoolZeroConcurrencyStillRuns(t *testing.T) {
	p := NewPool(0)
	ran := false
	p.RunAll([]Task{func() error { ran = true; return nil }})
	if !ran {
		t.Fatal("task did not run with concurrency 0")
	}
}

func TestStageErrorUnwrap(t *testing.T) {
	cause := errors.New("singular covariance")
	err := &StageError{Stage: "recruit", ItemID: "A1", Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("StageError does not unwrap to cause")
	}
}
