// Package executor runs functions on a single dedicated goroutine.
//
// It backs the blocking wrappers of the library: every call submitted to one
// Executor is serialized, so a blocking caller observes the same ordering as
// an asynchronous caller awaiting each operation in turn.
package executor

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is submitted after Close.
var ErrClosed = errors.New("executor closed")

// Executor owns one worker goroutine.
type Executor struct {
	mu     sync.Mutex
	closed bool
	jobs   chan func()
	done   chan struct{}
}

// New starts the worker goroutine.
func New() *Executor {
	e := &Executor{
		jobs: make(chan func()),
		done: make(chan struct{}),
	}
	go e.loop()
	return e
}

func (e *Executor) loop() {
	defer close(e.done)
	for job := range e.jobs {
		job()
	}
}

// submit hands job to the worker. Jobs must not submit to the same executor.
func (e *Executor) submit(job func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.jobs <- job
	return nil
}

// Close stops accepting work and waits for the running job to finish.
// It is safe to call more than once.
func (e *Executor) Close() {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.jobs)
	}
	e.mu.Unlock()
	<-e.done
}

// Call runs fn on the executor and blocks until it returns.
func Call[T any](e *Executor, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}

	ch := make(chan result, 1)
	err := e.submit(func() {
		v, err := fn(context.Background())
		ch <- result{v, err}
	})
	if err != nil {
		var zero T
		return zero, err
	}
	r := <-ch
	return r.value, r.err
}

// Do runs fn on the executor and blocks until it returns.
func Do(e *Executor, fn func(ctx context.Context) error) error {
	_, err := Call(e, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}
