// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
)

// NewQueue creates an empty queue that fetches through fetcher.
func NewQueue(fetcher Fetcher) *Queue {
	return &Queue{
		Logger:  log.StandardLogger(),
		fetcher: fetcher,
		events:  make(chan func()),
		wake:    make(chan struct{}, 1),
	}
}

// Queue drives a set of Tasks to completion. Every task callback and
// every queue handler runs on the goroutine calling Run, one at a time,
// so they may touch shared state without locking.
//
// Completion is counted down rather than polled: every enqueued task
// registers as outstanding and the queue finishes when the count drops to
// zero. A task enqueued from inside another task's callback registers
// before the parent is counted out, which extends the wait.
type Queue struct {
	Logger log.FieldLogger

	fetcher Fetcher
	events  chan func()
	wake    chan struct{}

	mutex       sync.Mutex
	tasks       []*Task
	next        int
	outstanding int
	running     bool
	closed      bool

	onSuccess []func()
	onError   []func(error)
	onDone    []func()
}

// OnSuccess registers a handler fired when every task succeeded.
func (q *Queue) OnSuccess(fn func()) {
	q.onSuccess = append(q.onSuccess, fn)
}

// OnError registers a handler fired when at least one task failed. The
// error joins the errors of all failed tasks.
func (q *Queue) OnError(fn func(error)) {
	q.onError = append(q.onError, fn)
}

// OnDone registers a handler fired after OnSuccess or OnError.
func (q *Queue) OnDone(fn func()) {
	q.onDone = append(q.onDone, fn)
}

// Enqueue adds a pending task. It fails once the queue has completed.
func (q *Queue) Enqueue(t *Task) error {
	if t.State() != Pending || t.terminal != nil {
		return ErrTaskStarted
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	t.terminal = q.taskDone
	q.tasks = append(q.tasks, t)
	q.outstanding++

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Load creates a task and enqueues it.
func (q *Queue) Load(locator string, strategy Strategy, callback func(*Task)) (*Task, error) {
	t := NewTask(locator, strategy, callback)
	if err := q.Enqueue(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Tasks returns the enqueued tasks in insertion order.
func (q *Queue) Tasks() []*Task {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return append([]*Task(nil), q.tasks...)
}

// AllDone reports whether every enqueued task is terminal.
func (q *Queue) AllDone() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.outstanding == 0
}

// Closed reports whether the queue has fired its terminal handlers.
func (q *Queue) Closed() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return q.closed
}

// Run starts the tasks and processes their completions until all of them
// are done, then fires the terminal handlers and returns nil. A queue
// with no tasks completes successfully right away. If ctx is cancelled
// first, Run returns its error and no handler fires.
func (q *Queue) Run(ctx context.Context) error {
	q.mutex.Lock()
	if q.running || q.closed {
		q.mutex.Unlock()
		return ErrQueueRunning
	}
	q.running = true
	q.mutex.Unlock()

	deliver := func(fn func()) {
		select {
		case q.events <- fn:
		case <-ctx.Done():
		}
	}

	for {
		q.startPending(ctx, deliver)
		if q.AllDone() {
			q.finish()
			return nil
		}

		select {
		case <-ctx.Done():
			q.Logger.WithError(ctx.Err()).Warn("asset loading aborted")
			return ctx.Err()
		case fn := <-q.events:
			fn()
		case <-q.wake:
		}
	}
}

func (q *Queue) startPending(ctx context.Context, deliver func(func())) {
	for {
		q.mutex.Lock()
		if q.next >= len(q.tasks) {
			q.mutex.Unlock()
			return
		}
		t := q.tasks[q.next]
		q.next++
		q.mutex.Unlock()

		q.Logger.WithFields(log.Fields{
			"locator":  t.Locator(),
			"strategy": t.Strategy(),
		}).Debug("loading")
		t.Start(ctx, q.fetcher, deliver)
	}
}

func (q *Queue) taskDone(t *Task) {
	if t.Failed() {
		q.Logger.WithField("locator", t.Locator()).WithError(t.Err()).Warn("asset failed to load")
	}
	q.mutex.Lock()
	q.outstanding--
	q.mutex.Unlock()
}

func (q *Queue) finish() {
	q.mutex.Lock()
	q.closed = true
	tasks := q.tasks
	q.tasks = nil
	q.mutex.Unlock()

	var errs []error
	for _, t := range tasks {
		if t.Failed() {
			errs = append(errs, t.Err())
		}
	}

	if len(errs) == 0 {
		q.Logger.WithField("tasks", len(tasks)).Debug("all assets loaded")
		for _, fn := range q.onSuccess {
			fn()
		}
	} else {
		err := errors.Join(errs...)
		q.Logger.WithField("failed", len(errs)).Error("asset loading failed")
		for _, fn := range q.onError {
			fn(err)
		}
	}
	for _, fn := range q.onDone {
		fn()
	}
}
