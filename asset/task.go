// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package asset

import (
	"context"
	"fmt"
	"image"
)

// State is the load state of a Task. It only ever moves forward.
type State int

// Task states
const (
	Pending State = iota
	Loading
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// NewTask creates a pending task for locator. The callback is invoked
// exactly once, when the task succeeds or fails, and may be nil.
func NewTask(locator string, strategy Strategy, callback func(*Task)) *Task {
	return &Task{
		locator:  locator,
		strategy: strategy,
		callback: callback,
	}
}

// Task is one outstanding fetch of a single named resource.
type Task struct {
	locator  string
	strategy Strategy
	state    State

	result interface{}
	err    error

	callback func(*Task)

	// terminal is set by the owning Queue and runs after callback.
	terminal func(*Task)
}

// Locator returns the resource locator.
func (t *Task) Locator() string {
	return t.locator
}

// Strategy returns the fetch strategy.
func (t *Task) Strategy() Strategy {
	return t.strategy
}

// State returns the current state.
func (t *Task) State() State {
	return t.state
}

// Done reports whether the task reached a terminal state.
func (t *Task) Done() bool {
	return t.state == Succeeded || t.state == Failed
}

// Loading reports whether the task was started and has not finished.
func (t *Task) Loading() bool {
	return t.state == Loading
}

// Failed reports whether the task finished with an error.
func (t *Task) Failed() bool {
	return t.state == Failed
}

// Err returns the error of a failed task.
func (t *Task) Err() error {
	return t.err
}

// Result returns the decoded payload of a successful task.
func (t *Task) Result() interface{} {
	return t.result
}

// Text returns the payload of a successful Text task.
func (t *Task) Text() string {
	s, _ := t.result.(string)
	return s
}

// Image returns the payload of a successful Image task.
func (t *Task) Image() image.Image {
	img, _ := t.result.(image.Image)
	return img
}

// Document returns the payload of a successful Document task.
func (t *Task) Document() *Doc {
	doc, _ := t.result.(*Doc)
	return doc
}

// Start moves a pending task to loading and fetches it in the background.
// The outcome is passed to deliver, which must run it on the goroutine
// that owns the task. A malformed locator fails the task immediately.
func (t *Task) Start(ctx context.Context, fetcher Fetcher, deliver func(func())) {
	if t.state != Pending {
		return
	}
	t.state = Loading

	if err := ValidateLocator(t.locator); err != nil {
		t.complete(nil, err)
		return
	}

	go func() {
		result, err := load(ctx, fetcher, t.locator, t.strategy)
		deliver(func() {
			t.complete(result, err)
		})
	}()
}

// complete records the outcome. Only the first call has any effect.
func (t *Task) complete(result interface{}, err error) {
	if t.Done() {
		return
	}
	if err != nil {
		t.state = Failed
		t.err = fmt.Errorf("%s: %w", t.locator, err)
	} else {
		t.state = Succeeded
		t.result = result
	}

	if t.callback != nil {
		t.callback(t)
	}
	if t.terminal != nil {
		t.terminal(t)
	}
}

func load(ctx context.Context, fetcher Fetcher, locator string, strategy Strategy) (interface{}, error) {
	rc, err := fetcher.Fetch(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decode(locator, strategy, rc)
}
