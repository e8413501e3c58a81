package asset

import (
	"errors"
	"testing"
)

func TestTaskCompletesOnce(t *testing.T) {
	var calls, terminal int
	task := NewTask("shaders/earth.vert", Text, func(*Task) { calls++ })
	task.terminal = func(*Task) { terminal++ }
	task.state = Loading

	task.complete("void main() {}", nil)
	task.complete(nil, errors.New("duplicate network event"))

	if calls != 1 || terminal != 1 {
		t.Fatalf("callback fired %d times, terminal %d times", calls, terminal)
	}
	if task.State() != Succeeded || task.Err() != nil {
		t.Fatalf("second completion changed the outcome: %s %v", task.State(), task.Err())
	}
	if task.Text() != "void main() {}" {
		t.Fatalf("unexpected payload %q", task.Text())
	}
}

func TestTaskStartOnlyFromPending(t *testing.T) {
	var fetched bool
	fetcher := FetcherFunc(nil)
	task := NewTask("a.txt", Text, nil)
	task.state = Succeeded
	task.Start(nil, fetcher, func(func()) { fetched = true })
	if fetched || task.State() != Succeeded {
		t.Fatal("a finished task must not restart")
	}
}
