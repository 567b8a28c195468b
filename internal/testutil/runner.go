// Package testutil provides fakes shared by package tests
package testutil

import (
	"context"
	"sync"

	"github.com/mkoepf/ghcrpush/internal/engine"
)

// RecordingRunner is an engine.Runner that records every command instead of
// running it. Exit codes and stderr can be scripted per subcommand
// (the first argument, e.g. "build" or "push").
type RecordingRunner struct {
	mu        sync.Mutex
	calls     []engine.Command
	ExitCodes map[string]int
	Stderr    map[string]string
	Err       map[string]error
}

// NewRecordingRunner returns a runner on which every command succeeds.
func NewRecordingRunner() *RecordingRunner {
	return &RecordingRunner{
		ExitCodes: make(map[string]int),
		Stderr:    make(map[string]string),
		Err:       make(map[string]error),
	}
}

// Run implements engine.Runner
func (r *RecordingRunner) Run(ctx context.Context, cmd engine.Command) (*engine.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls = append(r.calls, cmd)

	sub := ""
	if len(cmd.Args) > 0 {
		sub = cmd.Args[0]
	}
	if err := r.Err[sub]; err != nil {
		return nil, err
	}
	return &engine.Result{
		ExitCode: r.ExitCodes[sub],
		Stderr:   r.Stderr[sub],
	}, nil
}

// Calls returns a copy of the recorded commands in invocation order.
func (r *RecordingRunner) Calls() []engine.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]engine.Command(nil), r.calls...)
}

// Subcommands returns the first argument of every recorded command.
func (r *RecordingRunner) Subcommands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		if len(c.Args) > 0 {
			subs = append(subs, c.Args[0])
		}
	}
	return subs
}

// Find returns the first recorded command for subcommand sub.
func (r *RecordingRunner) Find(sub string) (engine.Command, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.calls {
		if len(c.Args) > 0 && c.Args[0] == sub {
			return c, true
		}
	}
	return engine.Command{}, false
}
