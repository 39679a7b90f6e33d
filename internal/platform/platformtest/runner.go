// Package platformtest provides an in-memory platform.Runner for tests.
package platformtest

import (
	"context"
	"errors"
	"sync"

	"rereminder/internal/platform"
)

// Call records a single Start invocation.
type Call struct {
	Name string
	Args []string
}

// Runner records started commands. Processes finish when Finish is called
// or when killed.
type Runner struct {
	mu        sync.Mutex
	calls     []Call
	procs     []*Process
	StartErr  map[string]error
	Missing   map[string]bool
	AutoExit  bool
	ExitError error
}

// NewRunner returns a runner whose processes exit immediately.
func NewRunner() *Runner {
	return &Runner{
		StartErr: make(map[string]error),
		Missing:  make(map[string]bool),
		AutoExit: true,
	}
}

// Start implements platform.Runner.
func (r *Runner) Start(_ context.Context, name string, args ...string) (platform.Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, Call{Name: name, Args: append([]string(nil), args...)})
	if err := r.StartErr[name]; err != nil {
		return nil, err
	}
	p := &Process{done: make(chan struct{})}
	if r.AutoExit {
		p.finish(r.ExitError)
	}
	r.procs = append(r.procs, p)
	return p, nil
}

// LookPath implements platform.Runner.
func (r *Runner) LookPath(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Missing[name] {
		return "", &platform.CommandError{Name: name, Kind: platform.ErrResourceUnavailable, Err: errors.New("executable file not found in $PATH")}
	}
	return "/usr/bin/" + name, nil
}

// Calls returns a copy of recorded invocations.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// Processes returns the started processes in order.
func (r *Runner) Processes() []*Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Process(nil), r.procs...)
}

// Process is a fake started command.
type Process struct {
	once   sync.Once
	done   chan struct{}
	err    error
	killed bool
	mu     sync.Mutex
}

func (p *Process) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Finish completes the process with err.
func (p *Process) Finish(err error) {
	p.finish(err)
}

// Wait blocks until the process finishes.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Kill terminates the process.
func (p *Process) Kill() error {
	p.mu.Lock()
	p.killed = true
	p.mu.Unlock()
	p.finish(nil)
	return nil
}

// Killed reports whether Kill was called.
func (p *Process) Killed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.killed
}
