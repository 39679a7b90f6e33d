package platform

import (
	"context"
	"os/exec"
	"strings"
)

// Command is an argv template. Placeholders of the form {name} inside any
// element are replaced from the vars passed to Expand.
type Command []string

// Empty reports whether the command has no executable.
func (c Command) Empty() bool {
	return len(c) == 0 || strings.TrimSpace(c[0]) == ""
}

// Name returns the executable.
func (c Command) Name() string {
	if c.Empty() {
		return ""
	}
	return c[0]
}

// Expand substitutes vars into the argument list (the executable is left as is).
func (c Command) Expand(vars map[string]string) []string {
	if c.Empty() {
		return nil
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	r := strings.NewReplacer(pairs...)
	args := make([]string, 0, len(c)-1)
	for _, a := range c[1:] {
		args = append(args, r.Replace(a))
	}
	return args
}

// Process is a started platform command.
type Process interface {
	Wait() error
	Kill() error
}

// Runner starts platform commands.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (Process, error)
	LookPath(name string) (string, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Start launches name without waiting for it to finish.
func (ExecRunner) Start(ctx context.Context, name string, args ...string) (Process, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if err := cmd.Start(); err != nil {
		return nil, classifyExecError(name, err)
	}
	return &execProcess{cmd: cmd}, nil
}

// LookPath resolves name in PATH.
func (ExecRunner) LookPath(name string) (string, error) {
	p, err := exec.LookPath(name)
	if err != nil {
		return "", classifyExecError(name, err)
	}
	return p, nil
}

type execProcess struct {
	cmd *exec.Cmd
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return p.cmd.Process.Kill()
}

// Run starts a command and waits for it.
func Run(ctx context.Context, r Runner, name string, args ...string) error {
	proc, err := r.Start(ctx, name, args...)
	if err != nil {
		return err
	}
	if err := proc.Wait(); err != nil {
		return &CommandError{Name: name, Err: err}
	}
	return nil
}
