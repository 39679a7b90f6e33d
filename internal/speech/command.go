package speech

import (
	"context"
	"sync"

	"rereminder/internal/platform"
)

// DefaultCommand speaks through espeak-ng.
var DefaultCommand = platform.Command{"espeak-ng", "-v", "{lang}", "{text}"}

// TermuxCommand speaks through Termux:API.
var TermuxCommand = platform.Command{"termux-tts-speak", "-l", "{lang}", "{text}"}

// CommandEngine speaks by running an external program per utterance.
type CommandEngine struct {
	runner  platform.Runner
	command platform.Command
	lang    string

	mu      sync.Mutex
	current platform.Process
	wg      sync.WaitGroup
}

func NewCommandEngine(runner platform.Runner, command platform.Command, lang string) *CommandEngine {
	if command.Empty() {
		command = DefaultCommand
	}
	if lang == "" {
		lang = "de"
	}
	return &CommandEngine{runner: runner, command: command, lang: lang}
}

// Init checks that the program is installed.
func (e *CommandEngine) Init(ctx context.Context) error {
	_, err := e.runner.LookPath(e.command.Name())
	return err
}

func (e *CommandEngine) Speak(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.flushLocked()
	args := e.command.Expand(map[string]string{"lang": e.lang, "text": text})
	proc, err := e.runner.Start(ctx, e.command.Name(), args...)
	if err != nil {
		return err
	}
	e.current = proc
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		_ = proc.Wait()
		e.mu.Lock()
		if e.current == proc {
			e.current = nil
		}
		e.mu.Unlock()
	}()
	return nil
}

// Wait blocks until every started utterance has finished.
func (e *CommandEngine) Wait() {
	e.wg.Wait()
}

func (e *CommandEngine) Shutdown() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked()
	return nil
}

func (e *CommandEngine) flushLocked() {
	if e.current != nil {
		_ = e.current.Kill()
		e.current = nil
	}
}
