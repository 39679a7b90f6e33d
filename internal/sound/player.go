// Package sound plays notification tones through an external player.
package sound

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

// DefaultCommand plays a file through PulseAudio.
var DefaultCommand = platform.Command{"paplay", "{file}"}

// TermuxCommand plays a file through Termux:API.
var TermuxCommand = platform.Command{"termux-media-player", "play", "{file}"}

// DefaultTone is used for an empty ref and as the fallback.
const DefaultTone = "/usr/share/sounds/freedesktop/stereo/complete.oga"

type playback struct {
	proc    platform.Process
	ref     string
	stopped bool
}

// Player holds at most one active playback.
type Player struct {
	runner      platform.Runner
	command     platform.Command
	defaultTone string
	logger      reminders.Logger

	mu      sync.Mutex
	current *playback
	wg      sync.WaitGroup
}

// NewPlayer creates a tone player.
func NewPlayer(runner platform.Runner, command platform.Command, defaultTone string, logger reminders.Logger) *Player {
	if command.Empty() {
		command = DefaultCommand
	}
	if defaultTone == "" {
		defaultTone = DefaultTone
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Player{
		runner:      runner,
		command:     command,
		defaultTone: defaultTone,
		logger:      logger,
	}
}

// Play stops any current playback and starts ref without waiting for it to
// finish. An empty ref plays the default tone. If a custom tone cannot be
// played the default tone is tried once.
func (p *Player) Play(ctx context.Context, ref string) error {
	ref = p.resolve(ref)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	return p.startLocked(ctx, ref, ref != p.defaultTone)
}

// Stop ends the current playback, if any.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// IsPlaying reports whether a playback is active.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Wait blocks until all playbacks started so far have finished.
func (p *Player) Wait() {
	p.wg.Wait()
}

func (p *Player) resolve(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return p.defaultTone
	}
	return strings.TrimPrefix(ref, "file://")
}

func (p *Player) startLocked(ctx context.Context, ref string, fallback bool) error {
	args := p.command.Expand(map[string]string{"file": ref})
	proc, err := p.runner.Start(ctx, p.command.Name(), args...)
	if err != nil {
		if fallback {
			p.logger.Warn("tone failed to start, falling back to default",
				"tone", ref,
				"error", err)
			return p.startLocked(ctx, p.defaultTone, false)
		}
		return fmt.Errorf("play %s: %w", ref, err)
	}

	pb := &playback{proc: proc, ref: ref}
	p.current = pb
	p.wg.Add(1)
	go p.wait(ctx, pb, fallback)
	return nil
}

func (p *Player) wait(ctx context.Context, pb *playback, fallback bool) {
	defer p.wg.Done()
	err := pb.proc.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == pb {
		p.current = nil
	}
	if err == nil || pb.stopped {
		return
	}

	p.logger.Warn("tone playback failed", "tone", pb.ref, "error", err)
	if fallback && p.current == nil {
		if err := p.startLocked(ctx, p.defaultTone, false); err != nil {
			p.logger.Error("default tone failed", "error", err)
		}
	}
}

func (p *Player) stopLocked() {
	if p.current == nil {
		return
	}
	p.current.stopped = true
	if err := p.current.proc.Kill(); err != nil {
		p.logger.Debug("failed to stop playback", "error", err)
	}
	p.current = nil
}
