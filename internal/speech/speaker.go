// Package speech speaks reminder text through a text-to-speech engine.
package speech

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

// Engine is a text-to-speech backend.
type Engine interface {
	// Init prepares the engine. It may block.
	Init(ctx context.Context) error
	// Speak starts speaking text, flushing any utterance in progress.
	Speak(ctx context.Context, text string) error
	Shutdown() error
}

type engineState int

const (
	stateNew engineState = iota
	stateInitializing
	stateReady
	stateFailed
	stateShutdown
)

// Speaker initialises its engine lazily on first use. Text requested before
// the engine is ready is queued; only the most recent text is kept.
type Speaker struct {
	engine Engine
	logger reminders.Logger

	mu      sync.Mutex
	state   engineState
	pending string
	initErr error
	initWG  sync.WaitGroup
}

func NewSpeaker(engine Engine, logger reminders.Logger) *Speaker {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Speaker{engine: engine, logger: logger}
}

// Speak speaks text, or queues it while the engine initialises. Blank text
// is ignored.
func (s *Speaker) Speak(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateReady:
		return s.engine.Speak(ctx, text)
	case stateShutdown:
		return fmt.Errorf("speak: %w: shut down", platform.ErrEngineNotReady)
	case stateInitializing:
		s.pending = text
		return nil
	case stateFailed:
		// Retry initialisation, but tell the caller the last attempt failed.
		prev := s.initErr
		s.pending = text
		s.startInitLocked(ctx)
		return fmt.Errorf("speak: %w: %v", platform.ErrEngineNotReady, prev)
	default:
		s.pending = text
		s.startInitLocked(ctx)
		return nil
	}
}

// Ready reports whether the engine finished initialising.
func (s *Speaker) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateReady
}

// WaitInit blocks until any in-flight initialisation has finished.
func (s *Speaker) WaitInit() {
	s.initWG.Wait()
}

// Shutdown releases the engine. Later calls to Speak fail.
func (s *Speaker) Shutdown() error {
	s.initWG.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateShutdown {
		return nil
	}
	wasReady := s.state == stateReady
	s.state = stateShutdown
	s.pending = ""
	if !wasReady {
		return nil
	}
	return s.engine.Shutdown()
}

func (s *Speaker) startInitLocked(ctx context.Context) {
	s.state = stateInitializing
	s.initWG.Add(1)
	// Init outlives the firing that triggered it.
	go s.init(context.WithoutCancel(ctx))
}

func (s *Speaker) init(ctx context.Context) {
	defer s.initWG.Done()
	err := s.engine.Init(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateInitializing {
		return
	}
	if err != nil {
		s.state = stateFailed
		s.initErr = err
		s.pending = ""
		s.logger.Error("speech engine initialisation failed", "error", err)
		return
	}

	s.state = stateReady
	s.logger.Debug("speech engine ready")
	if text := s.pending; text != "" {
		s.pending = ""
		if err := s.engine.Speak(ctx, text); err != nil {
			s.logger.Error("queued speech failed", "error", err)
		}
	}
}
