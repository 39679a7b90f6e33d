package reminders

import (
	"context"
	"sync"
	"time"
)

// Reconciler watches the settings store for edits made by the CLI (possibly
// from another process) and drives the loop accordingly.
type Reconciler struct {
	store    SettingsStore
	loop     *Loop
	interval time.Duration
	logger   Logger

	mu           sync.Mutex
	lastInterval int
	primed       bool
	running      bool
	stopCh       chan struct{}
	wg           sync.WaitGroup
}

// NewReconciler creates a reconciler polling every interval.
func NewReconciler(store SettingsStore, loop *Loop, interval time.Duration, logger Logger) *Reconciler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Reconciler{
		store:    store,
		loop:     loop,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the polling loop.
func (r *Reconciler) Start(ctx context.Context) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()

	r.wg.Add(1)
	go r.run(ctx, stopCh)

	r.logger.Info("settings reconciler started", "poll_interval", r.interval)
}

// Stop stops the polling loop and waits for it to exit.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	r.logger.Info("settings reconciler stopped")
}

func (r *Reconciler) run(ctx context.Context, stopCh <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			r.Sync(ctx)
		}
	}
}

// Sync performs one reconciliation pass.
func (r *Reconciler) Sync(ctx context.Context) {
	settings, err := r.store.GetSettings(ctx)
	if err != nil {
		r.logger.Error("failed to read settings", "error", err)
		return
	}

	r.mu.Lock()
	intervalChanged := r.primed && settings.IntervalMinutes != r.lastInterval
	r.lastInterval = settings.IntervalMinutes
	r.primed = true
	r.mu.Unlock()

	state := r.loop.State()
	switch {
	case settings.Enabled && state == StateIdle:
		r.logger.Info("reminders enabled, arming alarm")
		r.loop.Enable(ctx)
	case !settings.Enabled && state == StateArmed:
		r.logger.Info("reminders disabled, cancelling alarm")
		r.loop.Disable(ctx)
	case settings.Enabled && intervalChanged:
		r.logger.Info("reminder interval changed, rescheduling",
			"interval_minutes", settings.IntervalMinutes)
		r.loop.Reschedule(ctx)
	}
}
