package reminders

import (
	"context"
	"sync"
)

// State is the reminder loop state.
type State int

const (
	StateIdle State = iota
	StateArmed
)

func (s State) String() string {
	if s == StateArmed {
		return "armed"
	}
	return "idle"
}

// Loop is the idle/armed state machine around the single reminder alarm.
// Transitions are serialized; schedule and cancel are last-write-wins on
// the alarm slot, so repeated enable/disable calls are harmless.
type Loop struct {
	mu        sync.Mutex
	state     State
	store     SettingsStore
	scheduler *Scheduler
	handler   *Handler
	deps      Deps
}

// NewLoop creates a loop in the idle state.
func NewLoop(store SettingsStore, scheduler *Scheduler, handler *Handler, deps Deps) *Loop {
	return &Loop{
		store:     store,
		scheduler: scheduler,
		handler:   handler,
		deps:      deps.withDefaults(),
	}
}

// State returns the current state.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Enable arms the alarm.
func (l *Loop) Enable(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scheduler.Schedule(ctx)
	l.state = StateArmed
}

// Disable cancels the alarm.
func (l *Loop) Disable(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.scheduler.Cancel(ctx)
	l.state = StateIdle
}

// Reschedule re-arms from now if the loop is armed, e.g. after an
// interval change.
func (l *Loop) Reschedule(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateArmed {
		return
	}
	l.scheduler.Schedule(ctx)
}

// OnAlarm handles a delivered alarm.
func (l *Loop) OnAlarm(ctx context.Context, slot string) {
	if slot != AlarmSlot {
		l.deps.Logger.Warn("alarm for unknown slot ignored", "slot", slot)
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = l.handler.Fire(ctx)
	if l.state == StateIdle {
		// Disabled since the alarm was armed; drop the persisted trigger.
		l.scheduler.Cancel(ctx)
	}
}

// Restore re-arms the loop from persisted settings after a restart. A
// pending trigger still in the future is kept; a missed or absent one is
// replaced by a fresh schedule from now.
func (l *Loop) Restore(ctx context.Context) error {
	settings, err := l.store.GetSettings(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !settings.Enabled {
		if !settings.NextReminderTime.IsZero() {
			l.scheduler.Cancel(ctx)
		}
		l.state = StateIdle
		return nil
	}

	next := settings.NextReminderTime
	if next.After(l.deps.Clock()) {
		l.scheduler.ScheduleAt(ctx, next)
		l.deps.Logger.Info("restored pending reminder", "trigger_at", next)
	} else {
		l.scheduler.Schedule(ctx)
	}
	l.state = StateArmed
	return nil
}
