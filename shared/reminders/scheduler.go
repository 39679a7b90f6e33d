package reminders

import (
	"context"
	"errors"
	"time"

	"rereminder/internal/platform"
)

// Event types published by the scheduler and handler.
const (
	EventScheduled = "reminder.scheduled"
	EventCancelled = "reminder.cancelled"
	EventFired     = "reminder.fired"
)

// ScheduledEvent is the payload of EventScheduled.
type ScheduledEvent struct {
	TriggerAt time.Time `json:"trigger_at"`
	Mode      string    `json:"mode"`
}

// Scheduler arms the single reminder alarm.
type Scheduler struct {
	store  SettingsStore
	alarms AlarmManager
	deps   Deps
}

// NewScheduler creates a new reminder scheduler.
func NewScheduler(store SettingsStore, alarms AlarmManager, deps Deps) *Scheduler {
	return &Scheduler{
		store:  store,
		alarms: alarms,
		deps:   deps.withDefaults(),
	}
}

// Schedule arms the alarm at now + interval, replacing any pending one,
// and returns the trigger time. It never fails: a bad interval falls back
// to the default and storage errors are only logged.
func (s *Scheduler) Schedule(ctx context.Context) time.Time {
	trigger := s.deps.Clock().Add(s.interval(ctx))
	s.arm(ctx, trigger)
	return trigger
}

// ScheduleAt arms the alarm at an explicit instant. Used to restore a
// persisted alarm after a restart.
func (s *Scheduler) ScheduleAt(ctx context.Context, at time.Time) {
	s.arm(ctx, at)
}

// Cancel removes the pending alarm and clears the persisted trigger.
func (s *Scheduler) Cancel(ctx context.Context) {
	s.alarms.Cancel(AlarmSlot)
	if err := s.store.SetNextReminderTime(ctx, time.Time{}); err != nil {
		s.deps.Logger.Error("failed to clear next reminder time", "error", err)
	}
	s.deps.Metrics.IncCancelled()
	s.deps.publish(EventCancelled, nil)
	s.deps.Logger.Info("reminder alarm cancelled")
}

// NextReminderTime returns the persisted trigger, or the zero time.
func (s *Scheduler) NextReminderTime(ctx context.Context) (time.Time, error) {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return settings.NextReminderTime, nil
}

func (s *Scheduler) arm(ctx context.Context, trigger time.Time) {
	// Persist first so readers see the new time even if arming is slow.
	if err := s.store.SetNextReminderTime(ctx, trigger); err != nil {
		s.deps.Logger.Error("failed to persist next reminder time",
			"trigger_at", trigger,
			"error", err)
	}

	mode := "exact"
	if err := s.alarms.SetExact(AlarmSlot, trigger); err != nil {
		if !errors.Is(err, platform.ErrExactAlarmDenied) {
			s.deps.Logger.Error("exact alarm failed, using inexact", "error", err)
		} else {
			s.deps.Logger.Debug("exact alarms denied, using inexact")
		}
		s.alarms.SetInexact(AlarmSlot, trigger)
		mode = "inexact"
	}

	s.deps.Metrics.IncScheduled(mode, trigger)
	s.deps.publish(EventScheduled, ScheduledEvent{TriggerAt: trigger, Mode: mode})
	s.deps.Logger.Info("reminder alarm scheduled",
		"trigger_at", trigger.Format(time.RFC3339),
		"mode", mode)
}

func (s *Scheduler) interval(ctx context.Context) time.Duration {
	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		s.deps.Logger.Error("failed to read interval, using default",
			"default_minutes", DefaultIntervalMinutes,
			"error", err)
		return DefaultIntervalMinutes * time.Minute
	}
	if settings.IntervalMinutes < 1 {
		s.deps.Logger.Warn("invalid interval, using default",
			"interval_minutes", settings.IntervalMinutes,
			"default_minutes", DefaultIntervalMinutes)
		return DefaultIntervalMinutes * time.Minute
	}
	return settings.Interval()
}
