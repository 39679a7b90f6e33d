package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"rereminder/internal/platform"
)

// Effect names used in logs, metrics and fire records.
const (
	EffectNotification = "notification"
	EffectVibration    = "vibration"
	EffectSound        = "sound"
	EffectSpeech       = "speech"
)

// EffectStatus is the result of one side effect.
type EffectStatus string

const (
	EffectOK      EffectStatus = "ok"
	EffectSkipped EffectStatus = "skipped"
	EffectFailed  EffectStatus = "failed"
)

// EffectOutcome records what happened to one side effect.
type EffectOutcome struct {
	Status EffectStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// FireRecord describes one enabled firing.
type FireRecord struct {
	ID           string        `json:"id"`
	FiredAt      time.Time     `json:"fired_at"`
	NextAt       time.Time     `json:"next_at"`
	Notification EffectOutcome `json:"notification"`
	Vibration    EffectOutcome `json:"vibration"`
	Sound        EffectOutcome `json:"sound"`
	Speech       EffectOutcome `json:"speech"`
}

// Emitters are the side-effect services used by the handler. Nil members
// are treated as unavailable and skipped.
type Emitters struct {
	Notifier Notifier
	Tones    TonePlayer
	Speech   Speaker
	Vibrator Vibrator
}

// Rescheduler arms the next occurrence.
type Rescheduler interface {
	Schedule(ctx context.Context) time.Time
}

// Handler runs when the reminder alarm fires.
type Handler struct {
	store     SettingsStore
	scheduler Rescheduler
	emitters  Emitters
	texts     Texts
	deps      Deps
}

// NewHandler creates a new alarm handler.
func NewHandler(store SettingsStore, scheduler Rescheduler, emitters Emitters, texts Texts, deps Deps) *Handler {
	return &Handler{
		store:     store,
		scheduler: scheduler,
		emitters:  emitters,
		texts:     texts,
		deps:      deps.withDefaults(),
	}
}

// Fire performs one idle/armed transition. When reminders are disabled it
// does nothing and returns StateIdle. Otherwise it emits the side effects
// and always re-arms the alarm, returning StateArmed.
func (h *Handler) Fire(ctx context.Context) State {
	began := time.Now()
	defer func() { h.deps.Metrics.ObserveFireDuration(time.Since(began)) }()

	settings, err := h.store.GetSettings(ctx)
	if err != nil {
		// Without settings we cannot tell whether reminders were switched off;
		// keep the loop alive and let the next firing decide.
		h.deps.Logger.Error("failed to read settings on alarm, rescheduling", "error", err)
		h.deps.Metrics.IncFired("store_error")
		h.scheduler.Schedule(ctx)
		return StateArmed
	}

	if !settings.Enabled {
		h.deps.Logger.Debug("reminder alarm fired while disabled")
		h.deps.Metrics.IncFired("disabled")
		return StateIdle
	}

	record := FireRecord{
		ID:        uuid.NewString(),
		FiredAt:   h.deps.Clock(),
		Vibration: EffectOutcome{Status: EffectSkipped},
		Sound:     EffectOutcome{Status: EffectSkipped},
		Speech:    EffectOutcome{Status: EffectSkipped},
	}

	title, body := h.texts.Resolve(settings.NotificationTitle, settings.NotificationBody)
	alert := Alert{
		ID:      record.ID,
		Title:   title,
		Body:    body,
		Sound:   settings.SoundEnabled && settings.SoundMode != SoundModeSpeech,
		ToneRef: settings.ToneRef,
	}
	if settings.VibrationEnabled {
		alert.Vibration = Waveform(settings.VibrationPattern)
	}

	record.Notification = h.attempt(ctx, EffectNotification, h.emitters.Notifier != nil, func(ctx context.Context) error {
		return h.emitters.Notifier.Notify(ctx, alert)
	})

	if settings.VibrationEnabled {
		record.Vibration = h.attempt(ctx, EffectVibration, h.emitters.Vibrator != nil, func(ctx context.Context) error {
			return h.emitters.Vibrator.Vibrate(ctx, alert.Vibration)
		})
	}

	if settings.SoundEnabled {
		if settings.SoundMode == SoundModeSpeech {
			text := title + ". " + body
			record.Speech = h.attempt(ctx, EffectSpeech, h.emitters.Speech != nil, func(ctx context.Context) error {
				return h.emitters.Speech.Speak(ctx, text)
			})
		} else {
			ref := settings.ToneRef
			record.Sound = h.attempt(ctx, EffectSound, h.emitters.Tones != nil, func(ctx context.Context) error {
				return h.emitters.Tones.Play(ctx, ref)
			})
		}
	}

	record.NextAt = h.scheduler.Schedule(ctx)

	h.deps.Metrics.IncFired("delivered")
	h.deps.publish(EventFired, record)
	h.deps.Logger.Info("reminder delivered",
		"id", record.ID,
		"notification", record.Notification.Status,
		"vibration", record.Vibration.Status,
		"sound", record.Sound.Status,
		"speech", record.Speech.Status,
		"next_at", record.NextAt.Format(time.RFC3339))

	return StateArmed
}

// attempt runs one side effect, converting errors and panics into an outcome.
func (h *Handler) attempt(ctx context.Context, effect string, available bool, fn func(context.Context) error) (out EffectOutcome) {
	if !available {
		h.deps.Logger.Debug("effect unavailable", "effect", effect)
		return EffectOutcome{Status: EffectSkipped}
	}

	defer func() {
		if r := recover(); r != nil {
			out = h.failed(effect, &panicError{value: r})
		}
	}()

	if err := fn(ctx); err != nil {
		return h.failed(effect, err)
	}
	return EffectOutcome{Status: EffectOK}
}

func (h *Handler) failed(effect string, err error) EffectOutcome {
	reason := platform.Reason(err)
	var pe *panicError
	if errors.As(err, &pe) {
		reason = "panic"
	}
	h.deps.Metrics.IncEffectFailure(effect, reason)
	h.deps.Logger.Error("reminder effect failed",
		"effect", effect,
		"reason", reason,
		"error", err)
	return EffectOutcome{Status: EffectFailed, Error: err.Error()}
}

type panicError struct {
	value interface{}
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
