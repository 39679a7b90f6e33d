package reminders

import (
	"context"
	"strings"
	"time"
)

// AlarmSlot is the fixed identifier of the single reminder alarm.
const AlarmSlot = "reminder"

// DefaultIntervalMinutes is used when no valid interval is stored.
const DefaultIntervalMinutes = 60

// SoundMode selects how an enabled sound is rendered.
type SoundMode string

const (
	SoundModeTone   SoundMode = "tone"
	SoundModeSpeech SoundMode = "speech"
)

// ParseSoundMode accepts the canonical names plus the legacy "ringtone"/"tts".
func ParseSoundMode(s string) (SoundMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tone", "ringtone":
		return SoundModeTone, true
	case "speech", "tts":
		return SoundModeSpeech, true
	default:
		return SoundModeTone, false
	}
}

// VibrationPattern identifies a vibration waveform.
type VibrationPattern int

const (
	VibrationShort VibrationPattern = iota
	VibrationDefault
	VibrationLong
	VibrationPulsating
)

// Settings holds the reminder preferences.
type Settings struct {
	Enabled           bool
	IntervalMinutes   int
	SoundEnabled      bool
	VibrationEnabled  bool
	ToneRef           string
	VibrationPattern  VibrationPattern
	NotificationTitle string
	NotificationBody  string
	SoundMode         SoundMode
	// NextReminderTime is the zero time when nothing is scheduled.
	NextReminderTime time.Time
}

// Interval returns the configured interval as a duration.
func (s *Settings) Interval() time.Duration {
	return time.Duration(s.IntervalMinutes) * time.Minute
}

// DefaultSettings returns the settings used before anything is stored.
func DefaultSettings() *Settings {
	return &Settings{
		Enabled:          false,
		IntervalMinutes:  DefaultIntervalMinutes,
		SoundEnabled:     true,
		VibrationEnabled: true,
		VibrationPattern: VibrationDefault,
		SoundMode:        SoundModeTone,
	}
}

// SettingsStore provides access to reminder settings.
type SettingsStore interface {
	// GetSettings returns the stored settings, filling defaults for missing keys.
	GetSettings(ctx context.Context) (*Settings, error)

	// SetNextReminderTime persists the next trigger. The zero time clears it.
	SetNextReminderTime(ctx context.Context, t time.Time) error
}

// AlarmManager registers one-shot wake alarms.
type AlarmManager interface {
	// SetExact arms slot at the exact instant. It may refuse with
	// platform.ErrExactAlarmDenied.
	SetExact(slot string, at time.Time) error

	// SetInexact arms slot for best-effort delivery around at.
	SetInexact(slot string, at time.Time)

	// Cancel removes any pending alarm at slot.
	Cancel(slot string)
}

// Alert is the user-visible notification emitted on each firing.
type Alert struct {
	ID        string
	Title     string
	Body      string
	Sound     bool
	ToneRef   string
	Vibration []time.Duration
}

// Notifier presents alerts.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// TonePlayer plays a notification tone. An empty ref selects the default tone.
type TonePlayer interface {
	Play(ctx context.Context, ref string) error
}

// Speaker speaks text aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// Vibrator fires a vibration waveform.
type Vibrator interface {
	Vibrate(ctx context.Context, waveform []time.Duration) error
}

// EventPublisher publishes reminder lifecycle events.
type EventPublisher interface {
	Publish(evType string, payload interface{})
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Debug(string, ...interface{}) {}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return nopLogger{}
}

// Deps carries the collaborators shared by the scheduler, handler and loop.
type Deps struct {
	Logger  Logger
	Metrics *Metrics
	Events  EventPublisher
	Clock   func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Logger == nil {
		d.Logger = NopLogger()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return d
}

func (d Deps) publish(evType string, payload interface{}) {
	if d.Events != nil {
		d.Events.Publish(evType, payload)
	}
}
