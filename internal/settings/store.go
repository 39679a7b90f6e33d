package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"rereminder/shared/reminders"
)

// Persisted keys.
const (
	KeyEnabled          = "reminder_enabled"
	KeyInterval         = "reminder_interval"
	KeyRingtone         = "selected_ringtone"
	KeySoundEnabled     = "sound_enabled"
	KeyVibrationEnabled = "vibration_enabled"
	KeyVibrationPattern = "vibration_pattern"
	KeyTitle            = "notification_title"
	KeyText             = "notification_text"
	KeySoundType        = "notification_sound_type"
	KeyNextReminderTime = "next_reminder_time"
)

var (
	ErrInvalidInterval = errors.New("interval must be at least one minute")
	ErrUnknownKey      = errors.New("unknown settings key")
	ErrInvalidValue    = errors.New("invalid settings value")
)

// Backend is a flat string key-value store.
type Backend interface {
	GetAll(ctx context.Context) (map[string]string, error)
	SetMany(ctx context.Context, values map[string]string) error
	Ping(ctx context.Context) error
	Close() error
}

// Store exposes typed reminder settings over a Backend.
type Store struct {
	backend Backend
	logger  reminders.Logger
}

// NewStore creates a settings store.
func NewStore(backend Backend, logger reminders.Logger) *Store {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Store{backend: backend, logger: logger}
}

// Keys returns all known keys in sorted order.
func Keys() []string {
	keys := []string{
		KeyEnabled, KeyInterval, KeyRingtone, KeySoundEnabled, KeyVibrationEnabled,
		KeyVibrationPattern, KeyTitle, KeyText, KeySoundType, KeyNextReminderTime,
	}
	sort.Strings(keys)
	return keys
}

// GetSettings reads all settings, using defaults for missing or malformed values.
func (s *Store) GetSettings(ctx context.Context) (*reminders.Settings, error) {
	values, err := s.backend.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return s.decode(values), nil
}

// SetNextReminderTime persists the next trigger in unix milliseconds, 0 for none.
func (s *Store) SetNextReminderTime(ctx context.Context, t time.Time) error {
	var ms int64
	if !t.IsZero() {
		ms = t.UnixMilli()
	}
	return s.write(ctx, map[string]string{KeyNextReminderTime: strconv.FormatInt(ms, 10)})
}

// SetEnabled toggles reminders.
func (s *Store) SetEnabled(ctx context.Context, enabled bool) error {
	return s.write(ctx, map[string]string{KeyEnabled: strconv.FormatBool(enabled)})
}

// SetInterval stores the interval in minutes.
func (s *Store) SetInterval(ctx context.Context, minutes int) error {
	if minutes < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, minutes)
	}
	return s.write(ctx, map[string]string{KeyInterval: strconv.Itoa(minutes)})
}

// Set validates and stores a single raw key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	normalized, err := Normalize(key, value)
	if err != nil {
		return err
	}
	return s.write(ctx, map[string]string{key: normalized})
}

// Ping checks the backend.
func (s *Store) Ping(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) write(ctx context.Context, values map[string]string) error {
	if err := s.backend.SetMany(ctx, values); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

// Normalize validates value for key and returns its canonical stored form.
func Normalize(key, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch key {
	case KeyEnabled, KeySoundEnabled, KeyVibrationEnabled:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%q is not a boolean", ErrInvalidValue, key, value)
		}
		return strconv.FormatBool(b), nil
	case KeyInterval:
		n, err := strconv.Atoi(value)
		if err != nil {
			return "", fmt.Errorf("%w: %s=%q is not a number", ErrInvalidValue, key, value)
		}
		if n < 1 {
			return "", fmt.Errorf("%w: %d", ErrInvalidInterval, n)
		}
		return strconv.Itoa(n), nil
	case KeyVibrationPattern:
		if n, err := strconv.Atoi(value); err == nil {
			if reminders.VibrationPattern(n).String() == "unknown" {
				return "", fmt.Errorf("%w: %s=%d is not a vibration pattern", ErrInvalidValue, key, n)
			}
			return strconv.Itoa(n), nil
		}
		p, ok := reminders.ParseVibrationPattern(strings.ToLower(value))
		if !ok {
			return "", fmt.Errorf("%w: %s=%q is not a vibration pattern", ErrInvalidValue, key, value)
		}
		return strconv.Itoa(int(p)), nil
	case KeySoundType:
		m, ok := reminders.ParseSoundMode(value)
		if !ok {
			return "", fmt.Errorf("%w: %s=%q must be tone or speech", ErrInvalidValue, key, value)
		}
		return string(m), nil
	case KeyNextReminderTime:
		ms, err := strconv.ParseInt(value, 10, 64)
		if err != nil || ms < 0 {
			return "", fmt.Errorf("%w: %s=%q is not a unix millisecond time", ErrInvalidValue, key, value)
		}
		return strconv.FormatInt(ms, 10), nil
	case KeyRingtone, KeyTitle, KeyText:
		return value, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
}

func (s *Store) decode(values map[string]string) *reminders.Settings {
	out := reminders.DefaultSettings()

	boolKey := func(key string, dst *bool) {
		raw, ok := values[key]
		if !ok {
			return
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			s.logger.Warn("malformed setting, using default", "key", key, "value", raw)
			return
		}
		*dst = b
	}

	boolKey(KeyEnabled, &out.Enabled)
	boolKey(KeySoundEnabled, &out.SoundEnabled)
	boolKey(KeyVibrationEnabled, &out.VibrationEnabled)

	if raw, ok := values[KeyInterval]; ok {
		// Stored as-is; the scheduler falls back on non-positive values.
		if n, err := strconv.Atoi(raw); err == nil {
			out.IntervalMinutes = n
		} else {
			s.logger.Warn("malformed setting, using default", "key", KeyInterval, "value", raw)
		}
	}
	if raw, ok := values[KeyVibrationPattern]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			out.VibrationPattern = reminders.VibrationPattern(n)
		}
	}
	if raw, ok := values[KeySoundType]; ok {
		if m, ok := reminders.ParseSoundMode(raw); ok {
			out.SoundMode = m
		}
	}
	if raw, ok := values[KeyNextReminderTime]; ok {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil && ms > 0 {
			out.NextReminderTime = time.UnixMilli(ms)
		}
	}

	out.ToneRef = values[KeyRingtone]
	out.NotificationTitle = values[KeyTitle]
	out.NotificationBody = values[KeyText]
	return out
}
