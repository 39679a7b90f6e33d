package settings

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rereminder/internal/database"
	"rereminder/shared/reminders"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(filepath.Join(t.TempDir(), "settings.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"sqlite": NewSQLiteBackend(db),
		"redis":  NewRedisBackend(client, "rereminder:"),
	}
}

func TestStoreDefaults(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := NewStore(backend, nil)

			s, err := store.GetSettings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, reminders.DefaultSettings(), s)
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	next := time.UnixMilli(1735689600123)

	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := NewStore(backend, nil)

			require.NoError(t, store.SetEnabled(ctx, true))
			require.NoError(t, store.SetInterval(ctx, 25))
			require.NoError(t, store.Set(ctx, KeyVibrationPattern, "pulsating"))
			require.NoError(t, store.Set(ctx, KeySoundType, "tts"))
			require.NoError(t, store.Set(ctx, KeyTitle, "  Stand up  "))
			require.NoError(t, store.Set(ctx, KeyRingtone, "/usr/share/sounds/bell.oga"))
			require.NoError(t, store.Set(ctx, KeySoundEnabled, "false"))
			require.NoError(t, store.SetNextReminderTime(ctx, next))

			s, err := store.GetSettings(ctx)
			require.NoError(t, err)
			assert.True(t, s.Enabled)
			assert.Equal(t, 25, s.IntervalMinutes)
			assert.Equal(t, reminders.VibrationPulsating, s.VibrationPattern)
			assert.Equal(t, reminders.SoundModeSpeech, s.SoundMode)
			assert.Equal(t, "Stand up", s.NotificationTitle)
			assert.Equal(t, "/usr/share/sounds/bell.oga", s.ToneRef)
			assert.False(t, s.SoundEnabled)
			assert.True(t, s.VibrationEnabled)
			assert.Equal(t, next.UnixMilli(), s.NextReminderTime.UnixMilli())

			require.NoError(t, store.SetNextReminderTime(ctx, time.Time{}))
			s, err = store.GetSettings(ctx)
			require.NoError(t, err)
			assert.True(t, s.NextReminderTime.IsZero())
		})
	}
}

func TestStoreRejectsInvalidValues(t *testing.T) {
	ctx := context.Background()
	store := NewStore(NewMemoryBackend(), nil)

	assert.ErrorIs(t, store.SetInterval(ctx, 0), ErrInvalidInterval)
	assert.ErrorIs(t, store.SetInterval(ctx, -10), ErrInvalidInterval)
	assert.ErrorIs(t, store.Set(ctx, KeyInterval, "0"), ErrInvalidInterval)
	assert.ErrorIs(t, store.Set(ctx, KeyInterval, "soon"), ErrInvalidValue)
	assert.ErrorIs(t, store.Set(ctx, KeyEnabled, "maybe"), ErrInvalidValue)
	assert.ErrorIs(t, store.Set(ctx, KeyVibrationPattern, "7"), ErrInvalidValue)
	assert.ErrorIs(t, store.Set(ctx, KeySoundType, "kazoo"), ErrInvalidValue)
	assert.ErrorIs(t, store.Set(ctx, "theme", "dark"), ErrUnknownKey)

	s, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, reminders.DefaultSettings(), s)
}

func TestStoreToleratesMalformedValues(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()
	require.NoError(t, backend.SetMany(ctx, map[string]string{
		KeyEnabled:          "yes please",
		KeyInterval:         "abc",
		KeyVibrationPattern: "9",
		KeySoundType:        "opera",
	}))
	store := NewStore(backend, nil)

	s, err := store.GetSettings(ctx)
	require.NoError(t, err)
	assert.False(t, s.Enabled)
	assert.Equal(t, reminders.DefaultIntervalMinutes, s.IntervalMinutes)
	// Unknown pattern ids are kept and mapped to the default waveform on use.
	assert.Equal(t, reminders.VibrationPattern(9), s.VibrationPattern)
	assert.Equal(t, reminders.SoundModeTone, s.SoundMode)
}

func TestRedisBackendLayout(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store := NewStore(NewRedisBackend(client, "rr:"), nil)
	require.NoError(t, store.SetInterval(context.Background(), 45))

	assert.Equal(t, "45", mr.HGet("rr:settings", KeyInterval))
	assert.NoError(t, store.Ping(context.Background()))

	mr.Close()
	_, err := store.GetSettings(context.Background())
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		key, in, want string
	}{
		{KeyEnabled, "1", "true"},
		{KeyVibrationEnabled, "FALSE", "false"},
		{KeyInterval, " 90 ", "90"},
		{KeyVibrationPattern, "3", "3"},
		{KeyVibrationPattern, "Short", "0"},
		{KeySoundType, "ringtone", "tone"},
		{KeyNextReminderTime, "0", "0"},
		{KeyText, "Drink water", "Drink water"},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.key, tt.in)
		require.NoError(t, err, "%s=%s", tt.key, tt.in)
		assert.Equal(t, tt.want, got)
	}
}

func TestKeysSorted(t *testing.T) {
	keys := Keys()
	assert.Len(t, keys, 10)
	assert.IsIncreasing(t, keys)
}
