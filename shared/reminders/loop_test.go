package reminders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type loopFixture struct {
	store    *MockSettingsStore
	alarms   *MockAlarmManager
	clock    *testClock
	notifier *fakeNotifier
	loop     *Loop
}

func newLoopFixture(t *testing.T) *loopFixture {
	t.Helper()
	f := &loopFixture{
		store:    NewMockSettingsStore(),
		alarms:   NewMockAlarmManager(),
		clock:    &testClock{now: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)},
		notifier: &fakeNotifier{},
	}
	deps := Deps{Clock: f.clock.Now}
	scheduler := NewScheduler(f.store, f.alarms, deps)
	handler := NewHandler(f.store, scheduler, Emitters{Notifier: f.notifier}, DefaultTexts("en"), deps)
	f.loop = NewLoop(f.store, scheduler, handler, deps)
	return f
}

func (f *loopFixture) next(t *testing.T) time.Time {
	t.Helper()
	s, err := f.store.GetSettings(context.Background())
	require.NoError(t, err)
	return s.NextReminderTime
}

func TestLoopOneMinuteInterval(t *testing.T) {
	f := newLoopFixture(t)
	ctx := context.Background()
	t0 := f.clock.Now()
	f.store.Update(func(s *Settings) {
		s.Enabled = true
		s.IntervalMinutes = 1
	})

	f.loop.Enable(ctx)
	assert.Equal(t, StateArmed, f.loop.State())
	assert.Equal(t, t0.UnixMilli()+60000, f.next(t).UnixMilli())

	f.clock.Set(t0.Add(time.Minute))
	f.loop.OnAlarm(ctx, AlarmSlot)
	assert.Equal(t, t0.UnixMilli()+120000, f.next(t).UnixMilli())

	f.clock.Set(t0.Add(2 * time.Minute))
	f.loop.OnAlarm(ctx, AlarmSlot)
	assert.Equal(t, t0.UnixMilli()+180000, f.next(t).UnixMilli())

	assert.Len(t, f.notifier.alerts, 2)
	assert.Equal(t, StateArmed, f.loop.State())
}

func TestLoopDisableThenStaleAlarm(t *testing.T) {
	f := newLoopFixture(t)
	ctx := context.Background()
	f.store.Update(func(s *Settings) { s.Enabled = true })

	f.loop.Enable(ctx)
	f.store.Update(func(s *Settings) { s.Enabled = false })
	f.loop.Disable(ctx)

	assert.Equal(t, StateIdle, f.loop.State())
	assert.True(t, f.next(t).IsZero())

	// A stale delivery after disable does nothing.
	f.loop.OnAlarm(ctx, AlarmSlot)
	assert.Equal(t, StateIdle, f.loop.State())
	assert.Empty(t, f.notifier.alerts)
	_, ok := f.alarms.Pending(AlarmSlot)
	assert.False(t, ok)
}

func TestLoopAlarmAfterStoreDisableClearsNextTime(t *testing.T) {
	f := newLoopFixture(t)
	ctx := context.Background()
	f.store.Update(func(s *Settings) { s.Enabled = true })
	f.loop.Enable(ctx)
	require.False(t, f.next(t).IsZero())

	// Disabled from another process before the reconciler noticed.
	f.store.Update(func(s *Settings) { s.Enabled = false })
	f.loop.OnAlarm(ctx, AlarmSlot)

	assert.Equal(t, StateIdle, f.loop.State())
	assert.Empty(t, f.notifier.alerts)
	assert.True(t, f.next(t).IsZero())
	_, ok := f.alarms.Pending(AlarmSlot)
	assert.False(t, ok)
}

func TestLoopIgnoresUnknownSlot(t *testing.T) {
	f := newLoopFixture(t)
	f.store.Update(func(s *Settings) { s.Enabled = true })

	f.loop.OnAlarm(context.Background(), "backup")

	assert.Empty(t, f.notifier.alerts)
	assert.Equal(t, StateIdle, f.loop.State())
}

func TestLoopRescheduleOnlyWhenArmed(t *testing.T) {
	f := newLoopFixture(t)
	ctx := context.Background()

	f.loop.Reschedule(ctx)
	_, ok := f.alarms.Pending(AlarmSlot)
	assert.False(t, ok)

	f.store.Update(func(s *Settings) { s.Enabled = true })
	f.loop.Enable(ctx)
	f.store.Update(func(s *Settings) { s.IntervalMinutes = 15 })
	f.loop.Reschedule(ctx)

	assert.Equal(t, f.clock.Now().Add(15*time.Minute), f.next(t))
}

func TestLoopRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("future trigger kept", func(t *testing.T) {
		f := newLoopFixture(t)
		pending := f.clock.Now().Add(20 * time.Minute)
		f.store.Update(func(s *Settings) {
			s.Enabled = true
			s.NextReminderTime = pending
		})

		require.NoError(t, f.loop.Restore(ctx))

		assert.Equal(t, StateArmed, f.loop.State())
		at, ok := f.alarms.Pending(AlarmSlot)
		require.True(t, ok)
		assert.Equal(t, pending, at)
	})

	t.Run("missed trigger rescheduled", func(t *testing.T) {
		f := newLoopFixture(t)
		f.store.Update(func(s *Settings) {
			s.Enabled = true
			s.NextReminderTime = f.clock.Now().Add(-time.Hour)
		})

		require.NoError(t, f.loop.Restore(ctx))

		assert.Equal(t, f.clock.Now().Add(time.Hour), f.next(t))
		assert.Empty(t, f.notifier.alerts)
	})

	t.Run("disabled clears trigger", func(t *testing.T) {
		f := newLoopFixture(t)
		f.store.Update(func(s *Settings) {
			s.NextReminderTime = f.clock.Now().Add(time.Minute)
		})

		require.NoError(t, f.loop.Restore(ctx))

		assert.Equal(t, StateIdle, f.loop.State())
		assert.True(t, f.next(t).IsZero())
	})
}

func TestReconcilerSync(t *testing.T) {
	f := newLoopFixture(t)
	ctx := context.Background()
	r := NewReconciler(f.store, f.loop, time.Second, nil)

	r.Sync(ctx)
	assert.Equal(t, StateIdle, f.loop.State())

	f.store.Update(func(s *Settings) { s.Enabled = true })
	r.Sync(ctx)
	assert.Equal(t, StateArmed, f.loop.State())
	assert.Equal(t, f.clock.Now().Add(time.Hour), f.next(t))

	f.clock.Set(f.clock.Now().Add(5 * time.Minute))
	f.store.Update(func(s *Settings) { s.IntervalMinutes = 30 })
	r.Sync(ctx)
	assert.Equal(t, f.clock.Now().Add(30*time.Minute), f.next(t))

	f.store.Update(func(s *Settings) { s.Enabled = false })
	r.Sync(ctx)
	assert.Equal(t, StateIdle, f.loop.State())
	assert.True(t, f.next(t).IsZero())
}

func TestReconcilerStartStop(t *testing.T) {
	f := newLoopFixture(t)
	f.store.Update(func(s *Settings) { s.Enabled = true })
	r := NewReconciler(f.store, f.loop, 10*time.Millisecond, nil)

	r.Start(context.Background())
	r.Start(context.Background())

	assert.Eventually(t, func() bool {
		return f.loop.State() == StateArmed
	}, time.Second, 10*time.Millisecond)

	r.Stop()
	r.Stop()

	f.store.Update(func(s *Settings) { s.Enabled = false })
	r.Start(context.Background())
	assert.Eventually(t, func() bool {
		return f.loop.State() == StateIdle
	}, time.Second, 10*time.Millisecond)
	r.Stop()
}
