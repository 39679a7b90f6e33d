package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

// Receiver is invoked when an alarm is delivered.
type Receiver func(ctx context.Context, slot string)

// Config controls the manager.
type Config struct {
	// AllowExact disables SetExact when false, forcing inexact delivery.
	AllowExact bool
	// CheckInterval is the watchdog period. Inexact alarms may be this late.
	CheckInterval time.Duration
}

type entry struct {
	at    time.Time
	exact bool
	timer *time.Timer
	gen   uint64
}

// Manager is an in-process wall-clock alarm service. Each slot holds at
// most one pending alarm. Exact alarms arm a timer; every alarm is also
// checked against the wall clock by a watchdog so that a host that was
// suspended delivers overdue alarms on resume.
type Manager struct {
	cfg    Config
	logger reminders.Logger
	now    func() time.Time

	mu        sync.Mutex
	slots     map[string]*entry
	receivers map[string]Receiver
	gen       uint64
	ctx       context.Context
	running   bool
	stopped   bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates an alarm manager.
func NewManager(cfg Config, logger reminders.Logger) *Manager {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 30 * time.Second
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Manager{
		cfg:       cfg,
		logger:    logger,
		now:       wallNow,
		slots:     make(map[string]*entry),
		receivers: make(map[string]Receiver),
		ctx:       context.Background(),
	}
}

// Register sets the receiver for slot.
func (m *Manager) Register(slot string, r Receiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.receivers[slot] = r
}

// SetExact arms slot at the exact instant, replacing any pending alarm.
func (m *Manager) SetExact(slot string, at time.Time) error {
	if !m.cfg.AllowExact {
		return fmt.Errorf("alarm %s: %w", slot, platform.ErrExactAlarmDenied)
	}
	m.set(slot, at, true)
	return nil
}

// SetInexact arms slot for delivery by the watchdog, replacing any pending alarm.
func (m *Manager) SetInexact(slot string, at time.Time) {
	m.set(slot, at, false)
}

// Cancel removes the pending alarm at slot.
func (m *Manager) Cancel(slot string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(slot)
}

// Pending returns the trigger time of the alarm at slot.
func (m *Manager) Pending(slot string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.slots[slot]
	if !ok {
		return time.Time{}, false
	}
	return e.at, true
}

// Start runs the watchdog until ctx is done or Stop is called. Receivers
// are invoked with ctx.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	m.stopped = false
	m.ctx = ctx
	m.stopCh = make(chan struct{})
	stopCh := m.stopCh
	for slot, e := range m.slots {
		if e.exact && e.timer == nil {
			m.armLocked(slot, e)
		}
	}
	m.mu.Unlock()

	m.wg.Add(1)
	go m.watchdog(ctx, stopCh)

	m.logger.Info("alarm manager started",
		"check_interval", m.cfg.CheckInterval,
		"exact_allowed", m.cfg.AllowExact)
}

// Stop stops the watchdog and disarms all timers. Pending alarms stay
// registered so Pending still reports them, but are no longer delivered.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.stopped = true
	for _, e := range m.slots {
		if e.timer != nil {
			e.timer.Stop()
			e.timer = nil
		}
	}
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	m.logger.Info("alarm manager stopped")
}

func (m *Manager) set(slot string, at time.Time, exact bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearLocked(slot)
	m.gen++
	// Compare trigger times on the wall clock; the monotonic clock stops
	// while the host is suspended.
	at = at.Round(0)
	e := &entry{at: at, exact: exact, gen: m.gen}
	if exact {
		m.armLocked(slot, e)
	}
	m.slots[slot] = e
}

func (m *Manager) armLocked(slot string, e *entry) {
	gen := e.gen
	delay := e.at.Sub(m.now())
	if delay < 0 {
		delay = 0
	}
	e.timer = time.AfterFunc(delay, func() { m.fire(slot, gen) })
}

func (m *Manager) clearLocked(slot string) {
	if e, ok := m.slots[slot]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(m.slots, slot)
	}
}

// fire delivers slot if it still holds alarm generation gen.
func (m *Manager) fire(slot string, gen uint64) {
	m.mu.Lock()
	e, ok := m.slots[slot]
	if !ok || e.gen != gen {
		m.mu.Unlock()
		return
	}
	m.deliverLocked(slot, e)
	m.mu.Unlock()
}

// checkDue delivers every alarm whose trigger time has passed.
func (m *Manager) checkDue() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	delivered := 0
	for slot, e := range m.slots {
		if e.at.After(now) {
			continue
		}
		if m.stopped {
			break
		}
		m.deliverLocked(slot, e)
		delivered++
	}
	return delivered
}

// deliverLocked clears the slot and hands the alarm to its receiver on a
// separate goroutine, so the receiver may re-arm the slot.
func (m *Manager) deliverLocked(slot string, e *entry) {
	if m.stopped {
		return
	}
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(m.slots, slot)

	r, ok := m.receivers[slot]
	if !ok {
		m.logger.Warn("alarm delivered without receiver", "slot", slot)
		return
	}

	lateness := m.now().Sub(e.at)
	ctx := m.ctx
	m.logger.Debug("delivering alarm",
		"slot", slot,
		"exact", e.exact,
		"lateness", lateness)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		r(ctx, slot)
	}()
}

func wallNow() time.Time {
	return time.Now().Round(0)
}

func (m *Manager) watchdog(ctx context.Context, stopCh <-chan struct{}) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			m.checkDue()
		}
	}
}
