package vibration

import (
	"context"
	"strconv"
	"sync"
	"time"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

// DefaultCommand vibrates through Termux:API.
var DefaultCommand = platform.Command{"termux-vibrate", "-f", "-d", "{ms}"}

// CommandDevice runs one command per vibrate pulse. The waveform plays in
// the background; only the first pulse's failure is reported.
type CommandDevice struct {
	runner  platform.Runner
	command platform.Command
	logger  reminders.Logger
	sleep   func(ctx context.Context, d time.Duration) error

	wg sync.WaitGroup
}

func NewCommandDevice(runner platform.Runner, command platform.Command, logger reminders.Logger) *CommandDevice {
	if command.Empty() {
		command = DefaultCommand
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &CommandDevice{
		runner:  runner,
		command: command,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// HasVibrator reports whether the vibrate command is installed.
func (d *CommandDevice) HasVibrator() bool {
	_, err := d.runner.LookPath(d.command.Name())
	return err == nil
}

func (d *CommandDevice) Vibrate(ctx context.Context, waveform []time.Duration) error {
	if len(waveform) < 2 {
		return nil
	}
	if err := d.sleep(ctx, waveform[0]); err != nil {
		return err
	}
	if err := d.pulse(ctx, waveform[1]); err != nil {
		return err
	}

	rest := waveform[2:]
	if len(rest) == 0 {
		return nil
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.sleep(ctx, waveform[1]); err != nil {
			return
		}
		for i := 0; i+1 < len(rest); i += 2 {
			if err := d.sleep(ctx, rest[i]); err != nil {
				return
			}
			if err := d.pulse(ctx, rest[i+1]); err != nil {
				d.logger.Warn("vibration pulse failed", "error", err)
				return
			}
			if err := d.sleep(ctx, rest[i+1]); err != nil {
				return
			}
		}
	}()
	return nil
}

// Wait blocks until background waveforms have finished.
func (d *CommandDevice) Wait() {
	d.wg.Wait()
}

func (d *CommandDevice) pulse(ctx context.Context, length time.Duration) error {
	if length <= 0 {
		return nil
	}
	args := d.command.Expand(map[string]string{"ms": strconv.FormatInt(length.Milliseconds(), 10)})
	return platform.Run(ctx, d.runner, d.command.Name(), args...)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
