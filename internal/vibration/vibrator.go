// Package vibration drives a vibration motor with one-shot waveforms.
package vibration

import (
	"context"
	"errors"
	"time"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

// Device is a vibration motor.
type Device interface {
	HasVibrator() bool
	// Vibrate plays a waveform of alternating pause and vibrate durations,
	// starting with a pause.
	Vibrate(ctx context.Context, waveform []time.Duration) error
}

// None is a device without a motor.
type None struct{}

func (None) HasVibrator() bool { return false }

func (None) Vibrate(ctx context.Context, waveform []time.Duration) error { return nil }

// Vibrator implements reminders.Vibrator over a Device.
type Vibrator struct {
	device Device
	logger reminders.Logger
}

func NewVibrator(device Device, logger reminders.Logger) *Vibrator {
	if device == nil {
		device = None{}
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Vibrator{device: device, logger: logger}
}

// Vibrate fires waveform. It is a no-op without a motor or without
// permission to use it.
func (v *Vibrator) Vibrate(ctx context.Context, waveform []time.Duration) error {
	if len(waveform) == 0 {
		return nil
	}
	if !v.device.HasVibrator() {
		v.logger.Debug("no vibrator, skipping vibration")
		return nil
	}
	err := v.device.Vibrate(ctx, waveform)
	if errors.Is(err, platform.ErrPermissionDenied) {
		v.logger.Warn("vibration not permitted, skipping", "error", err)
		return nil
	}
	return err
}
