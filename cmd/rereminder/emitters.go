package main

import (
	"context"
	"fmt"
	"time"

	"rereminder/internal/history"
	"rereminder/internal/notify"
	"rereminder/internal/platform"
	"rereminder/internal/sound"
	"rereminder/internal/speech"
	"rereminder/internal/vibration"
	"rereminder/shared/reminders"
)

// outputs are the side-effect services built from config.
type outputs struct {
	emitters reminders.Emitters
	telegram *notify.TelegramPresenter

	player   *sound.Player
	engine   *speech.CommandEngine
	speaker  *speech.Speaker
	vibrator *vibration.CommandDevice
}

func (a *app) buildOutputs(runner platform.Runner) (*outputs, error) {
	cfg := a.cfg
	out := &outputs{}

	if cfg.Notification.Presenter == "telegram" || cfg.History.MonthlyReport {
		tg, err := notify.NewTelegramPresenter(notify.TelegramConfig{
			Token:      cfg.Telegram.BotToken,
			ChatID:     cfg.Telegram.ChatID,
			OpenLabel:  cfg.Telegram.OpenLabel,
			RatePerMin: cfg.Telegram.RatePerMinute,
			MaxRetries: cfg.Telegram.MaxRetries,
		}, a.log("telegram"))
		if err != nil {
			return nil, err
		}
		out.telegram = tg
	}

	var presenter notify.Presenter
	switch cfg.Notification.Presenter {
	case "telegram":
		presenter = out.telegram
	case "command":
		presenter = notify.NewCommandPresenter(runner, platform.Command(cfg.Notification.Command))
	default:
		presenter = notify.NewLogPresenter(a.log("notification"))
	}
	out.emitters.Notifier = notify.NewCenter(presenter, cfg.Notification.ChannelName, cfg.Notification.TapURL, a.log("notify"))

	out.player = sound.NewPlayer(runner, platform.Command(cfg.Sound.Command), cfg.Sound.DefaultTone, a.log("sound"))
	out.emitters.Tones = out.player

	out.engine = speech.NewCommandEngine(runner, platform.Command(cfg.Speech.Command), cfg.Speech.Language)
	out.speaker = speech.NewSpeaker(out.engine, a.log("speech"))
	out.emitters.Speech = out.speaker

	var device vibration.Device = vibration.None{}
	if cfg.Vibration.Enabled {
		out.vibrator = vibration.NewCommandDevice(runner, platform.Command(cfg.Vibration.Command), a.log("vibration"))
		device = out.vibrator
	}
	out.emitters.Vibrator = vibration.NewVibrator(device, a.log("vibration"))

	return out, nil
}

// documentSender returns the sender for monthly reports, nil when disabled.
func (o *outputs) documentSender() history.DocumentSender {
	if o.telegram == nil {
		return nil
	}
	return o.telegram
}

// Drain waits for background tones, speech and vibration to finish.
func (o *outputs) Drain() {
	o.speaker.WaitInit()
	o.engine.Wait()
	o.player.Wait()
	if o.vibrator != nil {
		o.vibrator.Wait()
	}
}

// Close stops playback and releases the speech engine.
func (o *outputs) Close() {
	o.player.Stop()
	_ = o.speaker.Shutdown()
}

// previewStore reports reminders as enabled and never persists a trigger, so
// a preview firing leaves the schedule untouched.
type previewStore struct {
	reminders.SettingsStore
}

func (s previewStore) GetSettings(ctx context.Context) (*reminders.Settings, error) {
	settings, err := s.SettingsStore.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings.Enabled = true
	return settings, nil
}

type previewScheduler struct{}

func (previewScheduler) Schedule(ctx context.Context) time.Time {
	return time.Time{}
}

func describe(o reminders.EffectOutcome) string {
	if o.Error != "" {
		return fmt.Sprintf("%s (%s)", o.Status, o.Error)
	}
	return string(o.Status)
}
