// Package notify presents reminder notifications through a pluggable presenter.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rereminder/shared/reminders"
)

// ChannelID is the fixed channel all reminders are posted to.
const ChannelID = "reminder_channel"

// Importance of a channel.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
)

// Channel describes where and how notifications are shown.
type Channel struct {
	ID          string
	Name        string
	Description string
	Importance  Importance
	// ToneRef overrides the presenter's default tone when set.
	ToneRef string
}

// Notification is one user-visible alert.
type Notification struct {
	ID        string
	ChannelID string
	Title     string
	Body      string
	Sound     bool
	ToneRef   string
	Vibration []time.Duration
	// TapURL is opened when the user taps the notification.
	TapURL    string
	AutoClear bool
}

// Presenter displays notifications.
type Presenter interface {
	// EnsureChannel prepares ch. It is called before the first Show and
	// again after a failure.
	EnsureChannel(ctx context.Context, ch Channel) error
	Show(ctx context.Context, n Notification) error
}

// Center owns the reminder channel and posts alerts through a presenter.
type Center struct {
	presenter Presenter
	channel   Channel
	tapURL    string
	logger    reminders.Logger

	mu    sync.Mutex
	ready bool
}

// NewCenter creates a notification center.
func NewCenter(p Presenter, channelName, tapURL string, logger reminders.Logger) *Center {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	if channelName == "" {
		channelName = "Reminders"
	}
	return &Center{
		presenter: p,
		channel: Channel{
			ID:          ChannelID,
			Name:        channelName,
			Description: "Periodic break reminders",
			Importance:  ImportanceHigh,
		},
		tapURL: tapURL,
		logger: logger,
	}
}

// Notify implements reminders.Notifier.
func (c *Center) Notify(ctx context.Context, alert reminders.Alert) error {
	if err := c.ensureChannel(ctx, alert.ToneRef); err != nil {
		return err
	}

	n := Notification{
		ID:        alert.ID,
		ChannelID: ChannelID,
		Title:     alert.Title,
		Body:      alert.Body,
		Sound:     alert.Sound,
		ToneRef:   alert.ToneRef,
		Vibration: alert.Vibration,
		TapURL:    c.tapURL,
		AutoClear: true,
	}
	if err := c.presenter.Show(ctx, n); err != nil {
		return fmt.Errorf("show notification: %w", err)
	}
	return nil
}

func (c *Center) ensureChannel(ctx context.Context, toneRef string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}

	ch := c.channel
	ch.ToneRef = toneRef
	if err := c.presenter.EnsureChannel(ctx, ch); err != nil {
		return fmt.Errorf("ensure channel %s: %w", ch.ID, err)
	}
	c.ready = true
	c.logger.Debug("notification channel ready", "channel", ch.ID)
	return nil
}
