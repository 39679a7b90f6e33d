package notify

import (
	"context"

	"rereminder/shared/reminders"
)

// LogPresenter writes notifications to the log only.
type LogPresenter struct {
	logger reminders.Logger
}

func NewLogPresenter(logger reminders.Logger) *LogPresenter {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &LogPresenter{logger: logger}
}

func (p *LogPresenter) EnsureChannel(ctx context.Context, ch Channel) error {
	return nil
}

func (p *LogPresenter) Show(ctx context.Context, n Notification) error {
	p.logger.Info("reminder notification",
		"id", n.ID,
		"title", n.Title,
		"body", n.Body,
		"sound", n.Sound)
	return nil
}
