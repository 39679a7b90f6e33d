package notify

import (
	"context"
	"strconv"

	"rereminder/internal/platform"
)

// DefaultCommand posts a desktop notification with notify-send.
var DefaultCommand = platform.Command{
	"notify-send", "--app-name=rereminder", "--urgency={urgency}", "--expire-time={expire_ms}", "{title}", "{body}",
}

// TermuxCommand posts an Android notification through Termux:API.
var TermuxCommand = platform.Command{
	"termux-notification", "--id", "{channel}", "--title", "{title}", "--content", "{body}",
	"--priority", "{priority}", "--action", "termux-open-url {url}",
}

// CommandPresenter shows notifications by running an external command.
type CommandPresenter struct {
	runner  platform.Runner
	command platform.Command
}

func NewCommandPresenter(runner platform.Runner, command platform.Command) *CommandPresenter {
	if command.Empty() {
		command = DefaultCommand
	}
	return &CommandPresenter{runner: runner, command: command}
}

// EnsureChannel checks that the command is installed.
func (p *CommandPresenter) EnsureChannel(ctx context.Context, ch Channel) error {
	_, err := p.runner.LookPath(p.command.Name())
	return err
}

func (p *CommandPresenter) Show(ctx context.Context, n Notification) error {
	urgency, priority := "normal", "default"
	if n.Sound {
		urgency, priority = "critical", "high"
	}
	expire := 0
	if n.AutoClear {
		expire = 60000
	}
	args := p.command.Expand(map[string]string{
		"id":        n.ID,
		"channel":   n.ChannelID,
		"title":     n.Title,
		"body":      n.Body,
		"url":       n.TapURL,
		"urgency":   urgency,
		"priority":  priority,
		"expire_ms": strconv.Itoa(expire),
	})
	return platform.Run(ctx, p.runner, p.command.Name(), args...)
}
