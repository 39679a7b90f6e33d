package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"rereminder/internal/platform"
	"rereminder/shared/reminders"
)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

// TelegramConfig configures the Telegram presenter.
type TelegramConfig struct {
	Token      string
	ChatID     int64
	OpenLabel  string
	RatePerMin int
	MaxRetries int
	// MaxRetryAfter caps how long a 429 response may make us wait.
	MaxRetryAfter time.Duration
}

// TelegramPresenter delivers notifications as Telegram messages.
type TelegramPresenter struct {
	tg      telegramClient
	cfg     TelegramConfig
	limiter *rate.Limiter
	logger  reminders.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewTelegramPresenter connects to the Bot API.
func NewTelegramPresenter(cfg TelegramConfig, logger reminders.Logger) (*TelegramPresenter, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return newTelegramPresenter(&realTelegramClient{api: api}, cfg, logger), nil
}

func newTelegramPresenter(tg telegramClient, cfg TelegramConfig, logger reminders.Logger) *TelegramPresenter {
	if cfg.RatePerMin <= 0 {
		cfg.RatePerMin = 20
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.MaxRetryAfter <= 0 {
		cfg.MaxRetryAfter = time.Minute
	}
	if cfg.OpenLabel == "" {
		cfg.OpenLabel = "Open"
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &TelegramPresenter{
		tg:      tg,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMin)), 1),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// EnsureChannel checks that the bot can reach the configured chat.
func (p *TelegramPresenter) EnsureChannel(ctx context.Context, ch Channel) error {
	_, err := p.tg.Request(tgbotapi.ChatInfoConfig{ChatConfig: tgbotapi.ChatConfig{ChatID: p.cfg.ChatID}})
	if err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

func (p *TelegramPresenter) Show(ctx context.Context, n Notification) error {
	msg := tgbotapi.NewMessage(p.cfg.ChatID, n.Title+"\n\n"+n.Body)
	msg.DisableNotification = !n.Sound
	if n.TapURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL(p.cfg.OpenLabel, n.TapURL),
			),
		)
	}

	for attempt := 0; ; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		_, err := p.tg.Send(msg)
		if err == nil {
			return nil
		}

		var tgErr *tgbotapi.Error
		if !errors.As(err, &tgErr) || tgErr.Code != http.StatusTooManyRequests || attempt >= p.cfg.MaxRetries {
			return classifyTelegramError(err)
		}

		wait := time.Duration(tgErr.RetryAfter) * time.Second
		if wait <= 0 {
			wait = time.Second
		}
		if wait > p.cfg.MaxRetryAfter {
			return classifyTelegramError(err)
		}
		p.logger.Info("rate limited by Telegram, waiting",
			"retry_after", wait,
			"attempt", attempt+1)
		if err := p.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// SendDocument uploads a file to the configured chat.
func (p *TelegramPresenter) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	doc := tgbotapi.NewDocument(p.cfg.ChatID, tgbotapi.FileReader{Name: filename, Reader: data})
	doc.Caption = caption
	if _, err := p.tg.Send(doc); err != nil {
		return classifyTelegramError(err)
	}
	return nil
}

func classifyTelegramError(err error) error {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		switch tgErr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("telegram: %w: %s", platform.ErrPermissionDenied, tgErr.Message)
		case http.StatusNotFound, http.StatusTooManyRequests:
			return fmt.Errorf("telegram: %w: %s", platform.ErrResourceUnavailable, tgErr.Message)
		}
	}
	return fmt.Errorf("telegram: %w", err)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
