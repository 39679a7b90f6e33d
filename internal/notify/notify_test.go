package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"rereminder/internal/platform"
	"rereminder/internal/platform/platformtest"
	"rereminder/shared/reminders"
)

type fakePresenter struct {
	mu        sync.Mutex
	channels  []Channel
	shown     []Notification
	ensureErr []error
	showErr   error
}

func (f *fakePresenter) EnsureChannel(ctx context.Context, ch Channel) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.channels = append(f.channels, ch)
	if len(f.ensureErr) > 0 {
		err := f.ensureErr[0]
		f.ensureErr = f.ensureErr[1:]
		return err
	}
	return nil
}

func (f *fakePresenter) Show(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, n)
	return f.showErr
}

func testAlert() reminders.Alert {
	return reminders.Alert{
		ID:        "a1",
		Title:     "Reminder",
		Body:      "Time for a break!",
		Sound:     true,
		ToneRef:   "bell.ogg",
		Vibration: reminders.Waveform(reminders.VibrationShort),
	}
}

func TestCenterEnsuresChannelOnce(t *testing.T) {
	p := &fakePresenter{}
	c := NewCenter(p, "", "rereminder://open", nil)

	require.NoError(t, c.Notify(context.Background(), testAlert()))
	require.NoError(t, c.Notify(context.Background(), testAlert()))

	require.Len(t, p.channels, 1)
	assert.Equal(t, ChannelID, p.channels[0].ID)
	assert.Equal(t, ImportanceHigh, p.channels[0].Importance)
	assert.Equal(t, "bell.ogg", p.channels[0].ToneRef)

	require.Len(t, p.shown, 2)
	n := p.shown[0]
	assert.Equal(t, "a1", n.ID)
	assert.Equal(t, ChannelID, n.ChannelID)
	assert.Equal(t, "rereminder://open", n.TapURL)
	assert.True(t, n.AutoClear)
	assert.True(t, n.Sound)
	assert.Len(t, n.Vibration, 2)
}

func TestCenterRetriesChannelSetup(t *testing.T) {
	p := &fakePresenter{ensureErr: []error{platform.ErrResourceUnavailable}}
	c := NewCenter(p, "Breaks", "", nil)

	err := c.Notify(context.Background(), testAlert())
	assert.ErrorIs(t, err, platform.ErrResourceUnavailable)
	assert.Empty(t, p.shown)

	require.NoError(t, c.Notify(context.Background(), testAlert()))
	assert.Len(t, p.channels, 2)
	assert.Len(t, p.shown, 1)
}

func TestCenterShowError(t *testing.T) {
	p := &fakePresenter{showErr: errors.New("display gone")}
	c := NewCenter(p, "", "", nil)

	err := c.Notify(context.Background(), testAlert())
	assert.ErrorContains(t, err, "display gone")
}

func TestCommandPresenter(t *testing.T) {
	runner := platformtest.NewRunner()
	p := NewCommandPresenter(runner, nil)

	require.NoError(t, p.EnsureChannel(context.Background(), Channel{ID: ChannelID}))
	require.NoError(t, p.Show(context.Background(), Notification{
		ID: "n1", Title: "Reminder", Body: "Stretch", Sound: true, AutoClear: true,
	}))

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "notify-send", calls[0].Name)
	assert.Equal(t, []string{
		"--app-name=rereminder", "--urgency=critical", "--expire-time=60000", "Reminder", "Stretch",
	}, calls[0].Args)
}

func TestCommandPresenterMissingBinary(t *testing.T) {
	runner := platformtest.NewRunner()
	runner.Missing["termux-notification"] = true
	p := NewCommandPresenter(runner, TermuxCommand)

	err := p.EnsureChannel(context.Background(), Channel{ID: ChannelID})
	assert.ErrorIs(t, err, platform.ErrResourceUnavailable)
}

func TestCommandPresenterExitError(t *testing.T) {
	runner := platformtest.NewRunner()
	runner.ExitError = errors.New("exit status 1")
	p := NewCommandPresenter(runner, nil)

	err := p.Show(context.Background(), Notification{Title: "x"})
	var cmdErr *platform.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "notify-send", cmdErr.Name)
}

type MockTelegramClient struct {
	mock.Mock
}

func (m *MockTelegramClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *MockTelegramClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*tgbotapi.APIResponse), args.Error(1)
}

func newTestTelegram(tg telegramClient) (*TelegramPresenter, *[]time.Duration) {
	p := newTelegramPresenter(tg, TelegramConfig{ChatID: 42, RatePerMin: 60000, MaxRetries: 2}, nil)
	var slept []time.Duration
	p.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return p, &slept
}

func TestTelegramShow(t *testing.T) {
	tg := new(MockTelegramClient)
	p, _ := newTestTelegram(tg)

	tg.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		if !ok {
			return false
		}
		markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
		return ok &&
			msg.ChatID == 42 &&
			msg.Text == "Reminder\n\nStretch" &&
			msg.DisableNotification &&
			*markup.InlineKeyboard[0][0].URL == "https://example.org/open"
	})).Return(tgbotapi.Message{MessageID: 1}, nil).Once()

	err := p.Show(context.Background(), Notification{Title: "Reminder", Body: "Stretch", Sound: false, TapURL: "https://example.org/open"})

	require.NoError(t, err)
	tg.AssertExpectations(t)
}

func TestTelegramRetriesOnTooManyRequests(t *testing.T) {
	tg := new(MockTelegramClient)
	p, slept := newTestTelegram(tg)

	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 3}}
	tg.On("Send", mock.Anything).Return(tgbotapi.Message{}, limited).Once()
	tg.On("Send", mock.Anything).Return(tgbotapi.Message{MessageID: 7}, nil).Once()

	require.NoError(t, p.Show(context.Background(), Notification{Title: "t", Sound: true}))
	assert.Equal(t, []time.Duration{3 * time.Second}, *slept)
	tg.AssertNumberOfCalls(t, "Send", 2)
}

func TestTelegramGivesUpAfterRetries(t *testing.T) {
	tg := new(MockTelegramClient)
	p, slept := newTestTelegram(tg)

	limited := &tgbotapi.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbotapi.ResponseParameters{RetryAfter: 1}}
	tg.On("Send", mock.Anything).Return(tgbotapi.Message{}, limited)

	err := p.Show(context.Background(), Notification{Title: "t"})
	assert.ErrorIs(t, err, platform.ErrResourceUnavailable)
	assert.Len(t, *slept, 2)
	tg.AssertNumberOfCalls(t, "Send", 3)
}

func TestTelegramForbidden(t *testing.T) {
	tg := new(MockTelegramClient)
	p, slept := newTestTelegram(tg)

	tg.On("Send", mock.Anything).Return(tgbotapi.Message{}, &tgbotapi.Error{Code: 403, Message: "bot was blocked by the user"})

	err := p.Show(context.Background(), Notification{Title: "t"})
	assert.ErrorIs(t, err, platform.ErrPermissionDenied)
	assert.Empty(t, *slept)
	tg.AssertNumberOfCalls(t, "Send", 1)
}

func TestTelegramEnsureChannel(t *testing.T) {
	tg := new(MockTelegramClient)
	p, _ := newTestTelegram(tg)

	tg.On("Request", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		cfg, ok := c.(tgbotapi.ChatInfoConfig)
		return ok && cfg.ChatID == 42
	})).Return(nil, &tgbotapi.Error{Code: 400, Message: "chat not found"}).Once()
	tg.On("Request", mock.Anything).Return(&tgbotapi.APIResponse{Ok: true}, nil).Once()

	err := p.EnsureChannel(context.Background(), Channel{ID: ChannelID})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, platform.ErrPermissionDenied)

	assert.NoError(t, p.EnsureChannel(context.Background(), Channel{ID: ChannelID}))
}

func TestTelegramSendDocument(t *testing.T) {
	tg := new(MockTelegramClient)
	p, _ := newTestTelegram(tg)

	tg.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		doc, ok := c.(tgbotapi.DocumentConfig)
		if !ok {
			return false
		}
		file, ok := doc.File.(tgbotapi.FileReader)
		return ok && doc.ChatID == 42 && doc.Caption == "March" && file.Name == "rereminder_2025-03.xlsx"
	})).Return(tgbotapi.Message{}, nil).Once()

	require.NoError(t, p.SendDocument(context.Background(), "rereminder_2025-03.xlsx", strings.NewReader("xlsx"), "March"))
	tg.AssertExpectations(t)
}
