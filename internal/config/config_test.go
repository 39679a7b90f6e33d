package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	cfg, err := Load(filepath.Join(dir, "absent.yaml"), false)
	require.NoError(t, err)

	assert.Equal(t, "en", cfg.Language)
	assert.Equal(t, "sqlite", cfg.Settings.Backend)
	assert.Equal(t, "log", cfg.Notification.Presenter)
	assert.True(t, cfg.Alarm.Exact)
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, "en", cfg.Speech.Language)
	assert.Equal(t, 5*time.Second, cfg.SettingsPollInterval())
	assert.Equal(t, 30*time.Second, cfg.AlarmCheckInterval())
	assert.Equal(t, 90*24*time.Hour, cfg.HistoryRetention())
	assert.DirExists(t, filepath.Join(dir, "data"))
}

func TestLoadRequiredMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), true)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("RR_TOKEN", "123:abc")
	dbPath := filepath.Join(t.TempDir(), "db", "rr.db")
	path := writeConfig(t, `
language: de
settings:
  backend: redis
  poll_interval_seconds: 2
database:
  path: `+dbPath+`
alarm:
  exact: false
notification:
  presenter: telegram
  tap_url: https://example.org/app
telegram:
  bot_token: ${RR_TOKEN}
  chat_id: 99
speech:
  command: [termux-tts-speak, "{text}"]
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)

	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, "de", cfg.Speech.Language)
	assert.Equal(t, "redis", cfg.Settings.Backend)
	assert.Equal(t, 2*time.Second, cfg.SettingsPollInterval())
	assert.False(t, cfg.Alarm.Exact)
	assert.Equal(t, "123:abc", cfg.Telegram.BotToken)
	assert.Equal(t, int64(99), cfg.Telegram.ChatID)
	assert.Equal(t, []string{"termux-tts-speak", "{text}"}, cfg.Speech.Command)
	assert.Equal(t, "rereminder:", cfg.Redis.Prefix)
	assert.DirExists(t, filepath.Dir(dbPath))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad backend", "settings:\n  backend: etcd\n", "settings.backend"},
		{"bad presenter", "notification:\n  presenter: pager\n", "notification.presenter"},
		{"telegram without token", "notification:\n  presenter: telegram\n", "bot_token"},
		{"report without token", "history:\n  monthly_report: true\n", "bot_token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t, t.TempDir())
			_, err := Load(writeConfig(t, tt.body), true)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestResolvePath(t *testing.T) {
	t.Setenv(EnvPath, "")
	path, explicit := ResolvePath("")
	assert.Equal(t, DefaultPath, path)
	assert.False(t, explicit)

	t.Setenv(EnvPath, "/etc/rereminder.yaml")
	path, explicit = ResolvePath("")
	assert.Equal(t, "/etc/rereminder.yaml", path)
	assert.True(t, explicit)

	path, explicit = ResolvePath("local.yaml")
	assert.Equal(t, "local.yaml", path)
	assert.True(t, explicit)
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RR_TEST_FROM_DOTENV=yes\n"), 0o644))
	t.Setenv("RR_TEST_FROM_DOTENV", "")
	os.Unsetenv("RR_TEST_FROM_DOTENV")

	require.NoError(t, LoadEnv(envFile, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "yes", os.Getenv("RR_TEST_FROM_DOTENV"))
}

func TestExampleConfigLoads(t *testing.T) {
	example, err := filepath.Abs(filepath.Join("..", "..", "configs", "config.example.yaml"))
	require.NoError(t, err)
	chdir(t, t.TempDir())

	cfg, err := Load(example, true)
	require.NoError(t, err)
	assert.Equal(t, "command", cfg.Notification.Presenter)
	assert.True(t, cfg.Backup.Enabled)
	assert.Equal(t, 24*time.Hour, cfg.BackupInterval())
	assert.Equal(t, []string{"paplay", "{file}"}, cfg.Sound.Command)
}
