package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoad_DefaultsAndIncludes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
monitor:
  interval_seconds: 8
  render_images: false
database:
  path: base.db
`)
	main := writeFile(t, dir, "config.yaml", `
include: base.yaml
app:
  env_file: missing.env
database:
  path: override.db
notify:
  telegram:
    broadcast_chat_ids: ["-1001", "-1002"]
`)

	cfg, err := Load(main)
	require.NoError(t, err)

	assert.Equal(t, "override.db", cfg.Database.Path)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 8*time.Second, cfg.Monitor.Interval())
	assert.Equal(t, 15*time.Second, cfg.Monitor.FetchTimeout())
	lo, hi := cfg.Monitor.JitterRange()
	assert.Equal(t, time.Second, lo)
	assert.Equal(t, 3*time.Second, hi)
	assert.True(t, cfg.Monitor.Enabled)
	assert.False(t, cfg.Monitor.RenderImages)
	assert.Equal(t, []int64{-1001, -1002}, cfg.Notify.Telegram.BroadcastChatIDs)
	assert.Equal(t, 3, cfg.Notify.Telegram.MaxAttempts)
	assert.Equal(t, defaultRedisChannel, cfg.Redis.Channel)
}

func TestLoad_IncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "include: b.yaml\n")
	writeFile(t, dir, "b.yaml", "include: a.yaml\n")
	_, err := Load(filepath.Join(dir, "a.yaml"))
	assert.ErrorContains(t, err, "include cycle")
}

func TestLoad_ValidationFailure(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", `
app:
  env_file: ""
monitor:
  jitter_min_seconds: 5
  jitter_max_seconds: 2
`)
	_, err := Load(p)
	assert.ErrorContains(t, err, "jitter")
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{
		"TELEGRAM_BOT_TOKEN":  "123:abc",
		"TELEGRAM_GROUP_ID":   "-100123, -100456",
		"ADMIN_USER_ID":       "42",
		"WEBULL_ACCESS_TOKEN": "tok",
		"POSTGRES_HOST":       "db",
		"POSTGRES_PORT":       "6543",
		"POSTGRES_DB":         "opts",
		"POSTGRES_USER":       "bot",
		"POSTGRES_PASSWORD":   "secret",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	var cfg Config
	cfg.applyDefaults(keySet{})
	applyEnvOverrides(&cfg, lookup)

	assert.True(t, cfg.Notify.Telegram.Enabled)
	assert.Equal(t, "123:abc", cfg.Notify.Telegram.BotToken)
	assert.Equal(t, []int64{-100123, -100456}, cfg.Notify.Telegram.BroadcastChatIDs)
	assert.Equal(t, int64(42), cfg.Notify.Telegram.AdminUserID)
	assert.Equal(t, "tok", cfg.Market.AccessToken)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.Equal(t, "opts", cfg.Database.Name)
	require.NoError(t, validate(&cfg))
}

func TestParseChatIDs(t *testing.T) {
	ids, err := parseChatIDs("1,,2 ")
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)
	_, err = parseChatIDs("1,x")
	assert.Error(t, err)
}
