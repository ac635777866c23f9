package config

import (
	"strings"
	"time"
	_ "time/tzdata"
)

// Config 是 optwatch 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app"`
	Database DatabaseConfig `toml:"database"`
	Market   MarketConfig   `toml:"market"`
	Monitor  MonitorConfig  `toml:"monitor"`
	Notify   NotifyConfig   `toml:"notify"`
	Redis    RedisConfig    `toml:"redis"`
}

type AppConfig struct {
	Env       string `toml:"env"`
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	LogPath   string `toml:"log_path"`
	HTTPAddr  string `toml:"http_addr"`
	EnvFile   string `toml:"env_file"`
}

// DatabaseConfig 选择存储驱动：sqlite（默认）或 postgres。
type DatabaseConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Name     string `toml:"name"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"sslmode"`
	MaxConns int    `toml:"max_conns"`
}

// MarketConfig 描述期权链行情接口。
type MarketConfig struct {
	BaseURL                string `toml:"base_url"`
	ChainPath              string `toml:"chain_path"`
	AccessToken            string `toml:"access_token"`
	DeviceID               string `toml:"device_id"`
	TimeoutSeconds         int    `toml:"timeout_seconds"`
	BreakerThreshold       int    `toml:"breaker_threshold"`
	BreakerCooldownSeconds int    `toml:"breaker_cooldown_seconds"`
}

func (m MarketConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

func (m MarketConfig) BreakerCooldown() time.Duration {
	return time.Duration(m.BreakerCooldownSeconds) * time.Second
}

// MonitorConfig 控制轮询节奏。
type MonitorConfig struct {
	Enabled             bool    `toml:"enabled"`
	IntervalSeconds     int     `toml:"interval_seconds"`
	JitterMinSeconds    float64 `toml:"jitter_min_seconds"`
	JitterMaxSeconds    float64 `toml:"jitter_max_seconds"`
	FetchTimeoutSeconds int     `toml:"fetch_timeout_seconds"`
	Timezone            string  `toml:"timezone"`
	RenderImages        bool    `toml:"render_images"`
}

func (m MonitorConfig) Interval() time.Duration {
	return time.Duration(m.IntervalSeconds) * time.Second
}

func (m MonitorConfig) FetchTimeout() time.Duration {
	return time.Duration(m.FetchTimeoutSeconds) * time.Second
}

func (m MonitorConfig) JitterRange() (time.Duration, time.Duration) {
	return seconds(m.JitterMinSeconds), seconds(m.JitterMaxSeconds)
}

// Location 时区非法时回退到 UTC（validate 已提前拦截）。
func (m MonitorConfig) Location() *time.Location {
	loc, err := time.LoadLocation(strings.TrimSpace(m.Timezone))
	if err != nil {
		return time.UTC
	}
	return loc
}

type NotifyConfig struct {
	Telegram      TelegramConfig `toml:"telegram"`
	TemplatesPath string         `toml:"templates_path"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	// BroadcastChatIDs 为空时回退到监控命令的所属会话。
	BroadcastChatIDs []int64 `toml:"broadcast_chat_ids"`
	AdminUserID      int64   `toml:"admin_user_id"`
	ServerURL        string  `toml:"server_url"`
	RatePerSecond    float64 `toml:"rate_per_second"`
	Burst            int     `toml:"burst"`
	MaxAttempts      int     `toml:"max_attempts"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
}

func (t TelegramConfig) Timeout() time.Duration {
	return time.Duration(t.TimeoutSeconds) * time.Second
}

// RedisConfig 开启后，每次触发的通知会以 JSON 发布到 Channel。
type RedisConfig struct {
	Enabled  bool   `toml:"enabled"`
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
