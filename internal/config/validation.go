package config

import (
	"fmt"
	"strings"
	"time"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Database.validate(); err != nil {
		return err
	}
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := c.Monitor.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Redis.validate(); err != nil {
		return err
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	switch d.Driver {
	case "sqlite":
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("database.path cannot be empty for sqlite")
		}
	case "postgres":
		if strings.TrimSpace(d.Host) == "" || strings.TrimSpace(d.Name) == "" {
			return fmt.Errorf("database.host and database.name are required for postgres")
		}
		if d.Port <= 0 || d.Port > 65535 {
			return fmt.Errorf("database.port out of range: %d", d.Port)
		}
	default:
		return fmt.Errorf("database.driver must be sqlite or postgres, got %q", d.Driver)
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if !strings.HasPrefix(m.BaseURL, "http://") && !strings.HasPrefix(m.BaseURL, "https://") {
		return fmt.Errorf("market.base_url must be an http(s) url")
	}
	if m.BreakerThreshold <= 0 {
		return fmt.Errorf("market.breaker_threshold must be > 0")
	}
	return nil
}

func (m *MonitorConfig) validate() error {
	if m.IntervalSeconds <= 0 {
		return fmt.Errorf("monitor.interval_seconds must be > 0")
	}
	if m.JitterMinSeconds < 0 || m.JitterMaxSeconds < m.JitterMinSeconds {
		return fmt.Errorf("monitor jitter range invalid: [%.2f, %.2f]", m.JitterMinSeconds, m.JitterMaxSeconds)
	}
	if m.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("monitor.fetch_timeout_seconds must be > 0")
	}
	if _, err := time.LoadLocation(strings.TrimSpace(m.Timezone)); err != nil {
		return fmt.Errorf("monitor.timezone invalid: %w", err)
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	t := n.Telegram
	if t.Enabled && strings.TrimSpace(t.BotToken) == "" {
		return fmt.Errorf("telegram notification enabled but missing bot_token")
	}
	if t.MaxAttempts <= 0 {
		return fmt.Errorf("notify.telegram.max_attempts must be > 0")
	}
	return nil
}

func (r *RedisConfig) validate() error {
	if r.Enabled && strings.TrimSpace(r.Addr) == "" {
		return fmt.Errorf("redis enabled but missing addr")
	}
	return nil
}
