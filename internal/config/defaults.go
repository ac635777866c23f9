package config

import (
	"strings"
)

// 默认值常量
const (
	defaultAppEnv           = "dev"
	defaultAppLogLevel      = "info"
	defaultAppLogFormat     = "text"
	defaultAppHTTPAddr      = ":9991"
	defaultAppEnvFile       = ".env"
	defaultDatabaseDriver   = "sqlite"
	defaultDatabasePath     = "data/optwatch.db"
	defaultPostgresPort     = 5432
	defaultMarketBaseURL    = "https://quotes-gw.webullfintech.com"
	defaultMarketChainPath  = "/api/quote/option/chain/query"
	defaultMarketTimeout    = 10
	defaultBreakerThreshold = 5
	defaultBreakerCooldown  = 60
	defaultMonitorInterval  = 8
	defaultJitterMin        = 1.0
	defaultJitterMax        = 3.0
	defaultFetchTimeout     = 15
	defaultMonitorTimezone  = "America/New_York"
	defaultTelegramRate     = 20
	defaultTelegramBurst    = 5
	defaultTelegramAttempts = 3
	defaultTelegramTimeout  = 30
	defaultTemplatesPath    = "configs/templates.yaml"
	defaultRedisChannel     = "optwatch:notifications"
)

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Database.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Monitor.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
	c.Redis.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.log_format", &a.LogFormat, defaultAppLogFormat),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.env_file", &a.EnvFile, defaultAppEnvFile),
	)
}

func (d *DatabaseConfig) applyDefaults(keys keySet) {
	if d == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("database.driver", &d.Driver, defaultDatabaseDriver),
		stringFieldDefault("database.path", &d.Path, defaultDatabasePath),
		intFieldDefault("database.port", &d.Port, defaultPostgresPort),
	)
	d.Driver = strings.ToLower(strings.TrimSpace(d.Driver))
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.base_url", &m.BaseURL, defaultMarketBaseURL),
		stringFieldDefault("market.chain_path", &m.ChainPath, defaultMarketChainPath),
		intFieldDefault("market.timeout_seconds", &m.TimeoutSeconds, defaultMarketTimeout),
		intFieldDefault("market.breaker_threshold", &m.BreakerThreshold, defaultBreakerThreshold),
		intFieldDefault("market.breaker_cooldown_seconds", &m.BreakerCooldownSeconds, defaultBreakerCooldown),
	)
	m.BaseURL = strings.TrimRight(strings.TrimSpace(m.BaseURL), "/")
}

func (m *MonitorConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		boolFieldDefault("monitor.enabled", &m.Enabled, true),
		boolFieldDefault("monitor.render_images", &m.RenderImages, true),
		intFieldDefault("monitor.interval_seconds", &m.IntervalSeconds, defaultMonitorInterval),
		intFieldDefault("monitor.fetch_timeout_seconds", &m.FetchTimeoutSeconds, defaultFetchTimeout),
		stringFieldDefault("monitor.timezone", &m.Timezone, defaultMonitorTimezone),
		fieldDefault{
			key:   "monitor.jitter_min_seconds",
			need:  func() bool { return m.JitterMinSeconds <= 0 },
			apply: func() { m.JitterMinSeconds = defaultJitterMin },
		},
		fieldDefault{
			key:   "monitor.jitter_max_seconds",
			need:  func() bool { return m.JitterMaxSeconds <= 0 },
			apply: func() { m.JitterMaxSeconds = defaultJitterMax },
		},
	)
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	t := &n.Telegram
	applyFieldDefaults(keys,
		stringFieldDefault("notify.templates_path", &n.TemplatesPath, defaultTemplatesPath),
		intFieldDefault("notify.telegram.burst", &t.Burst, defaultTelegramBurst),
		intFieldDefault("notify.telegram.max_attempts", &t.MaxAttempts, defaultTelegramAttempts),
		intFieldDefault("notify.telegram.timeout_seconds", &t.TimeoutSeconds, defaultTelegramTimeout),
		fieldDefault{
			key:   "notify.telegram.rate_per_second",
			need:  func() bool { return t.RatePerSecond <= 0 },
			apply: func() { t.RatePerSecond = defaultTelegramRate },
		},
	)
}

func (r *RedisConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("redis.channel", &r.Channel, defaultRedisChannel),
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

// boolFieldDefault 仅在配置文件未出现该键时生效。
func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
