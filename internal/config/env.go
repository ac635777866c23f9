package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"optwatch/internal/logger"
)

// loadDotEnv 加载 .env；文件不存在不算错误，已存在的环境变量不会被覆盖。
func loadDotEnv(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading env file %s failed: %w", path, err)
	}
	return nil
}

type lookupFunc func(key string) (string, bool)

// applyEnvOverrides 让部署时的密钥与连接参数覆盖 yaml。
func applyEnvOverrides(c *Config, lookup lookupFunc) {
	if c == nil || lookup == nil {
		return
	}
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("TELEGRAM_BOT_TOKEN"); ok {
		c.Notify.Telegram.BotToken = v
		c.Notify.Telegram.Enabled = true
	}
	if v, ok := get("TELEGRAM_GROUP_ID"); ok {
		ids, err := parseChatIDs(v)
		if err != nil {
			logger.Warnf("config: ignore TELEGRAM_GROUP_ID: %v", err)
		} else {
			c.Notify.Telegram.BroadcastChatIDs = ids
		}
	}
	if v, ok := get("ADMIN_USER_ID"); ok {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Notify.Telegram.AdminUserID = id
		} else {
			logger.Warnf("config: ignore ADMIN_USER_ID=%q: %v", v, err)
		}
	}
	if v, ok := get("WEBULL_ACCESS_TOKEN"); ok {
		c.Market.AccessToken = v
	}
	if v, ok := get("WEBULL_DEVICE_ID"); ok {
		c.Market.DeviceID = v
	}

	if v, ok := get("POSTGRES_HOST"); ok {
		c.Database.Driver = "postgres"
		c.Database.Host = v
	}
	if v, ok := get("POSTGRES_PORT"); ok {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v, ok := get("POSTGRES_DB"); ok {
		c.Database.Name = v
	}
	if v, ok := get("POSTGRES_USER"); ok {
		c.Database.User = v
	}
	if v, ok := get("POSTGRES_PASSWORD"); ok {
		c.Database.Password = v
	}

	if v, ok := get("REDIS_ADDR"); ok {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v, ok := get("REDIS_PASSWORD"); ok {
		c.Redis.Password = v
	}
}

// parseChatIDs 解析逗号分隔的会话 id 列表。
func parseChatIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
