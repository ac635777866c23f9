package app

import (
	"fmt"
	"sort"
	"strings"

	"optwatch/internal/caption"
	"optwatch/internal/config"
)

type StartupSummary struct {
	Store     StoreSummary
	Monitor   MonitorSummary
	Notify    NotifySummary
	HTTPAddr  string
	Redis     string
	Templates TemplateSummary
}

type StoreSummary struct {
	Driver string
	Target string
}

type MonitorSummary struct {
	Enabled      bool
	Interval     string
	Jitter       string
	FetchTimeout string
	Timezone     string
	RenderImages bool
}

type NotifySummary struct {
	Telegram   bool
	Broadcasts []int64
}

type TemplateSummary struct {
	Source string
	Names  []string
}

func newStartupSummary(cfg *config.Config, snap caption.Snapshot) *StartupSummary {
	s := &StartupSummary{HTTPAddr: cfg.App.HTTPAddr, Redis: "-"}
	s.Store.Driver = cfg.Database.Driver
	if strings.EqualFold(cfg.Database.Driver, "postgres") {
		s.Store.Target = fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)
	} else {
		s.Store.Target = cfg.Database.Path
	}
	jMin, jMax := cfg.Monitor.JitterRange()
	s.Monitor = MonitorSummary{
		Enabled:      cfg.Monitor.Enabled,
		Interval:     cfg.Monitor.Interval().String(),
		Jitter:       fmt.Sprintf("%s ~ %s", jMin, jMax),
		FetchTimeout: cfg.Monitor.FetchTimeout().String(),
		Timezone:     cfg.Monitor.Timezone,
		RenderImages: cfg.Monitor.RenderImages,
	}
	s.Notify = NotifySummary{
		Telegram:   cfg.Notify.Telegram.Enabled,
		Broadcasts: cfg.Notify.Telegram.BroadcastChatIDs,
	}
	if cfg.Redis.Enabled {
		s.Redis = fmt.Sprintf("%s (channel=%s)", cfg.Redis.Addr, cfg.Redis.Channel)
	}
	s.Templates.Source = snap.Source
	for name := range snap.Templates {
		s.Templates.Names = append(s.Templates.Names, string(name))
	}
	sort.Strings(s.Templates.Names)
	return s
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[存储 (STORE)]")
	fmt.Printf("  驱动: %s\n", s.Store.Driver)
	fmt.Printf("  目标: %s\n", s.Store.Target)
	fmt.Println()

	fmt.Println("[监控循环 (MONITOR)]")
	fmt.Printf("  启用: %t\n", s.Monitor.Enabled)
	fmt.Printf("  间隔: %s\n", s.Monitor.Interval)
	fmt.Printf("  抖动: %s\n", s.Monitor.Jitter)
	fmt.Printf("  拉取超时: %s\n", s.Monitor.FetchTimeout)
	fmt.Printf("  时区: %s\n", s.Monitor.Timezone)
	fmt.Printf("  渲染图片: %t\n", s.Monitor.RenderImages)
	fmt.Println()

	fmt.Println("[通知 (NOTIFY)]")
	fmt.Printf("  Telegram: %t\n", s.Notify.Telegram)
	if len(s.Notify.Broadcasts) == 0 {
		fmt.Println("  广播会话: (无，回退到命令所属会话)")
	} else {
		ids := make([]string, 0, len(s.Notify.Broadcasts))
		for _, id := range s.Notify.Broadcasts {
			ids = append(ids, fmt.Sprint(id))
		}
		fmt.Printf("  广播会话: %s\n", formatList(ids))
	}
	fmt.Printf("  Redis 事件: %s\n", s.Redis)
	fmt.Printf("  模板来源: %s\n", s.Templates.Source)
	fmt.Printf("  模板: %s\n", formatList(s.Templates.Names))
	fmt.Println()

	addr := s.HTTPAddr
	if addr == "" {
		addr = "(关闭)"
	}
	fmt.Printf("[管理接口 (ADMIN API)] %s\n", addr)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
