package watch

import (
	"fmt"
	"strings"
)

// Mode 决定引擎何时推送通知。
type Mode uint8

const (
	ModeAlways Mode = iota
	ModePeaks
	ModeWait
	ModeWaitDown
	ModeEnter
)

var modeNames = [...]string{
	ModeAlways:   "always",
	ModePeaks:    "peaks",
	ModeWait:     "wait",
	ModeWaitDown: "wait_down",
	ModeEnter:    "enter",
}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

func (m Mode) Valid() bool { return int(m) < len(modeNames) }

// ParseMode 空字符串视为 always；wait-down 与 wait_down 等价。
func ParseMode(raw string) (Mode, error) {
	norm := strings.ToLower(strings.TrimSpace(raw))
	norm = strings.ReplaceAll(norm, "-", "_")
	if norm == "" {
		return ModeAlways, nil
	}
	for i, name := range modeNames {
		if name == norm {
			return Mode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown notification mode %q", raw)
}

// NeedsTarget 表示该模式要求 target price。
func (m Mode) NeedsTarget() bool { return m == ModeWait || m == ModeWaitDown }

// NeedsEntry 表示该模式要求 entry price。
func (m Mode) NeedsEntry() bool { return m == ModeEnter }
