package notifier

import (
	"context"

	"optwatch/internal/logger"
	"optwatch/internal/pkg/text"
)

// LogDispatcher 在未配置 Telegram 时使用，只写日志。
type LogDispatcher struct{}

var _ Dispatcher = LogDispatcher{}

func (LogDispatcher) Deliver(_ context.Context, chatIDs []int64, photo Photo) error {
	logger.Infof("notify(dry-run): chats=%v image=%dB caption=%q", chatIDs, len(photo.Image), text.Truncate(photo.Caption, 120))
	return nil
}

func (LogDispatcher) SendText(_ context.Context, chatIDs []int64, msg string) error {
	logger.Infof("notify(dry-run): chats=%v text=%q", chatIDs, text.Truncate(msg, 120))
	return nil
}
