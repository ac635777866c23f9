package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"optwatch/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// botAPI 是 *bot.Bot 中被用到的子集，便于测试替换。
type botAPI interface {
	SendPhoto(ctx context.Context, params *bot.SendPhotoParams) (*models.Message, error)
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type TelegramOptions struct {
	BotToken      string
	ServerURL     string
	RatePerSecond float64
	Burst         int
	MaxAttempts   int
	Timeout       time.Duration
}

// Telegram 通过 Bot API 推送图片与文本，出站限流，单条消息失败按指数退避重试。
type Telegram struct {
	api         botAPI
	limiter     *rate.Limiter
	maxAttempts int
	newBackOff  func() backoff.BackOff
}

var _ Dispatcher = (*Telegram)(nil)

func NewTelegram(opts TelegramOptions) (*Telegram, error) {
	token := strings.TrimSpace(opts.BotToken)
	if token == "" {
		return nil, fmt.Errorf("Telegram 配置不完整: bot token 为空")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	botOpts := []bot.Option{
		bot.WithSkipGetMe(),
		bot.WithHTTPClient(timeout, &http.Client{Timeout: timeout}),
	}
	if url := strings.TrimSpace(opts.ServerURL); url != "" {
		botOpts = append(botOpts, bot.WithServerURL(url))
	}
	b, err := bot.New(token, botOpts...)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return newTelegram(b, opts), nil
}

func newTelegram(api botAPI, opts TelegramOptions) *Telegram {
	limit := rate.Limit(opts.RatePerSecond)
	if opts.RatePerSecond <= 0 {
		limit = rate.Inf
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	return &Telegram{
		api:         api,
		limiter:     rate.NewLimiter(limit, burst),
		maxAttempts: attempts,
		newBackOff: func() backoff.BackOff {
			eb := backoff.NewExponentialBackOff()
			eb.InitialInterval = time.Second
			eb.MaxInterval = 5 * time.Second
			return eb
		},
	}
}

// Deliver 向每个会话发送图片 + Markdown 说明。
func (t *Telegram) Deliver(ctx context.Context, chatIDs []int64, photo Photo) error {
	if len(photo.Image) == 0 {
		return t.SendText(ctx, chatIDs, photo.Caption)
	}
	filename := photo.Filename
	if filename == "" {
		filename = "status.png"
	}
	return t.each(ctx, chatIDs, "photo", func(ctx context.Context, chatID int64) error {
		_, err := t.api.SendPhoto(ctx, &bot.SendPhotoParams{
			ChatID:    chatID,
			Photo:     &models.InputFileUpload{Filename: filename, Data: bytes.NewReader(photo.Image)},
			Caption:   photo.Caption,
			ParseMode: models.ParseModeMarkdownV1,
		})
		return err
	})
}

func (t *Telegram) SendText(ctx context.Context, chatIDs []int64, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return t.each(ctx, chatIDs, "text", func(ctx context.Context, chatID int64) error {
		_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      text,
			ParseMode: models.ParseModeMarkdownV1,
		})
		return err
	})
}

func (t *Telegram) each(ctx context.Context, chatIDs []int64, kind string, send func(context.Context, int64) error) error {
	var errs []error
	for _, chatID := range chatIDs {
		if err := t.sendWithRetry(ctx, chatID, send); err != nil {
			logger.Errorf("telegram: send %s to %d failed: %v", kind, chatID, err)
			errs = append(errs, fmt.Errorf("chat %d: %w", chatID, err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telegram) sendWithRetry(ctx context.Context, chatID int64, send func(context.Context, int64) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := t.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		err := send(ctx, chatID)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return backoff.Permanent(err)
		}
		logger.Debugf("telegram: chat=%d attempt=%d/%d failed: %v", chatID, attempt, t.maxAttempts, err)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(t.newBackOff(), uint64(t.maxAttempts-1)), ctx)
	return backoff.Retry(op, policy)
}

// isPermanent 这些错误重试也不会成功。
func isPermanent(err error) bool {
	return errors.Is(err, bot.ErrorForbidden) ||
		errors.Is(err, bot.ErrorBadRequest) ||
		errors.Is(err, bot.ErrorUnauthorized) ||
		errors.Is(err, bot.ErrorNotFound) ||
		errors.Is(err, context.Canceled)
}
