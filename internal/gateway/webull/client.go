// Package webull 实现期权链行情拉取。
package webull

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"optwatch/internal/config"
	"optwatch/internal/logger"
	"optwatch/internal/market"
	"optwatch/internal/pkg/circuit"
	"optwatch/internal/pkg/symbol"
	"optwatch/internal/pkg/text"
)

const maxBodyBytes = 8 << 20

// Client 拉取单个 (symbol, expiration) 的完整期权链。
type Client struct {
	baseURL     *url.URL
	chainPath   string
	accessToken string
	deviceID    string
	httpClient  *http.Client
	breaker     *circuit.Breaker
}

var _ market.Gateway = (*Client)(nil)

func NewClient(cfg config.MarketConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, fmt.Errorf("market.base_url 不能为空")
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("解析 market.base_url 失败: %w", err)
	}
	timeout := cfg.Timeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:     parsed,
		chainPath:   strings.TrimSpace(cfg.ChainPath),
		accessToken: strings.TrimSpace(cfg.AccessToken),
		deviceID:    strings.TrimSpace(cfg.DeviceID),
		httpClient:  &http.Client{Timeout: timeout},
		breaker:     circuit.New("webull", cfg.BreakerThreshold, cfg.BreakerCooldown()),
	}, nil
}

// SetHTTPClient sets the HTTP client for testing.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// FetchChain 返回整条期权链；指数包装代码在请求前映射为母指数。
func (c *Client) FetchChain(ctx context.Context, sym, expiration string) (market.Chain, error) {
	if c == nil {
		return nil, fmt.Errorf("webull client 未初始化")
	}
	ticker := symbol.Canonical(sym)
	if ticker == "" {
		return nil, fmt.Errorf("symbol 为空")
	}
	var chain market.Chain
	err := c.breaker.Do(func() error {
		body, err := c.get(ctx, ticker, expiration)
		if err != nil {
			return err
		}
		chain, err = parseChain(body)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch chain %s %s: %w", ticker, expiration, err)
	}
	logger.Debugf("webull: %s %s -> %d contracts", ticker, expiration, len(chain))
	return chain, nil
}

func (c *Client) get(ctx context.Context, ticker, expiration string) ([]byte, error) {
	endpoint := c.baseURL.JoinPath(c.chainPath)
	q := endpoint.Query()
	q.Set("tickerSymbol", ticker)
	q.Set("expireDate", expiration)
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("构造请求失败: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.accessToken != "" {
		req.Header.Set("access_token", c.accessToken)
	}
	if c.deviceID != "" {
		req.Header.Set("did", c.deviceID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 webull 失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if len(data) == 0 {
			return nil, fmt.Errorf("webull 返回错误: %s", resp.Status)
		}
		return nil, fmt.Errorf("webull 返回错误(%s): %s", resp.Status, text.Truncate(strings.TrimSpace(string(data)), 256))
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
}
