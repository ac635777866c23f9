// Package events 将已触发的通知广播给外部订阅方。
package events

import (
	"context"
	"time"
)

// Notification 是一次已触发通知的摘要。
type Notification struct {
	TraceID     string    `json:"trace_id"`
	WatchID     int64     `json:"watch_id"`
	OwnerChatID int64     `json:"owner_chat_id"`
	Symbol      string    `json:"symbol"`
	Strike      string    `json:"strike"`
	Kind        string    `json:"kind"`
	Expiration  string    `json:"expiration"`
	Mode        string    `json:"mode"`
	Caption     string    `json:"caption"`
	Price       string    `json:"price"`
	Peak        string    `json:"peak"`
	Chats       []int64   `json:"chats"`
	FiredAt     time.Time `json:"fired_at"`
}

type Publisher interface {
	Publish(ctx context.Context, n Notification) error
}

// Nop 丢弃所有事件。
type Nop struct{}

func (Nop) Publish(context.Context, Notification) error { return nil }
