package notifier

import "context"

// Photo 是一条带图片的通知；Image 为空时按纯文本发送 Caption。
type Photo struct {
	Image    []byte
	Filename string
	Caption  string
}

// Dispatcher 把通知投递到一个或多个会话。
// 单个会话失败只记录日志，返回值聚合全部失败。
type Dispatcher interface {
	Deliver(ctx context.Context, chatIDs []int64, photo Photo) error
	SendText(ctx context.Context, chatIDs []int64, text string) error
}
