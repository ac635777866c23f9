package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	channel string
	payload []byte
	err     error
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	f.channel = channel
	f.payload, _ = message.([]byte)
	return redis.NewIntResult(1, f.err)
}

func (f *fakeRedis) Close() error { return nil }

func TestRedisPublisher_Publish(t *testing.T) {
	fake := &fakeRedis{}
	p := &RedisPublisher{client: fake, channel: "optwatch:test"}

	err := p.Publish(context.Background(), Notification{WatchID: 7, Symbol: "SPXW", Price: "4.25", Chats: []int64{-1001}})
	require.NoError(t, err)
	assert.Equal(t, "optwatch:test", fake.channel)

	var got Notification
	require.NoError(t, json.Unmarshal(fake.payload, &got))
	assert.Equal(t, int64(7), got.WatchID)
	assert.Equal(t, "4.25", got.Price)
	assert.Equal(t, []int64{-1001}, got.Chats)
}

func TestRedisPublisher_Error(t *testing.T) {
	p := &RedisPublisher{client: &fakeRedis{err: errors.New("down")}, channel: "c"}
	assert.EqualError(t, p.Publish(context.Background(), Notification{}), "down")

	var nilPub *RedisPublisher
	assert.Error(t, nilPub.Publish(context.Background(), Notification{}))
}

func TestNewRedisPublisher_EmptyAddr(t *testing.T) {
	_, err := NewRedisPublisher(context.Background(), RedisOptions{})
	assert.Error(t, err)
}
