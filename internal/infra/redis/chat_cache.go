package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"counseling-platform/internal/domain/model"
)

// ChatCache keeps a short-lived JSON snapshot of chat rows so the read path
// (GET chat, websocket access checks) does not hit Postgres on every call.
// Writers refresh the entry after each update; a stale entry expires on TTL.
type ChatCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewChatCache(client RedisClient, ttl time.Duration) *ChatCache {
	return &ChatCache{
		client: client,
		ttl:    ttl,
	}
}

func chatKey(id int64) string { return fmt.Sprintf("chat:%d", id) }

func (c *ChatCache) StoreChat(ctx context.Context, chat *model.Chat) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, chatKey(chat.ID), data, c.ttl)
}

func (c *ChatCache) GetChat(ctx context.Context, id int64) (*model.Chat, error) {
	data, err := c.client.Get(ctx, chatKey(id))
	if err != nil {
		return nil, err
	}

	var chat model.Chat
	if err := json.Unmarshal([]byte(data), &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *ChatCache) DeleteChat(ctx context.Context, id int64) error {
	return c.client.Del(ctx, chatKey(id))
}
