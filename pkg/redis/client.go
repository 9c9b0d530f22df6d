package redis

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client Redis客户端包装器
type Client struct {
	rdb *redis.Client
}

// NewClient 创建新的Redis客户端
func NewClient(addr string, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	client := &Client{
		rdb: rdb,
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx); err != nil {
		rdb.Close()
		return nil, err
	}

	return client, nil
}

// Ping 测试连接
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Set 设置键值对（永久有效）
func (c *Client) Set(ctx context.Context, key string, value interface{}) error {
	return c.rdb.Set(ctx, key, value, 0).Err()
}

// SetWithExpiration 设置键值对（带过期时间）
func (c *Client) SetWithExpiration(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.rdb.Set(ctx, key, value, expiration).Err()
}

// Get 获取值，键不存在时返回空串和 nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	result := c.rdb.Get(ctx, key)
	if result.Err() == redis.Nil {
		return "", nil
	}
	return result.Result()
}

// Del 删除键
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.rdb.Del(ctx, keys...).Result()
}

// Publish 向频道发布消息
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe 订阅频道，在 ctx 结束前把收到的消息依次交给 handler。
// 订阅确认之后才返回，之后发布的消息不会丢失。
func (c *Client) Subscribe(ctx context.Context, channel string, handler func(payload string)) error {
	pubsub := c.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return err
	}

	go func() {
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case msg, ok := <-ch:
				if !ok {
					return
				}
				handler(msg.Payload)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// Close 关闭客户端连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
