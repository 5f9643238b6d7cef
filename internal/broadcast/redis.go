package broadcast

import (
	"context"
	"encoding/json"

	"github.com/go-redis/redis/v8"
)

// RedisPublisher publishes changes on the channel changes.<table>.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func RedisChannel(table string) string {
	return "changes." + table
}

func (p *RedisPublisher) Publish(ctx context.Context, c Change) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, RedisChannel(c.Table), data).Err()
}
