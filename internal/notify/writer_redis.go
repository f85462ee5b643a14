package notify

import (
	"context"
	"encoding/json"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/redis/go-redis/v9"
)

// RedisWriter publishes events on a redis pub/sub channel.
type RedisWriter struct {
	client *redis.Client
}

func NewRedisWriter(client *redis.Client) *RedisWriter {
	return &RedisWriter{client: client}
}

func (w *RedisWriter) Write(ctx context.Context, channel string, e cloudevents.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return w.client.Publish(ctx, channel, data).Err()
}

func (w *RedisWriter) Close(_ context.Context) error {
	return w.client.Close()
}
