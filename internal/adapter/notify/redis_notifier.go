package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/opencirc/circulation/internal/port"
)

const defaultChannel = "circulation.receipts"

// RedisNotifier publishes receipts to a Redis pub/sub channel.
// Delivery is best-effort: the caller logs and ignores errors, and the
// business operation that produced the receipt has already committed.
type RedisNotifier struct {
	client  *redis.Client
	channel string
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, channel: defaultChannel}
}

func (n *RedisNotifier) Publish(ctx context.Context, r port.Receipt) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal receipt: %w", err)
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish receipt: %w", err)
	}
	return nil
}

// NopNotifier drops every receipt. Used when no dispatcher is
// configured.
type NopNotifier struct{}

func (NopNotifier) Publish(context.Context, port.Receipt) error { return nil }
