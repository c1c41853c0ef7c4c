package notify

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

const DefaultRedisChannel = "arcreview:notifications"

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisDispatcher publishes events as JSON on a pub/sub channel that the
// email/SMS collaborator subscribes to.
type RedisDispatcher struct {
	client  publisher
	closer  func() error
	channel string
}

// NewRedisDispatcher connects using a redis:// URL.
func NewRedisDispatcher(url, channel string) (*RedisDispatcher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	return newRedisDispatcher(client, client.Close, channel), nil
}

func newRedisDispatcher(client publisher, closer func() error, channel string) *RedisDispatcher {
	if channel == "" {
		channel = DefaultRedisChannel
	}
	if closer == nil {
		closer = func() error { return nil }
	}
	return &RedisDispatcher{client: client, closer: closer, channel: channel}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if err := d.client.Publish(ctx, d.channel, b).Err(); err != nil {
		return errors.Wrapf(err, "publish %s", ev.Type)
	}
	return nil
}

func (d *RedisDispatcher) Close() error {
	return d.closer()
}
