// Package cluster fans room events out to every server node through Redis pub/sub.
package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/netchat-server/internal/core"
)

// RedisRouter implements core.Router by publishing each event on a per-room
// channel. Every node subscribes to all room channels and hands received
// events to its local hub, including the node that published them.
type RedisRouter struct {
	client *redis.Client
	prefix string
	local  *core.Hub
	log    *zerolog.Logger
}

var _ core.Router = (*RedisRouter)(nil)

// NewRedisRouter creates a router publishing under prefix and delivering to local.
func NewRedisRouter(client *redis.Client, prefix string, local *core.Hub, logger *zerolog.Logger) *RedisRouter {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &RedisRouter{
		client: client,
		prefix: prefix,
		local:  local,
		log:    logger,
	}
}

// Broadcast publishes event to every node serving room.
func (r *RedisRouter) Broadcast(ctx context.Context, room string, event *core.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := r.client.Publish(ctx, r.channel(room), data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", room, err)
	}
	return nil
}

// Start subscribes to every room channel and delivers received events to the
// local hub until ctx is done. It returns once the subscription is confirmed.
func (r *RedisRouter) Start(ctx context.Context) error {
	pattern := r.pattern()
	sub := r.client.PSubscribe(ctx, pattern)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", pattern, err)
	}

	go r.consume(ctx, sub)
	return nil
}

func (r *RedisRouter) consume(ctx context.Context, sub *redis.PubSub) {
	defer sub.Close()

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			room, event, err := r.decode(msg.Channel, msg.Payload)
			if err != nil {
				r.log.Warn().Err(err).Str("channel", msg.Channel).Msg("drop cluster event")
				continue
			}
			_ = r.local.Broadcast(ctx, room, event)
		}
	}
}

// Ping checks the Redis connection. Run calls it before Start so a bad
// redis_addr fails startup instead of the first broadcast.
func (r *RedisRouter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the Redis client.
func (r *RedisRouter) Close() error {
	return r.client.Close()
}

func (r *RedisRouter) channel(room string) string {
	return r.prefix + room
}

// globEscaper quotes the characters Redis treats as pattern syntax.
var globEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

// pattern matches every room channel under the literal prefix.
func (r *RedisRouter) pattern() string {
	return globEscaper.Replace(r.prefix) + "*"
}

var errForeignChannel = errors.New("channel outside prefix")

func (r *RedisRouter) decode(channel, payload string) (string, *core.Event, error) {
	room, ok := strings.CutPrefix(channel, r.prefix)
	if !ok || room == "" {
		return "", nil, fmt.Errorf("%w: %q", errForeignChannel, channel)
	}

	var event core.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	event.Room = room
	return room, &event, nil
}
