// Package redis carries cache invalidations between processes over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/xingh/glue"
)

// DefaultChannel is used when Options.Channel is empty.
const DefaultChannel = "glue:invalidate"

// Bus implements glue.InvalidationBus on a Redis channel. Messages published by a Bus
// are ignored by its own subscriptions.
// The counters field tracks operation statistics for monitoring (thread-safe).
type Bus struct {
	redisClient       *redis.Client
	channel           string
	origin            string
	createdInternally bool
	logger            *slog.Logger

	mu       sync.Mutex
	counters map[string]int
	subs     []*redis.PubSub
}

var (
	_ glue.InvalidationBus = (*Bus)(nil)
	_ io.Closer            = (*Bus)(nil)
)

// Options holds configuration for the Redis bus.
type Options struct {
	Addr     string
	Password string
	DB       int
	Channel  string
	Logger   *slog.Logger
}

// message is the payload published for each invalidated table.
type message struct {
	Origin string `json:"origin"`
	Table  string `json:"table"`
}

// NewBus creates an invalidation bus. If redisCli is not nil it is used directly and
// left open by Close; otherwise a client is created from opts and pinged.
func NewBus(redisCli *redis.Client, opts *Options) (*Bus, error) {
	if opts == nil {
		opts = &Options{}
	}
	b := &Bus{
		channel:  opts.Channel,
		origin:   uuid.NewString(),
		logger:   opts.Logger,
		counters: make(map[string]int),
	}
	if b.channel == "" {
		b.channel = DefaultChannel
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}

	if redisCli != nil {
		b.redisClient = redisCli
	} else {
		b.redisClient = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		b.createdInternally = true

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.redisClient.Ping(ctx).Err(); err != nil {
			b.redisClient.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
	}

	b.logger.Info("redis invalidation bus initialized", "channel", b.channel, "origin", b.origin)
	return b, nil
}

func (b *Bus) incrementCounter(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.counters[name]++
}

// Stats returns a copy of the operation counters ("Publish", "Receive", "Ignored", ...).
func (b *Bus) Stats() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]int, len(b.counters))
	for k, v := range b.counters {
		out[k] = v
	}
	return out
}

// Channel returns the Redis channel name.
func (b *Bus) Channel() string {
	return b.channel
}

// Publish announces that rows of table changed.
func (b *Bus) Publish(ctx context.Context, table string) error {
	payload, err := json.Marshal(message{Origin: b.origin, Table: table})
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}
	if err := b.redisClient.Publish(ctx, b.channel, payload).Err(); err != nil {
		b.incrementCounter("PublishError")
		return fmt.Errorf("redis publish to %s: %w", b.channel, err)
	}
	b.incrementCounter("Publish")
	return nil
}

// Subscribe calls fn for every table announced by other buses on the channel until ctx
// is done or the bus is closed. It returns once Redis confirmed the subscription.
func (b *Bus) Subscribe(ctx context.Context, fn func(table string)) error {
	sub := b.redisClient.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("redis subscribe to %s: %w", b.channel, err)
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				b.handle(msg.Payload, fn)
			}
		}
	}()
	return nil
}

func (b *Bus) handle(payload string, fn func(table string)) {
	var m message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		b.incrementCounter("Malformed")
		b.logger.Warn("ignoring malformed invalidation", "payload", payload, "error", err)
		return
	}
	if m.Origin == b.origin {
		b.incrementCounter("Ignored")
		return
	}
	b.incrementCounter("Receive")
	b.logger.Debug("invalidation received", "table", m.Table, "origin", m.Origin)
	fn(m.Table)
}

// Close ends every subscription. The Redis client is closed only when the bus
// created it.
func (b *Bus) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()
	for _, s := range subs {
		_ = s.Close()
	}
	if b.createdInternally && b.redisClient != nil {
		return b.redisClient.Close()
	}
	return nil
}
