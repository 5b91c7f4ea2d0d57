// Package broadcast relays accepted bids between api instances over Redis
// pub/sub so observers connected anywhere hear about every bid.
package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Message is one payload received on a channel
type Message struct {
	Channel string
	Payload []byte
}

// Subscription streams messages until closed
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Bus is the pub/sub surface the broadcaster needs.
// In production this is RedisBus; tests use an in-memory fake.
type Bus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	PSubscribe(ctx context.Context, pattern string) (Subscription, error)
}

// RedisBus implements Bus with go-redis
type RedisBus struct {
	client *redis.Client
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus wraps client
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

// Publish sends payload to every subscriber of channel
func (b *RedisBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := b.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

// PSubscribe subscribes to pattern and waits for Redis to confirm
func (b *RedisBus) PSubscribe(ctx context.Context, pattern string) (Subscription, error) {
	ps := b.client.PSubscribe(ctx, pattern)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", pattern, err)
	}

	sub := &redisSubscription{
		ps:   ps,
		out:  make(chan Message, 256),
		done: make(chan struct{}),
	}
	go sub.forward()
	return sub, nil
}

type redisSubscription struct {
	ps   *redis.PubSub
	out  chan Message
	done chan struct{}
}

func (s *redisSubscription) forward() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		select {
		case s.out <- Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.out }

func (s *redisSubscription) Close() error {
	close(s.done)
	return s.ps.Close()
}
