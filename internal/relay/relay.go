// Package relay fans persisted chat messages out to every server instance
// through a Redis pub/sub channel.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/PaulBabatuyi/socialchat/internal/data"
)

// Relay publishes and receives chat messages on one Redis channel.
type Relay struct {
	client  *redis.Client
	channel string
	log     logrus.FieldLogger
}

// New parses redisURL (e.g. "redis://localhost:6379/0"), connects and pings
// the server.
func New(redisURL, channel string, log logrus.FieldLogger) (*Relay, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL cannot be empty")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Relay{client: client, channel: channel, log: log}, nil
}

// Encode and Decode define the payload carried on the channel.
func Encode(m *data.Message) (string, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode message: %w", err)
	}
	return string(b), nil
}

func Decode(payload string) (*data.Message, error) {
	var m data.Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	return &m, nil
}

// Publish sends m to every subscribed instance, including this one.
func (r *Relay) Publish(ctx context.Context, m *data.Message) error {
	payload, err := Encode(m)
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

// Subscribe calls fn for every message received until ctx is cancelled.
// It returns once the subscription is confirmed; delivery runs in the
// background.
func (r *Relay) Subscribe(ctx context.Context, fn func(*data.Message)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

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
				m, err := Decode(msg.Payload)
				if err != nil {
					r.log.WithError(err).Warn("dropping malformed relay payload")
					continue
				}
				fn(m)
			}
		}
	}()
	return nil
}

// Close releases the Redis connection pool.
func (r *Relay) Close() error {
	return r.client.Close()
}
