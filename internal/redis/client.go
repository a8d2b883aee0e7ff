package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces every key this server writes.
const KeyPrefix = "pairing"

type Client struct {
	*redis.Client
}

// NewClient parses redisURL and verifies the server answers PING.
func NewClient(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Key joins parts under KeyPrefix, e.g. Key("ratelimit", "approve", ip).
func Key(parts ...string) string {
	return KeyPrefix + ":" + strings.Join(parts, ":")
}
