// Package kv provisions the shared Redis client used for all counter,
// throttle, and one-time-code state.
//
// The client is constructed explicitly by the composition root and injected
// into every consumer. Connect dials and verifies the connection exactly
// once; later calls reuse the same handle. Nothing in this module reaches
// for a package-level connection.
//
// # What this package must NOT do
//
//   - Hold domain logic (key schemas live with their owning packages).
//   - Reconnect silently; a dead backend surfaces as an error to the caller.
package kv

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Options selects the Redis backend.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Client is a connect-once handle around a Redis client.
type Client struct {
	opts Options

	mu  sync.Mutex
	rdb *redis.Client
}

// New creates an unconnected Client. No I/O happens until Connect.
func New(opts Options) *Client {
	return &Client{opts: opts}
}

// Connect dials Redis on first use and verifies the connection with a ping.
// Subsequent calls return the already-established client.
func (c *Client) Connect(ctx context.Context) (redis.UniversalClient, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb != nil {
		return c.rdb, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     c.opts.Addr,
		Password: c.opts.Password,
		DB:       c.opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis connect %s: %w", c.opts.Addr, err)
	}

	c.rdb = rdb
	return c.rdb, nil
}

// Get returns the established client, or nil before Connect has succeeded.
func (c *Client) Get() redis.UniversalClient {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rdb
}

// Close releases the underlying connection. Safe to call before Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rdb == nil {
		return nil
	}
	err := c.rdb.Close()
	c.rdb = nil
	return err
}
