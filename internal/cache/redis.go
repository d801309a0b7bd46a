package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis wraps the shared redis client so callers never construct their own.
type Redis struct {
	client *redis.Client
}

// Options carries the connection settings for the redis instance.
type Options struct {
	Addr     string
	Password string
	DB       int
	TLS      bool
}

// New connects to redis and verifies the connection with a ping.
func New(ctx context.Context, opts Options) (*Redis, error) {
	ropts := &redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
	if opts.TLS {
		ropts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(ropts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// Client exposes the underlying redis client.
func (r *Redis) Client() *redis.Client {
	return r.client
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}
