// Package redis provides the merge intent locks shared by clover instances
package redis

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/redis/go-redis/v9"
)

const (
	clientName  = "clover"
	dialTimeout = 5 * time.Second
)

type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
}

func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Client is a go-redis client plus the logger used by locks
type Client struct {
	rdb    redis.UniversalClient
	logger ectologger.Logger
}

// NewClient connects and pings; an unreachable server is an error so startup can retry
func NewClient(ctx context.Context, cfg Config, logger ectologger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		ClientName:  clientName,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis %s unreachable: %w", cfg.Addr(), err)
	}

	logger.WithContext(ctx).WithFields(map[string]any{"addr": cfg.Addr(), "db": cfg.DB}).Info("Connected to redis")
	return NewClientFromRedis(rdb, logger), nil
}

func NewClientFromRedis(rdb redis.UniversalClient, logger ectologger.Logger) *Client {
	return &Client{rdb: rdb, logger: logger}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping reports reachability for health checks
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}
