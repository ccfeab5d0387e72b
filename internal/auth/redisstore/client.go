// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthCore Contributors

package redisstore

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"
)

// Connect creates a client from a redis:// URL or a host:port address and
// verifies it with PING.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, oops.Code("REDIS_ADDR_MISSING").Errorf("redis address is required")
	}

	opts := &redis.Options{Addr: addr, Password: password, DB: db}
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, oops.Code("REDIS_ADDR_INVALID").Wrap(err)
		}
		opts = parsed
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, oops.Code("REDIS_CONNECT_FAILED").
			With("addr", opts.Addr).
			Wrap(err)
	}
	return client, nil
}
