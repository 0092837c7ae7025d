// internal/pkg/redis/client.go
package redis

import (
	"context"
	"github.com/ecom2122/ecom/internal/pkg/bootstrap"
	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"
	"time"
)

// NewClient 根据地址个数创建单机或集群客户端，并在返回前做一次 PING
func NewClient(ctx context.Context, cfg bootstrap.RedisConfig) (goredis.UniversalClient, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("redis: no address configured")
	}
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:        cfg.Addrs,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "failed to connect to redis %v", cfg.Addrs)
	}
	return client, nil
}
