// ABOUTME: Constructs a Store for a configured driver name
// ABOUTME: Supported drivers are memory, sqlite, bolt and redis

package docstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverRedis  = "redis"
)

// Options selects and configures a backend.
type Options struct {
	Driver string
	Path   string // sqlite and bolt

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	KeyPrefix     string
}

// Open creates the store described by opts. Redis connectivity is checked
// before returning.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(opts.Path)
	case DriverBolt:
		return NewBoltStore(opts.Path)
	case DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", opts.RedisAddr, err)
		}
		return NewRedisStore(client, opts.KeyPrefix), nil
	default:
		return nil, fmt.Errorf("unknown docstore driver %q", opts.Driver)
	}
}
