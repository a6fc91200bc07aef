// Package papertrail is the root of the compliance-oriented event
// aggregation engine: it wires the Redis client collaborator shared by
// every storage-backed sketch.
package papertrail

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

var once sync.Once
var redisClient *redis.Client

// RedisConnOptions configures the single shared Redis client. The engine
// treats Redis as an external collaborator (spec §6); connection loading
// from environment/files is the adapter's concern, not this module's — this
// struct is the narrow surface the adapter populates.
type RedisConnOptions struct {
	DB                int
	Network           string
	Address           string
	Username          string
	Password          string
	ConnectionTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	PoolSize          int
	TLSConfig         *tls.Config
}

// GetRedisClient returns the process-wide Redis client. Callers must have
// called MakeRedisClient first.
func GetRedisClient() *redis.Client {
	return redisClient
}

// MakeRedisClient initializes the process-wide Redis client exactly once.
func MakeRedisClient(options RedisConnOptions) {
	once.Do(func() {
		redisClient = redis.NewClient(&redis.Options{
			DB:           options.DB,
			Network:      options.Network,
			Addr:         options.Address,
			Username:     options.Username,
			Password:     options.Password,
			DialTimeout:  options.ConnectionTimeout,
			ReadTimeout:  options.ReadTimeout,
			WriteTimeout: options.WriteTimeout,
			PoolSize:     options.PoolSize,
			TLSConfig:    options.TLSConfig,
		})
	})
}

// ResetRedisClientForTest allows test suites to rebind the client against a
// fresh miniredis instance between runs, bypassing the sync.Once guard.
func ResetRedisClientForTest(options RedisConnOptions) {
	once = sync.Once{}
	redisClient = nil
	MakeRedisClient(options)
}

// ParseRedisURI parses a redis:// or rediss:// URI into RedisConnOptions.
func ParseRedisURI(uri string) (*RedisConnOptions, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("papertrail: could not parse redis uri: %v", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("papertrail: unsupported uri scheme %q", u.Scheme)
	}
	options, err := redis.ParseURL(uri)
	if err != nil {
		return nil, fmt.Errorf("papertrail: error while parsing redis uri: %v", err)
	}
	return &RedisConnOptions{
		DB:                options.DB,
		Network:           options.Network,
		Address:           options.Addr,
		Username:          options.Username,
		Password:          options.Password,
		ConnectionTimeout: options.DialTimeout,
		ReadTimeout:       options.ReadTimeout,
		WriteTimeout:      options.WriteTimeout,
		PoolSize:          options.PoolSize,
		TLSConfig:         options.TLSConfig,
	}, nil
}
