package cache

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Service is the shared Redis connection behind the relay's wallet.
type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	redisPoolSize = getEnvAsInt("REDIS_POOL_SIZE", 100)
	cacheInstance *service

	log = logrus.WithField("component", "cache")
)

// Options builds client options from the environment. REDIS_URL is either a
// host:port pair or a redis:// URL; explicit password and db settings win
// over the URL.
func Options() (*redis.Options, error) {
	opts := &redis.Options{Addr: redisAddr}
	if strings.Contains(redisAddr, "://") {
		parsed, err := redis.ParseURL(redisAddr)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts = parsed
	}
	if redisPassword != "" {
		opts.Password = redisPassword
	}
	if redisDB != 0 {
		opts.DB = redisDB
	}

	opts.PoolSize = redisPoolSize
	opts.MinIdleConns = 10
	opts.MaxRetries = 3
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	return opts, nil
}

// Dial connects and pings once.
func Dial(ctx context.Context, opts *redis.Options) (Service, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", opts.Addr, err)
	}
	return &service{client: client}, nil
}

// New connects to Redis once and reuses the connection afterwards. It returns
// nil when Redis cannot be reached.
func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	opts, err := Options()
	if err != nil {
		log.WithError(err).Warn("invalid redis settings")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	svc, err := Dial(ctx, opts)
	if err != nil {
		log.WithError(err).Warn("redis connection failed")
		return nil
	}
	log.WithFields(logrus.Fields{"addr": opts.Addr, "db": opts.DB}).Info("redis connected")

	cacheInstance = svc.(*service)
	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := map[string]string{"backend": "redis", "addr": s.client.Options().Addr}

	if err := s.client.Ping(ctx).Err(); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}
	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	pool := s.client.PoolStats()
	for name, v := range map[string]uint32{
		"hits":        pool.Hits,
		"misses":      pool.Misses,
		"timeouts":    pool.Timeouts,
		"total_conns": pool.TotalConns,
		"idle_conns":  pool.IdleConns,
		"stale_conns": pool.StaleConns,
	} {
		stats[name] = strconv.FormatUint(uint64(v), 10)
	}
	return stats
}

func (s *service) Close() error {
	log.Info("disconnecting from redis")
	if cacheInstance == s {
		cacheInstance = nil
	}
	return s.client.Close()
}

// Open returns a Redis-backed store, or an in-memory one when Redis is down.
// The Service is nil in the fallback case.
func Open() (Store, Service) {
	if svc := New(); svc != nil {
		return NewRedisStore(svc.GetClient()), svc
	}
	log.Warn("running with in-memory store")
	return NewMemoryStore(), nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
