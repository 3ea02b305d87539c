package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/kilianp07/utilcast/core/logger"
)

const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

const (
	DefaultTTL  = 2 * time.Minute
	DefaultPoll = 100 * time.Millisecond
)

// Redis claims keys with SET NX so several replicas share one claim per month.
type Redis struct {
	client redis.UniversalClient
	script *redis.Script
	prefix string
	ttl    time.Duration
	poll   time.Duration
	log    logger.Logger
}

// RedisConfig configures a Redis lock.
type RedisConfig struct {
	Addr     string        `json:"addr"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	Prefix   string        `json:"prefix"`
	TTL      time.Duration `json:"ttl"`
	Poll     time.Duration `json:"poll"`
}

// NewRedis returns a lock using client. Zero TTL and Poll take defaults.
func NewRedis(client redis.UniversalClient, cfg RedisConfig, log logger.Logger) (*Redis, error) {
	if client == nil {
		return nil, errors.New("lock client not configured")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Poll <= 0 {
		cfg.Poll = DefaultPoll
	}
	return &Redis{
		client: client,
		script: redis.NewScript(releaseScript),
		prefix: cfg.Prefix,
		ttl:    cfg.TTL,
		poll:   cfg.Poll,
		log:    log,
	}, nil
}

// DialRedis connects to cfg.Addr and returns a lock using that connection.
func DialRedis(ctx context.Context, cfg RedisConfig, log logger.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return NewRedis(client, cfg, log)
}

// TryLock attempts a single claim of key and returns its token.
func (l *Redis) TryLock(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

// Release frees key if token still owns it.
func (l *Redis) Release(ctx context.Context, key, token string) error {
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}

// Lock polls until key is claimed or ctx is done.
func (l *Redis) Lock(ctx context.Context, key string) (func(), error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		token, ok, err := l.TryLock(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := l.Release(rctx, key, token); err != nil {
					l.log.Warnf("release lock %s: %v", key, err)
				}
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close closes the underlying client.
func (l *Redis) Close() error { return l.client.Close() }
