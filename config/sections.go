package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/utilcast/core/forecast"
	"github.com/kilianp07/utilcast/infra/lock"
)

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `json:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

func (c *ServerConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8000"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	// Computing a month with every model can take a while.
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

func (c ServerConfig) Validate() error {
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// ForecastConfig tunes the orchestrator.
type ForecastConfig struct {
	// Workers bounds the number of buildings scored concurrently.
	Workers int `json:"workers"`
}

func (c *ForecastConfig) SetDefaults() {
	if c.Workers == 0 {
		c.Workers = forecast.DefaultWorkers
	}
}

func (c ForecastConfig) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	}
	return nil
}

const (
	LockMemory = "memory"
	LockRedis  = "redis"
)

// LockConfig selects the per-month claim backend. Redis is required when
// several service instances share one database.
type LockConfig struct {
	Backend string           `json:"backend"`
	Redis   lock.RedisConfig `json:"redis"`
}

func (c *LockConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = LockMemory
	}
	if c.Backend == LockRedis {
		if c.Redis.TTL == 0 {
			c.Redis.TTL = lock.DefaultTTL
		}
		if c.Redis.Poll == 0 {
			c.Redis.Poll = lock.DefaultPoll
		}
	}
}

func (c LockConfig) Validate() error {
	switch c.Backend {
	case LockMemory:
		return nil
	case LockRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown lock backend %s", c.Backend)
	}
}
