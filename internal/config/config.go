package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	QuoteTTLS     int    `env:"QUOTE_TTL_S" envDefault:"300"`
	QuoteRounding string `env:"QUOTE_ROUNDING" envDefault:"floor"`
	FXCacheTTLS   int    `env:"FX_CACHE_TTL_S" envDefault:"30"`

	DispatcherWorkers     int `env:"DISPATCHER_WORKERS" envDefault:"10"`
	DispatcherBatchSize   int `env:"DISPATCHER_BATCH_SIZE" envDefault:"100"`
	DispatcherBusySleepMS int `env:"DISPATCHER_BUSY_SLEEP_MS" envDefault:"200"`
	DispatcherIdleSleepMS int `env:"DISPATCHER_IDLE_SLEEP_MS" envDefault:"2000"`

	ProviderTimeoutMS int `env:"PROVIDER_TIMEOUT_MS" envDefault:"15000"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) QuoteTTL() time.Duration {
	return time.Duration(c.QuoteTTLS) * time.Second
}

func (c *Config) FXCacheTTL() time.Duration {
	return time.Duration(c.FXCacheTTLS) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutMS) * time.Millisecond
}

func (c *Config) DispatcherBusySleep() time.Duration {
	return time.Duration(c.DispatcherBusySleepMS) * time.Millisecond
}

func (c *Config) DispatcherIdleSleep() time.Duration {
	return time.Duration(c.DispatcherIdleSleepMS) * time.Millisecond
}
