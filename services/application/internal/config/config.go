package config

import (
	"fmt"
	"time"

	base "github.com/AfshinJalili/bankflow/libs/config"
)

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

type Config struct {
	App       base.AppConfig
	DB        base.DBConfig
	Kafka     base.KafkaConfig
	Outbox    base.OutboxConfig
	Redis     base.RedisConfig
	RateLimit RateLimitConfig
	JWTSecret []byte
}

func Load() (*Config, error) {
	path := base.Path()
	appCfg, err := base.Load(path, "application-service", 8081)
	if err != nil {
		return nil, err
	}

	v, err := base.Viper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("rate_limit.requests", 20)
	v.SetDefault("rate_limit.window", "1m")

	cfg := &Config{
		App:    *appCfg,
		DB:     base.LoadDB("bank_applications"),
		Kafka:  base.LoadKafka("application-service"),
		Outbox: base.LoadOutbox(),
		Redis:  base.LoadRedis("bank:applications:rl:"),
		RateLimit: RateLimitConfig{
			Requests: base.EnvInt("RATE_LIMIT_REQUESTS", v.GetInt("rate_limit.requests")),
			Window:   base.EnvDuration("RATE_LIMIT_WINDOW", v.GetDuration("rate_limit.window")),
		},
	}

	secret, err := base.LoadJWTSecret(cfg.App.Env)
	if err != nil {
		return nil, err
	}
	cfg.JWTSecret = secret

	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		return nil, fmt.Errorf("rate limit requests and window must be positive")
	}
	return cfg, nil
}
