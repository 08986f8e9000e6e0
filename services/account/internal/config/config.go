package config

import (
	base "github.com/AfshinJalili/bankflow/libs/config"
)

type Config struct {
	App       base.AppConfig
	DB        base.DBConfig
	Kafka     base.KafkaConfig
	Outbox    base.OutboxConfig
	JWTSecret []byte
}

func Load() (*Config, error) {
	appCfg, err := base.Load(base.Path(), "account-service", 8083)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:    *appCfg,
		DB:     base.LoadDB("bank_accounts"),
		Kafka:  base.LoadKafka("account-service"),
		Outbox: base.LoadOutbox(),
	}

	secret, err := base.LoadJWTSecret(cfg.App.Env)
	if err != nil {
		return nil, err
	}
	cfg.JWTSecret = secret

	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
