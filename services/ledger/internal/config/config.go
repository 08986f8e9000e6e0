package config

import (
	"fmt"

	base "github.com/AfshinJalili/bankflow/libs/config"
)

type GRPCConfig struct {
	Host string
	Port int
}

func (g GRPCConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.Host, g.Port)
}

type Config struct {
	App    base.AppConfig
	DB     base.DBConfig
	GRPC   GRPCConfig
	Kafka  base.KafkaConfig
	Outbox base.OutboxConfig
}

func Load() (*Config, error) {
	path := base.Path()
	appCfg, err := base.Load(path, "ledger-service", 8084)
	if err != nil {
		return nil, err
	}

	v, err := base.Viper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 9094)

	cfg := &Config{
		App: *appCfg,
		DB:  base.LoadDB("bank_ledger"),
		GRPC: GRPCConfig{
			Host: v.GetString("grpc.host"),
			Port: v.GetInt("grpc.port"),
		},
		Kafka:  base.LoadKafka("transaction-service"),
		Outbox: base.LoadOutbox(),
	}

	if cfg.GRPC.Port <= 0 {
		return nil, fmt.Errorf("BANK_GRPC_PORT must be positive")
	}
	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
