package config

import (
	"fmt"
	"net/url"
	"time"

	base "github.com/AfshinJalili/bankflow/libs/config"
	"github.com/AfshinJalili/bankflow/services/customer/internal/branch"
)

type BranchConfig struct {
	Candidates   []string
	DirectoryURL string
	Timeout      time.Duration
	Retries      int
	CacheTTL     time.Duration
}

type Config struct {
	App       base.AppConfig
	DB        base.DBConfig
	Kafka     base.KafkaConfig
	Outbox    base.OutboxConfig
	Redis     base.RedisConfig
	Branch    BranchConfig
	JWTSecret []byte
}

func Load() (*Config, error) {
	path := base.Path()
	appCfg, err := base.Load(path, "customer-service", 8082)
	if err != nil {
		return nil, err
	}

	v, err := base.Viper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("branch.timeout", "2s")
	v.SetDefault("branch.retries", 2)
	v.SetDefault("branch.cache_ttl", "5m")

	cfg := &Config{
		App:    *appCfg,
		DB:     base.LoadDB("bank_customers"),
		Kafka:  base.LoadKafka("customer-service"),
		Outbox: base.LoadOutbox(),
		Redis:  base.LoadRedis("bank:branch:"),
		Branch: BranchConfig{
			Candidates:   base.EnvCSV("BRANCH_CANDIDATES", v.GetStringSlice("branch.candidates")),
			DirectoryURL: base.EnvString("BRANCH_DIRECTORY_URL", v.GetString("branch.directory_url")),
			Timeout:      base.EnvDuration("BRANCH_TIMEOUT", v.GetDuration("branch.timeout")),
			Retries:      base.EnvInt("BRANCH_RETRIES", v.GetInt("branch.retries")),
			CacheTTL:     base.EnvDuration("BRANCH_CACHE_TTL", v.GetDuration("branch.cache_ttl")),
		},
	}
	if len(cfg.Branch.Candidates) == 0 {
		cfg.Branch.Candidates = append([]string(nil), branch.DefaultCandidates...)
	}

	secret, err := base.LoadJWTSecret(cfg.App.Env)
	if err != nil {
		return nil, err
	}
	cfg.JWTSecret = secret

	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Branch.validate(cfg.App.Env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (b BranchConfig) validate(env string) error {
	for _, code := range b.Candidates {
		if !branch.ValidCode(code) {
			return fmt.Errorf("BRANCH_CANDIDATES: invalid branch code %q", code)
		}
	}
	if b.DirectoryURL == "" {
		if env == "dev" || env == "test" {
			return nil
		}
		return fmt.Errorf("BRANCH_DIRECTORY_URL is required")
	}
	if u, err := url.Parse(b.DirectoryURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("BRANCH_DIRECTORY_URL must be an absolute URL")
	}
	if b.Timeout <= 0 || b.Retries < 0 || b.CacheTTL <= 0 {
		return fmt.Errorf("branch timeout and cache ttl must be positive")
	}
	return nil
}
