package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	base "github.com/AfshinJalili/bankflow/libs/config"
)

const (
	SMSProviderMock    = "mock"
	SMSProviderGateway = "gateway"
)

// MailConfig selects SendGrid when APIKey is set and the log notifier otherwise.
type MailConfig struct {
	APIKey   string
	Host     string
	From     string
	FromName string
}

func (m MailConfig) Enabled() bool { return m.APIKey != "" }

type SMSConfig struct {
	Provider   string
	GatewayURL string
	APIKey     string
	Sender     string
	Timeout    time.Duration
	Retries    int
}

type Config struct {
	App   base.AppConfig
	DB    base.DBConfig
	Kafka base.KafkaConfig
	Mail  MailConfig
	SMS   SMSConfig
}

func Load() (*Config, error) {
	appCfg, err := base.Load(base.Path(), "notification-service", 8085)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		App:   *appCfg,
		DB:    base.LoadDB("bank_notifications"),
		Kafka: base.LoadKafka("notification-service"),
		Mail: MailConfig{
			APIKey:   base.EnvString("SENDGRID_API_KEY", ""),
			Host:     base.EnvString("SENDGRID_HOST", "https://api.sendgrid.com"),
			From:     base.EnvString("MAIL_FROM", "noreply@bank.com"),
			FromName: base.EnvString("MAIL_FROM_NAME", "The Banking Team"),
		},
		SMS: SMSConfig{
			Provider:   strings.ToLower(base.EnvString("SMS_PROVIDER", SMSProviderMock)),
			GatewayURL: base.EnvString("SMS_GATEWAY_URL", ""),
			APIKey:     base.EnvString("SMS_API_KEY", ""),
			Sender:     base.EnvString("SMS_SENDER", "BANK"),
			Timeout:    base.EnvDuration("SMS_TIMEOUT", 5*time.Second),
			Retries:    base.EnvInt("SMS_RETRIES", 3),
		},
	}

	if err := cfg.Kafka.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.SMS.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (s SMSConfig) validate() error {
	switch s.Provider {
	case SMSProviderMock:
		return nil
	case SMSProviderGateway:
		if s.GatewayURL == "" {
			return fmt.Errorf("SMS_GATEWAY_URL is required when SMS_PROVIDER=gateway")
		}
		u, err := url.Parse(s.GatewayURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid SMS_GATEWAY_URL %q", s.GatewayURL)
		}
		if s.Retries < 0 {
			return fmt.Errorf("SMS_RETRIES must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("unknown SMS_PROVIDER %q", s.Provider)
	}
}
