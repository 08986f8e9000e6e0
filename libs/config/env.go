package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type DBConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string
}

func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Name,
		c.SSLMode,
	)
}

// LoadDB reads POSTGRES_* with a per-service default database name.
func LoadDB(defaultName string) DBConfig {
	return DBConfig{
		Host:     EnvString("POSTGRES_HOST", "localhost"),
		Port:     EnvInt("POSTGRES_PORT", 5432),
		Name:     EnvString("POSTGRES_DB", defaultName),
		User:     EnvString("POSTGRES_USER", "bank"),
		Password: EnvString("POSTGRES_PASSWORD", "bank"),
		SSLMode:  EnvString("POSTGRES_SSLMODE", "disable"),
	}
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	DeadLetter    string
	MaxAttempts   int
	RetryBackoff  time.Duration
}

func LoadKafka(defaultGroup string) KafkaConfig {
	return KafkaConfig{
		Brokers:       EnvCSV("KAFKA_BROKERS", []string{"localhost:9092"}),
		ConsumerGroup: EnvString("KAFKA_CONSUMER_GROUP", defaultGroup),
		DeadLetter:    EnvString("KAFKA_DLQ_TOPIC", "banking-dead-letter"),
		MaxAttempts:   EnvInt("KAFKA_MAX_ATTEMPTS", 5),
		RetryBackoff:  EnvDuration("KAFKA_RETRY_BACKOFF", 500*time.Millisecond),
	}
}

func (k KafkaConfig) Validate() error {
	if len(k.Brokers) == 0 {
		return fmt.Errorf("kafka brokers required")
	}
	if k.ConsumerGroup == "" {
		return fmt.Errorf("kafka consumer group required")
	}
	if k.MaxAttempts <= 0 {
		return fmt.Errorf("KAFKA_MAX_ATTEMPTS must be positive")
	}
	return nil
}

type OutboxConfig struct {
	Schedule  string
	BatchSize int
}

func LoadOutbox() OutboxConfig {
	return OutboxConfig{
		Schedule:  EnvString("OUTBOX_SCHEDULE", "@every 1s"),
		BatchSize: EnvInt("OUTBOX_BATCH_SIZE", 100),
	}
}

// RedisConfig is optional: an empty Addr disables the Redis-backed components.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

func LoadRedis(defaultPrefix string) RedisConfig {
	return RedisConfig{
		Addr:     EnvString("REDIS_ADDR", ""),
		Password: EnvString("REDIS_PASSWORD", ""),
		DB:       EnvInt("REDIS_DB", 0),
		Prefix:   EnvString("REDIS_PREFIX", defaultPrefix),
	}
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

func EnvString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func EnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func EnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func EnvCSV(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return def
}

// LoadJWTSecret reads JWT_SECRET, which only dev and test may omit.
func LoadJWTSecret(env string) ([]byte, error) {
	secret := EnvString("JWT_SECRET", "")
	if secret == "" {
		if env == "dev" || env == "test" {
			return []byte("dev-secret"), nil
		}
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	return []byte(secret), nil
}
