package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"

	BrokerLog      = "log"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

var (
	ErrUnknownDriver = errors.New("config: unknown STORAGE_DRIVER")
	ErrUnknownBroker = errors.New("config: unknown BROKER")
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env              string
	HTTPAddr         string
	StorageDriver    string
	MongoURI         string
	MongoDB          string
	PostgresDSN      string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	Broker           string
	KafkaBrokers     []string
	KafkaTopicPrefix string
	PaymentsTopic    string
	KafkaGroupID     string
	RabbitMQURL      string

	IdempotencyTTL     time.Duration
	OutboxPollInterval time.Duration
	RetryBackoff       []time.Duration
	TxRetryAttempts    int
	TxRetryBaseDelay   time.Duration
	MaxRangeDays       int
	ResourceFixtures   string
}

// Load reads an optional .env file and parses configuration from the
// environment. Variables already set take precedence over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv parses configuration from the current environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StorageDriver:    strings.ToLower(getEnv("STORAGE_DRIVER", DriverMemory)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "staybook"),
		PostgresDSN:      os.Getenv("POSTGRES_DSN"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),
		Broker:           strings.ToLower(getEnv("BROKER", BrokerLog)),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		PaymentsTopic:    getEnv("KAFKA_PAYMENTS_TOPIC", "payments.events.v1"),
		KafkaGroupID:     getEnv("KAFKA_GROUP_ID", "staybook-reservations"),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		ResourceFixtures: os.Getenv("RESOURCE_FIXTURES"),
	}
	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.RedisDB, err = parseIntEnv("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.TxRetryAttempts, err = parseIntEnv("TX_RETRY_ATTEMPTS", 4); err != nil {
		return Config{}, err
	}
	if cfg.TxRetryBaseDelay, err = parseDurationEnv("TX_RETRY_BASE_DELAY", 20*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.MaxRangeDays, err = parseIntEnv("MAX_RANGE_DAYS", 366); err != nil {
		return Config{}, err
	}

	retryStr := getEnv("RETRY_BACKOFF", "1s,5s,30s")
	for _, raw := range strings.Split(retryStr, ",") {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		d, err := time.ParseDuration(val)
		if err != nil {
			return Config{}, fmt.Errorf("invalid RETRY_BACKOFF component %q: %w", raw, err)
		}
		cfg.RetryBackoff = append(cfg.RetryBackoff, d)
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case DriverMemory:
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	case DriverPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDriver, c.StorageDriver)
	}
	switch c.Broker {
	case BrokerLog:
	case BrokerKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required for BROKER=%s", c.Broker)
		}
	case BrokerRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required for BROKER=%s", c.Broker)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBroker, c.Broker)
	}
	if c.MaxRangeDays < 1 {
		return fmt.Errorf("MAX_RANGE_DAYS must be positive, got %d", c.MaxRangeDays)
	}
	if c.TxRetryAttempts < 1 {
		return fmt.Errorf("TX_RETRY_ATTEMPTS must be positive, got %d", c.TxRetryAttempts)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}
