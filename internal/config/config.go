package config

import (
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr        string        `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr        string        `envconfig:"GRPC_ADDR" default:":50051"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"5s"`

	MySQLDSN             string        `envconfig:"MYSQL_DSN" default:"root:root@tcp(localhost:3306)/restaurant?parseTime=true"`
	MySQLMaxOpenConns    int           `envconfig:"MYSQL_MAX_OPEN_CONNS" default:"50"`
	MySQLMaxIdleConns    int           `envconfig:"MYSQL_MAX_IDLE_CONNS" default:"25"`
	MySQLConnMaxLifetime time.Duration `envconfig:"MYSQL_CONN_MAX_LIFETIME" default:"5m"`

	// RedisAddr empty keeps locking and idempotency inside the process.
	RedisAddr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPoolSize  int           `envconfig:"REDIS_POOL_SIZE" default:"100"`
	LockTTL        time.Duration `envconfig:"LOCK_TTL" default:"10s"`
	LockWait       time.Duration `envconfig:"LOCK_WAIT" default:"3s"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`

	KafkaBrokers   []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic     string   `envconfig:"KAFKA_TOPIC" default:"order-events"`
	KafkaWorkers   int      `envconfig:"KAFKA_WORKERS" default:"4"`
	KafkaQueueSize int      `envconfig:"KAFKA_QUEUE_SIZE" default:"10000"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.LockWait <= 0 || c.LockTTL <= 0 {
		return errors.New("LOCK_TTL and LOCK_WAIT must be positive")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("IDEMPOTENCY_TTL must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("SHUTDOWN_TIMEOUT must be positive")
	}
	if c.MySQLMaxOpenConns <= 0 || c.RedisPoolSize <= 0 {
		return errors.New("MYSQL_MAX_OPEN_CONNS and REDIS_POOL_SIZE must be positive")
	}
	if c.KafkaWorkers <= 0 || c.KafkaQueueSize <= 0 {
		return errors.New("KAFKA_WORKERS and KAFKA_QUEUE_SIZE must be positive")
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.Errorf("unknown LOG_FORMAT %q", c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "LOG_LEVEL")
	}
	return nil
}

// KafkaEnabled reports whether any broker is configured.
func (c *Config) KafkaEnabled() bool {
	for _, b := range c.KafkaBrokers {
		if strings.TrimSpace(b) != "" {
			return true
		}
	}
	return false
}

// NewLogger builds the process logger from the log settings.
func (c *Config) NewLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	if c.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}
