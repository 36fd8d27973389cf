package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Events   EventsConfig   `yaml:"events"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address        string   `yaml:"address"`
	SwaggerDir     string   `yaml:"swagger_dir"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Mode           string   `yaml:"mode"`
	// RequestTimeoutSeconds bounds each request; a cancelled request rolls back its transaction.
	RequestTimeoutSeconds int `yaml:"request_timeout_seconds"`
}

func (h HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(h.RequestTimeoutSeconds) * time.Second
}

type GRPCConfig struct {
	Address    string `yaml:"address"`
	Reflection bool   `yaml:"reflection"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// StorageConfig selects the seat store. "memory" keeps everything in process and
// is meant for local runs only.
type StorageConfig struct {
	Driver string `yaml:"driver"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	InvoicesTopic      string   `yaml:"invoices_topic"`
	GroupID            string   `yaml:"group_id"`
}

type RabbitMQConfig struct {
	URL string `yaml:"url"`
}

// EventsConfig picks the broker the outbox relay publishes to.
type EventsConfig struct {
	Transport string `yaml:"transport"`
}

type BookingConfig struct {
	FlightsCacheTTL       int `yaml:"flights_cache_ttl_seconds"`
	SeatMapCacheTTL       int `yaml:"seat_map_cache_ttl_seconds"`
	CompensationRetries   int `yaml:"compensation_retries"`
	CompensationBackoffMS int `yaml:"compensation_backoff_ms"`
}

func (b BookingConfig) FlightsCacheDuration() time.Duration {
	return time.Duration(b.FlightsCacheTTL) * time.Second
}

func (b BookingConfig) SeatMapCacheDuration() time.Duration {
	return time.Duration(b.SeatMapCacheTTL) * time.Second
}

func (b BookingConfig) CompensationBackoff() time.Duration {
	return time.Duration(b.CompensationBackoffMS) * time.Millisecond
}

type WorkerConfig struct {
	OutboxPollSeconds    int    `yaml:"outbox_poll_seconds"`
	OutboxBatchSize      int    `yaml:"outbox_batch_size"`
	OutboxMaxAttempts    int    `yaml:"outbox_max_attempts"`
	OutboxLeaseSeconds   int    `yaml:"outbox_lease_seconds"`
	OutboxMaxBackoffSec  int    `yaml:"outbox_max_backoff_seconds"`
	AuditIntervalMinutes int    `yaml:"audit_interval_minutes"`
	InvoiceDir           string `yaml:"invoice_dir"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"`
	AdminRole string `yaml:"admin_role"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LoadConfig reads the YAML file at path. Values of the form ${VAR} are expanded
// from the environment, which is first populated from an optional .env file.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.RequestTimeoutSeconds == 0 {
		c.HTTP.RequestTimeoutSeconds = 10
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "postgres"
	}
	if c.Events.Transport == "" {
		c.Events.Transport = "kafka"
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.SeatMapCacheTTL == 0 {
		c.Booking.SeatMapCacheTTL = 5
	}
	if c.Booking.CompensationRetries == 0 {
		c.Booking.CompensationRetries = 5
	}
	if c.Booking.CompensationBackoffMS == 0 {
		c.Booking.CompensationBackoffMS = 200
	}
	if c.Worker.OutboxPollSeconds == 0 {
		c.Worker.OutboxPollSeconds = 2
	}
	if c.Worker.OutboxBatchSize == 0 {
		c.Worker.OutboxBatchSize = 100
	}
	if c.Worker.OutboxMaxAttempts == 0 {
		c.Worker.OutboxMaxAttempts = 10
	}
	if c.Worker.OutboxLeaseSeconds == 0 {
		c.Worker.OutboxLeaseSeconds = 30
	}
	if c.Worker.OutboxMaxBackoffSec == 0 {
		c.Worker.OutboxMaxBackoffSec = 300
	}
	if c.Worker.AuditIntervalMinutes == 0 {
		c.Worker.AuditIntervalMinutes = 15
	}
	if c.Auth.AdminRole == "" {
		c.Auth.AdminRole = "admin"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Events.Transport {
	case "kafka":
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka transport requires at least one broker")
		}
	case "rabbitmq":
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq transport requires rabbitmq.url")
		}
	default:
		return fmt.Errorf("unknown events transport %q", c.Events.Transport)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret is required")
	}
	if c.Booking.CompensationRetries < 0 {
		return errors.New("booking.compensation_retries must not be negative")
	}
	return nil
}
