package config

import (
	"fmt"
	"net/url"
	"time"

	pkgconfig "github.com/wreckyard/checkout/pkg/config"
)

// Config holds all configuration for the checkout service.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	// HTTP server
	HTTPPort int `env:"CHECKOUT_HTTP_PORT" envDefault:"8004"`

	// Redis (cart storage)
	RedisAddr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD" envDefault:""`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	CartTTLHours  int    `env:"CART_TTL_HOURS" envDefault:"168"`

	// PostgreSQL (follow-up ledger)
	PostgresHost string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser string `env:"POSTGRES_USER" envDefault:"wreckyard"`
	PostgresPass string `env:"POSTGRES_PASSWORD" envDefault:"wreckyard_secret"`
	PostgresDB   string `env:"CHECKOUT_DB_NAME" envDefault:"checkout_db"`
	PostgresSSL  string `env:"POSTGRES_SSL_MODE" envDefault:"disable"`

	// Database pool
	DBMaxConns            int32 `env:"DB_MAX_CONNS" envDefault:"25"`
	DBMinConns            int32 `env:"DB_MIN_CONNS" envDefault:"5"`
	DBMaxConnLifetimeMins int   `env:"DB_MAX_CONN_LIFETIME_MINUTES" envDefault:"60"`
	DBMaxConnIdleTimeMins int   `env:"DB_MAX_CONN_IDLE_TIME_MINUTES" envDefault:"30"`

	// Kafka
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092" envSeparator:","`

	// Downstream service URLs
	RateServiceURL    string `env:"RATE_SERVICE_URL" envDefault:"http://localhost:8011"`
	PaymentServiceURL string `env:"PAYMENT_SERVICE_URL" envDefault:"http://localhost:8005"`
	OrderServiceURL   string `env:"ORDER_SERVICE_URL" envDefault:"http://localhost:8003"`

	// Quote pipeline. The debounce window absorbs bursts of cart edits so a
	// rapid sequence of changes costs one rating call, not one per keystroke.
	QuoteDebounceMillis   int `env:"QUOTE_DEBOUNCE_MS" envDefault:"1000"`
	QuoteTimeoutSeconds   int `env:"QUOTE_TIMEOUT_SECONDS" envDefault:"10"`
	IntentTimeoutSeconds  int `env:"INTENT_TIMEOUT_SECONDS" envDefault:"10"`
	CompleteTimeoutSecond int `env:"COMPLETE_TIMEOUT_SECONDS" envDefault:"15"`

	// Circuit breaker settings for downstream service calls
	CBMaxRequests  uint32  `env:"CB_MAX_REQUESTS" envDefault:"1"`
	CBInterval     int     `env:"CB_INTERVAL_SECONDS" envDefault:"60"`
	CBTimeout      int     `env:"CB_TIMEOUT_SECONDS" envDefault:"30"`
	CBFailureRatio float64 `env:"CB_FAILURE_RATIO" envDefault:"0.5"`
	CBMinRequests  uint32  `env:"CB_MIN_REQUESTS" envDefault:"5"`

	// Warehouse dispatch origin. Every quote prices origin→destination from
	// here.
	OriginStreet   string `env:"ORIGIN_STREET" envDefault:"14 Wrecker Way"`
	OriginSuburb   string `env:"ORIGIN_SUBURB" envDefault:"Smithfield"`
	OriginState    string `env:"ORIGIN_STATE" envDefault:"NSW"`
	OriginPostcode string `env:"ORIGIN_POSTCODE" envDefault:"2164"`

	// Size map override. Empty means the embedded default document.
	SizeMapPath string `env:"SIZE_MAP_PATH" envDefault:""`

	Currency string `env:"CURRENCY" envDefault:"AUD"`

	// OpenTelemetry
	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, fmt.Errorf("load checkout config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("POSTGRES_HOST is required")
	}
	if c.PostgresUser == "" {
		return fmt.Errorf("POSTGRES_USER is required")
	}
	if len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required")
	}
	if c.QuoteDebounceMillis < 0 {
		return fmt.Errorf("QUOTE_DEBOUNCE_MS must not be negative, got %d", c.QuoteDebounceMillis)
	}
	if c.OTELSampleRate < 0 || c.OTELSampleRate > 1.0 {
		return fmt.Errorf("OTEL_SAMPLE_RATE must be between 0.0 and 1.0, got %f", c.OTELSampleRate)
	}
	for name, rawURL := range map[string]string{
		"RATE_SERVICE_URL":    c.RateServiceURL,
		"PAYMENT_SERVICE_URL": c.PaymentServiceURL,
		"ORDER_SERVICE_URL":   c.OrderServiceURL,
	} {
		if rawURL == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := url.ParseRequestURI(rawURL); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, rawURL, err)
		}
	}
	return nil
}

// PostgresDSN returns the PostgreSQL connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.PostgresUser, c.PostgresPass, c.PostgresHost, c.PostgresPort, c.PostgresDB, c.PostgresSSL,
	)
}

// QuoteDebounce returns the debounce window as a duration.
func (c *Config) QuoteDebounce() time.Duration {
	return time.Duration(c.QuoteDebounceMillis) * time.Millisecond
}

// QuoteTimeout returns the rating call timeout.
func (c *Config) QuoteTimeout() time.Duration {
	return time.Duration(c.QuoteTimeoutSeconds) * time.Second
}

// IntentTimeout returns the payment intent call timeout.
func (c *Config) IntentTimeout() time.Duration {
	return time.Duration(c.IntentTimeoutSeconds) * time.Second
}

// CompleteTimeout returns the order completion call timeout.
func (c *Config) CompleteTimeout() time.Duration {
	return time.Duration(c.CompleteTimeoutSecond) * time.Second
}

// CartTTL returns how long an untouched cart survives in Redis.
func (c *Config) CartTTL() time.Duration {
	return time.Duration(c.CartTTLHours) * time.Hour
}
