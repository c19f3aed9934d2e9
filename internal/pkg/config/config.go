package config

import (
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	ServerAddr string `env:"SERVER_ADDR" envDefault:":8080"`
	AdminAddr  string `env:"ADMIN_ADDR" envDefault:":9091"`
	DBPath     string `env:"DB_PATH" envDefault:"./loghub.db"`
	LogLevel   string `env:"LOG_LEVEL" envDefault:"info"`

	// OperatorToken authorizes the query/stream/alert surface;
	// AdminToken additionally authorizes key management and purge.
	OperatorToken string `env:"OPERATOR_TOKEN,required"`
	AdminToken    string `env:"ADMIN_TOKEN,required"`

	MaxBodyBytes      int64 `env:"MAX_BODY_BYTES" envDefault:"1048576"` // 1MB
	MaxQueryLimit     int   `env:"MAX_QUERY_LIMIT" envDefault:"10000"`
	DefaultQueryLimit int   `env:"DEFAULT_QUERY_LIMIT" envDefault:"100"`
	ExportMaxRows     int   `env:"EXPORT_MAX_ROWS" envDefault:"100000"`

	RetentionDays int           `env:"RETENTION_DAYS" envDefault:"30"`
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`

	RuleRefreshInterval time.Duration `env:"RULE_REFRESH_INTERVAL" envDefault:"15s"`
	APIKeyCacheTTL      time.Duration `env:"API_KEY_CACHE_TTL" envDefault:"5m"`

	IngestRatePerKey  float64 `env:"INGEST_RATE_PER_KEY" envDefault:"1000"`
	IngestBurstPerKey int     `env:"INGEST_BURST_PER_KEY" envDefault:"2000"`

	DispatchBuffer   int `env:"DISPATCH_BUFFER" envDefault:"1024"`
	SubscriberBuffer int `env:"SUBSCRIBER_BUFFER" envDefault:"256"`

	PIIRedactionFields string `env:"PII_REDACTION_FIELDS" envDefault:"email,password,credit_card,ssn"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
