package config

import (
	"fmt"
	"time"
)

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer
	DatabaseURL string `env:"DATABASE_URL"`

	Salla PlatformWebhook `envPrefix:"SALLA_"`
	Zid   PlatformWebhook `envPrefix:"ZID_"`

	Processing Processing `envPrefix:"PROCESSING_"`
	Fraud      Fraud      `envPrefix:"FRAUD_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

func (e Environment) IsProduction() bool { return e.Name == "production" }

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

// PlatformWebhook configures one inbound platform channel. Exactly one
// signature mode applies; the strategy header is checked only when a value is
// configured.
type PlatformWebhook struct {
	WebhookSecret    string `env:"WEBHOOK_SECRET"`
	SignatureMode    string `env:"SIGNATURE_MODE" envDefault:"hmac-sha256"` // hmac-sha256, sha256, plain
	SHA256Order      string `env:"SHA256_ORDER" envDefault:"secret-first"`  // secret-first, body-first
	SignatureHeader  string `env:"SIGNATURE_HEADER"`
	StrategyHeader   string `env:"STRATEGY_HEADER"`
	ExpectedStrategy string `env:"EXPECTED_STRATEGY"`
	DeliveryIDHeader string `env:"DELIVERY_ID_HEADER"`
}

type Processing struct {
	// Timeout bounds one webhook delivery end to end; a slow success upstream
	// becomes a retried duplicate, which the ledger absorbs.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`
}

type Fraud struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	// HighFrequencyWindow is the rolling window for the order-velocity heuristic.
	HighFrequencyWindow time.Duration `env:"HIGH_FREQUENCY_WINDOW" envDefault:"10m"`
	// HighFrequencyThreshold is the commission count within the window at which
	// the signal fires.
	HighFrequencyThreshold int `env:"HIGH_FREQUENCY_THRESHOLD" envDefault:"3"`
	// HoldScoreThreshold is the aggregate risk score at which the commission is
	// forced to ON_HOLD.
	HoldScoreThreshold int `env:"HOLD_SCORE_THRESHOLD" envDefault:"60"`
}

// Validate rejects a production deployment that would accept unsigned traffic.
func (c *Config) Validate() error {
	if !c.Environment.IsProduction() {
		return nil
	}
	if c.Salla.WebhookSecret == "" {
		return fmt.Errorf("SALLA_WEBHOOK_SECRET must be set in production")
	}
	if c.Zid.WebhookSecret == "" {
		return fmt.Errorf("ZID_WEBHOOK_SECRET must be set in production")
	}
	return nil
}
