package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Config holds the complete application configuration, loadable from
// environment variables (SWAG_ prefix), flags, or YAML config files.
type Config struct {
	Addr          string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (SWAG_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	BaseURL       string `usage:"Public base URL of this API, used for provider webhook URLs" flag:"base-url"`
	StorefrontURL string `usage:"Storefront base URL for checkout redirects" flag:"storefront-url"`
	DesignsDir    string `default:"designs" usage:"Root directory of design metadata" flag:"designs-dir"`
	ImageBaseURL  string `usage:"Public base URL for print-ready design images" flag:"image-base-url"`
	APIKeyPepper  string `usage:"HMAC pepper for admin API key hashing (SWAG_API_KEY_PEPPER)" flag:"api-key-pepper"`

	Mollie   MollieConfig
	Printful PrintfulConfig
	Prodigi  ProdigiConfig
	Flow     FlowConfig

	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// MollieConfig configures the payment gateway client.
type MollieConfig struct {
	APIKey string `usage:"Mollie API key (SWAG_MOLLIE_API_KEY)" flag:"mollie-api-key"`
}

// PrintfulConfig configures the Printful fulfillment client.
type PrintfulConfig struct {
	Token   string `usage:"Printful API token" flag:"printful-token"`
	Sandbox bool   `default:"true" usage:"Create Printful orders as drafts" flag:"printful-sandbox"`
}

// ProdigiConfig configures the Prodigi fulfillment client.
type ProdigiConfig struct {
	APIKey  string `usage:"Prodigi API key" flag:"prodigi-api-key"`
	Sandbox bool   `default:"true" usage:"Use the Prodigi sandbox environment" flag:"prodigi-sandbox"`
}

// FlowConfig configures the revenue router's flow-service ledger.
type FlowConfig struct {
	URL          string `usage:"Flow service base URL" flag:"flow-url"`
	FlowID       string `usage:"Flow id receiving deposits" flag:"flow-id"`
	FunnelID     string `usage:"Funnel id stamped on deposits" flag:"flow-funnel-id"`
	RevenueSplit string `default:"0.5" usage:"Fraction of order totals routed to the flow, in [0,1]" flag:"revenue-split"`
}

// Split parses the configured revenue fraction.
func (c FlowConfig) Split() (decimal.Decimal, error) {
	s, err := decimal.NewFromString(c.RevenueSplit)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "revenue split")
	}
	if s.IsNegative() || s.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.Zero, errors.Errorf("revenue split %s outside [0,1]", s)
	}
	return s, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SWAG",
		Files:     []string{"config.yaml", "/etc/swag/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set SWAG_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Flow.Split(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's SWAG_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
