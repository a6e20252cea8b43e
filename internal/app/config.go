package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/arena-booking/internal/domain/booking"
)

// Config holds the complete application configuration, loadable from
// environment variables (ARENA_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (ARENA_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (ARENA_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Pricing      PricingConfig
	Stripe       StripeConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// PricingConfig controls how drafts are priced.
type PricingConfig struct {
	Basis       string        `default:"duration" usage:"Quantity basis: duration (guest-hours, hours x guests) or guests"`
	QuoteTTL    time.Duration `default:"15m" usage:"How long a quote can be confirmed at its quoted price" flag:"quote-ttl"`
	Currency    string        `default:"usd" usage:"ISO currency code charged for bookings"`
	QuoteSecret string        `usage:"HMAC secret for quote tokens shared by all replicas, defaults to the API key pepper" flag:"quote-secret"`
}

// StripeConfig configures the payment processor. Charges are logged and not
// collected when SecretKey is empty.
type StripeConfig struct {
	SecretKey string `usage:"Stripe secret key (ARENA_STRIPE_SECRET_KEY)" flag:"stripe-secret-key"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	return loadConfig(aconfig.Config{
		EnvPrefix: "ARENA",
		Files:     []string{"config.yaml", "/etc/arena/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
}

func loadConfig(ac aconfig.Config) (*Config, error) {
	var cfg Config
	if err := aconfig.LoaderFor(&cfg, ac).Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.DatabaseURL == "" {
		return nil, errors.New("database URL is required: set ARENA_DATABASE_URL or DATABASE_URL")
	}
	if _, err := cfg.Pricing.BookingConfig(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// BookingConfig converts the pricing section into booking.Config.
func (p PricingConfig) BookingConfig() (booking.Config, error) {
	basis, err := booking.ParseBasis(p.Basis)
	if err != nil {
		return booking.Config{}, errors.Wrap(err, "pricing basis")
	}
	return booking.Config{
		Basis:       basis,
		QuoteTTL:    p.QuoteTTL,
		Currency:    p.Currency,
		QuoteSecret: []byte(p.QuoteSecret),
	}, nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's ARENA_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if c.Pricing.QuoteSecret == "" {
		c.Pricing.QuoteSecret = c.APIKeyPepper
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
