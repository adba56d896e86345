package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	OAuth      OAuthConfig
	Cloudinary CloudinaryConfig
	Payment    PaymentConfig
	Treasury   TreasuryConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port         string        `env:"PORT" envDefault:"8099"`
	Env          string        `env:"APP_ENV" envDefault:"development"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`
	CORSOrigins  []string      `env:"CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`
}

type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"mysql"` // mysql | sqlite
	DSN             string        `env:"DB_DSN" envDefault:"memberhub:memberhub@tcp(localhost:3306)/memberhub?charset=utf8mb4&parseTime=True&loc=Local"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"100"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"1h"`
}

type JWTConfig struct {
	AccessSecret  string        `env:"JWT_ACCESS_SECRET" envDefault:"change-me-in-production"`
	RefreshSecret string        `env:"JWT_REFRESH_SECRET" envDefault:"change-me-refresh"`
	AccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"15m"`
	RefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`
	Issuer        string        `env:"JWT_ISSUER" envDefault:"memberhub"`
}

type OAuthConfig struct {
	FacebookClientID     string `env:"FACEBOOK_CLIENT_ID"`
	FacebookClientSecret string `env:"FACEBOOK_CLIENT_SECRET"`
	FacebookRedirectURL  string `env:"FACEBOOK_REDIRECT_URL" envDefault:"http://localhost:8099/api/v1/auth/facebook/callback"`
}

type CloudinaryConfig struct {
	CloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	APIKey    string `env:"CLOUDINARY_API_KEY"`
	APISecret string `env:"CLOUDINARY_API_SECRET"`
}

type PaymentConfig struct {
	WebhookSecret   string        `env:"PAYMENT_WEBHOOK_SECRET"`
	Currency        string        `env:"PAYMENT_CURRENCY" envDefault:"EUR"`
	CheckoutBaseURL string        `env:"PAYMENT_CHECKOUT_BASE_URL"` // empty uses the stub provider
	CheckoutAPIKey  string        `env:"PAYMENT_CHECKOUT_API_KEY"`
	SuccessURL      string        `env:"PAYMENT_SUCCESS_URL" envDefault:"http://localhost:5173/billing/success"`
	CancelURL       string        `env:"PAYMENT_CANCEL_URL" envDefault:"http://localhost:5173/billing/cancel"`
	SessionExpiry   time.Duration `env:"PAYMENT_SESSION_EXPIRY" envDefault:"30m"`
	BankIBAN        string        `env:"BANK_IBAN"`
	BankHolder      string        `env:"BANK_HOLDER" envDefault:"Memberhub"`
}

// TreasuryConfig describes the platform account that funds referral commissions and admin credit grants.
type TreasuryConfig struct {
	Email          string `env:"TREASURY_EMAIL" envDefault:"treasury@memberhub.local"`
	OpeningCredits int64  `env:"TREASURY_OPENING_CREDITS" envDefault:"10000000"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `env:"RATE_LIMIT_RPS" envDefault:"5"`
	Burst             int     `env:"RATE_LIMIT_BURST" envDefault:"20"`
}

// Load reads an optional .env file and then parses the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
