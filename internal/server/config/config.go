// Package config builds the server configuration from defaults, an optional
// JSON file, a dotenv file, environment variables and command-line flags,
// applied in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const redacted = "[REDACTED]"

// Config holds runtime settings for the VidShare accounts server.
//
// DatabaseDSN selects the persistence backend by scheme: postgres://,
// mongodb:// or memory://. An empty RedisAddr disables rate limiting.
type Config struct {
	Env        string `env:"VIDSHARE_ENV" env-description:"local, dev or prod"`
	LogBackend string `env:"LOG_BACKEND" env-description:"slog or zerolog"`

	HTTPAddr    string `env:"HTTP_ADDR" env-description:"HTTP listen address"`
	GRPCAddr    string `env:"GRPC_ADDR" env-description:"gRPC listen address"`
	DatabaseDSN string `env:"DATABASE_DSN" env-description:"postgres://, mongodb:// or memory:// DSN"`

	AccessTokenSecret  string        `env:"ACCESS_TOKEN_SECRET" env-description:"HMAC secret for access tokens"`
	RefreshTokenSecret string        `env:"REFRESH_TOKEN_SECRET" env-description:"HMAC secret for refresh tokens"`
	AccessTokenTTL     time.Duration `env:"ACCESS_TOKEN_EXPIRY" env-description:"access token lifetime"`
	RefreshTokenTTL    time.Duration `env:"REFRESH_TOKEN_EXPIRY" env-description:"refresh token lifetime"`
	BcryptCost         int           `env:"BCRYPT_COST" env-description:"bcrypt work factor"`

	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" env-description:"timeout for each store call"`
	UploadTimeout time.Duration `env:"UPLOAD_TIMEOUT" env-description:"timeout for each media upload"`

	CookieSecure                   bool     `env:"COOKIE_SECURE" env-description:"mark auth cookies Secure"`
	CORSOrigins                    []string `env:"CORS_ORIGINS" env-separator:"," env-description:"comma-separated origins allowed to send credentials"`
	PublicURL                      string   `env:"PUBLIC_URL" env-description:"external base URL, used for locally stored media"`
	RevokeSessionsOnPasswordChange bool     `env:"REVOKE_SESSIONS_ON_PASSWORD_CHANGE" env-description:"clear the refresh token on password change"`

	UploadDir      string `env:"UPLOAD_DIR" env-description:"directory for temporary uploads"`
	MediaDir       string `env:"MEDIA_DIR" env-description:"directory for stored media when object storage is not configured"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES" env-description:"multipart size limit"`

	S3AccessKeyID     string `env:"S3_ACCESS_KEY_ID" env-description:"object storage access key"`
	S3SecretAccessKey string `env:"S3_SECRET_ACCESS_KEY" env-description:"object storage secret key"`
	S3Bucket          string `env:"S3_BUCKET" env-description:"object storage bucket"`
	S3Region          string `env:"S3_REGION" env-description:"object storage region"`
	S3BaseEndpoint    string `env:"S3_BASE_ENDPOINT" env-description:"object storage endpoint"`

	RedisAddr       string        `env:"REDIS_ADDR" env-description:"redis address for rate limiting"`
	RedisPassword   string        `env:"REDIS_PASSWORD" env-description:"redis password"`
	RateLimit       int           `env:"RATE_LIMIT" env-description:"requests per window and client"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" env-description:"rate limit window"`
}

// LoadDefaults populates Config with development defaults. The signing
// secrets are left empty so that a deployment without them fails Validate.
// Cookies are Secure unless turned off for plain-HTTP local work.
func (c *Config) LoadDefaults() {
	c.Env = "local"
	c.LogBackend = "slog"
	c.HTTPAddr = ":8000"
	c.GRPCAddr = ":50051"
	c.DatabaseDSN = "memory://"
	c.AccessTokenTTL = 15 * time.Minute
	c.RefreshTokenTTL = 10 * 24 * time.Hour
	c.BcryptCost = bcrypt.DefaultCost
	c.CookieSecure = true
	c.StoreTimeout = 5 * time.Second
	c.UploadTimeout = 30 * time.Second
	c.PublicURL = "http://localhost:8000"
	c.UploadDir = "public/temp"
	c.MediaDir = "public/media"
	c.MaxUploadBytes = 8 << 20
	c.S3Bucket = "vidshare"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.RateLimit = 20
	c.RateLimitWindow = time.Minute
}

// LoadConfig builds a Config from args (usually os.Args[1:]). Layers are
// applied in order: defaults, JSON file (-c/-config), dotenv file
// (-env-file, or ./.env when present), environment, flags.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJSON(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error

	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("access token secret is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("refresh token secret is required"))
	}
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}
	if c.AccessTokenTTL <= 0 {
		errs = append(errs, errors.New("access token expiry must be positive"))
	}
	if c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("refresh token expiry must be positive"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("bcrypt cost must be within [%d, %d]", bcrypt.MinCost, bcrypt.MaxCost))
	}
	if c.StoreTimeout <= 0 || c.UploadTimeout <= 0 {
		errs = append(errs, errors.New("store and upload timeouts must be positive"))
	}
	if c.RedisAddr != "" && (c.RateLimit <= 0 || c.RateLimitWindow <= 0) {
		errs = append(errs, errors.New("rate limit and window must be positive when redis is configured"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// LogValue implements slog.LogValuer. Secrets are replaced with a fixed
// marker.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("env", c.Env),
		slog.String("log_backend", c.LogBackend),
		slog.String("http_addr", c.HTTPAddr),
		slog.String("grpc_addr", c.GRPCAddr),
		slog.String("database_dsn", redactDSN(c.DatabaseDSN)),
		slog.String("access_token_secret", mask(c.AccessTokenSecret)),
		slog.String("refresh_token_secret", mask(c.RefreshTokenSecret)),
		slog.Duration("access_token_expiry", c.AccessTokenTTL),
		slog.Duration("refresh_token_expiry", c.RefreshTokenTTL),
		slog.Int("bcrypt_cost", c.BcryptCost),
		slog.Duration("store_timeout", c.StoreTimeout),
		slog.Duration("upload_timeout", c.UploadTimeout),
		slog.Bool("cookie_secure", c.CookieSecure),
		slog.Any("cors_origins", c.CORSOrigins),
		slog.String("public_url", c.PublicURL),
		slog.Bool("revoke_sessions_on_password_change", c.RevokeSessionsOnPasswordChange),
		slog.String("upload_dir", c.UploadDir),
		slog.String("media_dir", c.MediaDir),
		slog.String("s3_access_key_id", mask(c.S3AccessKeyID)),
		slog.String("s3_secret_access_key", mask(c.S3SecretAccessKey)),
		slog.String("s3_bucket", c.S3Bucket),
		slog.String("s3_region", c.S3Region),
		slog.String("s3_base_endpoint", c.S3BaseEndpoint),
		slog.String("redis_addr", c.RedisAddr),
		slog.String("redis_password", mask(c.RedisPassword)),
		slog.Int("rate_limit", c.RateLimit),
		slog.Duration("rate_limit_window", c.RateLimitWindow),
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
