package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/uhhharsh/VidShare/internal/flagx"
	"github.com/uhhharsh/VidShare/internal/timex"
)

// JsonConfig mirrors Config for JSON files. Durations accept both "15m" and
// integer nanoseconds. Only keys present in the file override the target.
type JsonConfig struct {
	Env                            *string         `json:"env"`
	LogBackend                     *string         `json:"log_backend"`
	HTTPAddr                       *string         `json:"http_addr"`
	GRPCAddr                       *string         `json:"grpc_addr"`
	DatabaseDSN                    *string         `json:"database_dsn"`
	AccessTokenSecret              *string         `json:"access_token_secret"`
	RefreshTokenSecret             *string         `json:"refresh_token_secret"`
	AccessTokenTTL                 *timex.Duration `json:"access_token_expiry"`
	RefreshTokenTTL                *timex.Duration `json:"refresh_token_expiry"`
	BcryptCost                     *int            `json:"bcrypt_cost"`
	StoreTimeout                   *timex.Duration `json:"store_timeout"`
	UploadTimeout                  *timex.Duration `json:"upload_timeout"`
	CookieSecure                   *bool           `json:"cookie_secure"`
	CORSOrigins                    []string        `json:"cors_origins"`
	PublicURL                      *string         `json:"public_url"`
	RevokeSessionsOnPasswordChange *bool           `json:"revoke_sessions_on_password_change"`
	UploadDir                      *string         `json:"upload_dir"`
	MediaDir                       *string         `json:"media_dir"`
	MaxUploadBytes                 *int64          `json:"max_upload_bytes"`
	S3AccessKeyID                  *string         `json:"s3_access_key_id"`
	S3SecretAccessKey              *string         `json:"s3_secret_access_key"`
	S3Bucket                       *string         `json:"s3_bucket"`
	S3Region                       *string         `json:"s3_region"`
	S3BaseEndpoint                 *string         `json:"s3_base_endpoint"`
	RedisAddr                      *string         `json:"redis_addr"`
	RedisPassword                  *string         `json:"redis_password"`
	RateLimit                      *int            `json:"rate_limit"`
	RateLimitWindow                *timex.Duration `json:"rate_limit_window"`
}

// parseJSON overlays values from the file named by -c/-config. Without the
// flag nothing is loaded.
func parseJSON(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	c.apply(config)
	return nil
}

func (c *JsonConfig) apply(config *Config) {
	setString(&config.Env, c.Env)
	setString(&config.LogBackend, c.LogBackend)
	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.GRPCAddr, c.GRPCAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.AccessTokenSecret, c.AccessTokenSecret)
	setString(&config.RefreshTokenSecret, c.RefreshTokenSecret)
	setString(&config.PublicURL, c.PublicURL)
	setString(&config.UploadDir, c.UploadDir)
	setString(&config.MediaDir, c.MediaDir)
	setString(&config.S3AccessKeyID, c.S3AccessKeyID)
	setString(&config.S3SecretAccessKey, c.S3SecretAccessKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)

	if c.AccessTokenTTL != nil {
		config.AccessTokenTTL = c.AccessTokenTTL.Duration
	}
	if c.RefreshTokenTTL != nil {
		config.RefreshTokenTTL = c.RefreshTokenTTL.Duration
	}
	if c.StoreTimeout != nil {
		config.StoreTimeout = c.StoreTimeout.Duration
	}
	if c.UploadTimeout != nil {
		config.UploadTimeout = c.UploadTimeout.Duration
	}
	if c.RateLimitWindow != nil {
		config.RateLimitWindow = c.RateLimitWindow.Duration
	}
	if c.BcryptCost != nil {
		config.BcryptCost = *c.BcryptCost
	}
	if c.RateLimit != nil {
		config.RateLimit = *c.RateLimit
	}
	if c.MaxUploadBytes != nil {
		config.MaxUploadBytes = *c.MaxUploadBytes
	}
	if c.CORSOrigins != nil {
		config.CORSOrigins = c.CORSOrigins
	}
	if c.CookieSecure != nil {
		config.CookieSecure = *c.CookieSecure
	}
	if c.RevokeSessionsOnPasswordChange != nil {
		config.RevokeSessionsOnPasswordChange = *c.RevokeSessionsOnPasswordChange
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
