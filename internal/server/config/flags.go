package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/uhhharsh/VidShare/internal/flagx"
)

var flagNames = []string{
	"-a", "-g", "-d", "-env", "-log-backend",
	"-access-secret", "-refresh-secret", "-t", "-r",
	"-b", "-e", "-redis", "-secure-cookies",
}

// parseFlags overlays selected Config fields from command-line flags.
//
//	-a string              HTTP bind address (":8000")
//	-g string              gRPC bind address (":50051")
//	-d string              database DSN
//	-env string            local, dev or prod
//	-log-backend string    slog or zerolog
//	-access-secret string  access token HMAC secret
//	-refresh-secret string refresh token HMAC secret
//	-t duration            access token lifetime ("15m")
//	-r duration            refresh token lifetime ("240h")
//	-b string              S3 bucket
//	-e string              S3 base endpoint
//	-redis string          redis address; empty disables rate limiting
//	-secure-cookies        mark auth cookies Secure (default true)
//
// Arguments not listed above are filtered out first so cobra sub-commands
// and their own flags pass through untouched.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("vidshare", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP bind address")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC bind address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.Env, "env", config.Env, "environment")
	fs.StringVar(&config.LogBackend, "log-backend", config.LogBackend, "logging backend")
	fs.StringVar(&config.AccessTokenSecret, "access-secret", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "refresh-secret", config.RefreshTokenSecret, "refresh token secret")
	fs.DurationVar(&config.AccessTokenTTL, "t", config.AccessTokenTTL, "access token lifetime")
	fs.DurationVar(&config.RefreshTokenTTL, "r", config.RefreshTokenTTL, "refresh token lifetime")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.BoolVar(&config.CookieSecure, "secure-cookies", config.CookieSecure, "secure cookies")

	if err := fs.Parse(flagx.FilterArgs(args, flagNames)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
