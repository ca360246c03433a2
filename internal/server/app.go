// Package server wires configuration, storage, media and the HTTP and gRPC
// transports into a runnable application.
package server

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/uhhharsh/VidShare/internal/filex"
	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/auth"
	"github.com/uhhharsh/VidShare/internal/server/config"
	"github.com/uhhharsh/VidShare/internal/server/media"
	"github.com/uhhharsh/VidShare/internal/server/metrics"
	"github.com/uhhharsh/VidShare/internal/server/ratelimit"
	"github.com/uhhharsh/VidShare/internal/server/repositories/repomanager"
	"github.com/uhhharsh/VidShare/internal/server/rest"
	"github.com/uhhharsh/VidShare/internal/server/services"

	gs "github.com/uhhharsh/VidShare/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	repos  repomanager.RepositoryManager
	rdb    *redis.Client
	http   *rest.Server
	grpc   *gs.GRPCServer
}

// NewLogger builds the process logger from c.
func NewLogger(c *config.Config, w io.Writer) logging.Logger {
	return logging.New(c.Env, c.LogBackend, w)
}

// NewApp opens the store, applies migrations and assembles both servers.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	logger.Info(ctx, "Loaded config", "config", c)

	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app := &App{config: c, logger: logger, repos: repos}

	if err := repos.RunMigrations(ctx); err != nil {
		app.close(ctx)
		return nil, fmt.Errorf("migrations: %w", err)
	}

	if err := app.build(ctx); err != nil {
		app.close(ctx)
		return nil, err
	}
	return app, nil
}

func (app *App) build(ctx context.Context) error {
	c := app.config

	uploadDir, err := filex.EnsureDir(c.UploadDir)
	if err != nil {
		return fmt.Errorf("upload dir: %w", err)
	}

	uploader, mediaDir, err := app.newUploader(ctx)
	if err != nil {
		return err
	}

	m := metrics.New()
	issuer := auth.NewIssuer(c.AccessTokenSecret, c.RefreshTokenSecret, c.AccessTokenTTL, c.RefreshTokenTTL)

	accounts := services.NewUserService(app.repos.Users(), issuer, uploader, app.logger, services.Options{
		BcryptCost:                     c.BcryptCost,
		StoreTimeout:                   c.StoreTimeout,
		RevokeSessionsOnPasswordChange: c.RevokeSessionsOnPasswordChange,
	}).WithEvents(m)
	gate := auth.NewGate(issuer, app.repos.Users(), c.StoreTimeout)

	deps := rest.Deps{
		Accounts: accounts,
		Gate:     gate,
		Health:   app.repos,
		Metrics:  m,
		Log:      app.logger,
	}
	limiter := app.newLimiter(ctx)
	if limiter != nil {
		deps.Limiter = limiter
	}

	app.http = rest.NewServer(rest.Options{
		Addr:           c.HTTPAddr,
		CookieSecure:   c.CookieSecure,
		AccessTTL:      issuer.TTL(auth.KindAccess),
		RefreshTTL:     issuer.TTL(auth.KindRefresh),
		UploadDir:      uploadDir,
		MaxUploadBytes: c.MaxUploadBytes,
		MediaDir:       mediaDir,
		CORSOrigins:    c.CORSOrigins,
	}, deps)

	app.grpc = gs.NewGRPCServer(c.GRPCAddr, app.logger, accounts, gate, m)
	if limiter != nil {
		app.grpc.WithLimiter(limiter)
	}
	return nil
}

// newUploader prefers object storage. Without S3 credentials files are kept
// under MediaDir, which is then served by the HTTP server.
func (app *App) newUploader(ctx context.Context) (media.Uploader, string, error) {
	c := app.config

	if c.S3AccessKeyID != "" {
		u, err := media.NewS3Uploader(ctx, media.S3Config{
			AccessKeyID:     c.S3AccessKeyID,
			SecretAccessKey: c.S3SecretAccessKey,
			Region:          c.S3Region,
			Bucket:          c.S3Bucket,
			BaseEndpoint:    c.S3BaseEndpoint,
			Timeout:         c.UploadTimeout,
		})
		if err != nil {
			return nil, "", fmt.Errorf("s3 init error: %w", err)
		}
		return u, "", nil
	}

	dir, err := filex.EnsureDir(c.MediaDir)
	if err != nil {
		return nil, "", fmt.Errorf("media dir: %w", err)
	}
	app.logger.Warn(ctx, "S3 is not configured, storing media on disk", "dir", dir)
	return media.NewDiskUploader(dir, strings.TrimRight(c.PublicURL, "/")+"/media"), dir, nil
}

// newLimiter returns nil when Redis is not configured or unreachable.
func (app *App) newLimiter(ctx context.Context) *ratelimit.RedisLimiter {
	c := app.config
	if c.RedisAddr == "" {
		return nil
	}

	rdb, err := ratelimit.NewRedisClient(ctx, c.RedisAddr, c.RedisPassword)
	if err != nil {
		app.logger.Warn(ctx, "rate limiting disabled", "error", err)
		return nil
	}
	app.rdb = rdb
	return ratelimit.NewRedisLimiter(rdb, c.RateLimit, c.RateLimitWindow)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP and gRPC until a signal arrives or either server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var (
		wg      sync.WaitGroup
		errOnce sync.Once
		runErr  error
	)
	serve := func(name string, run func(context.Context) error) {
		defer wg.Done()
		if err := run(ctx); err != nil {
			app.logger.Error(ctx, "server stopped", "server", name, "error", err)
			errOnce.Do(func() { runErr = fmt.Errorf("%s: %w", name, err) })
			cancelFunc()
		}
	}

	wg.Add(2)
	go serve("http", app.http.Run)
	go serve("grpc", app.grpc.Run)
	wg.Wait()

	app.close(context.Background())
	app.logger.Info(context.Background(), "App stopped")
	return runErr
}

func (app *App) close(ctx context.Context) {
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Warn(ctx, "redis close", "error", err)
		}
	}
	if err := app.repos.Close(ctx); err != nil {
		app.logger.Warn(ctx, "store close", "error", err)
	}
}

// Migrate applies pending schema changes and exits.
func Migrate(ctx context.Context, c *config.Config, logger logging.Logger) error {
	repos, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer func() {
		if err := repos.Close(ctx); err != nil {
			logger.Warn(ctx, "store close", "error", err)
		}
	}()

	if err := repos.RunMigrations(ctx); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	logger.Info(ctx, "Migrations applied", "dsn_scheme", strings.SplitN(c.DatabaseDSN, ":", 2)[0])
	return nil
}
