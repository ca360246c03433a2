// Package rest serves the account API over HTTP with gin.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/metrics"
	"github.com/uhhharsh/VidShare/internal/server/models"
	"github.com/uhhharsh/VidShare/internal/server/ratelimit"
	"github.com/uhhharsh/VidShare/internal/server/services"
)

// AccountService is the set of use cases the HTTP API exposes.
type AccountService interface {
	Register(ctx context.Context, in services.RegisterInput) (models.PublicUser, error)
	Login(ctx context.Context, in services.LoginInput) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	Logout(ctx context.Context, userID string) error
	ChangePassword(ctx context.Context, userID string, in services.ChangePasswordInput) error
	CurrentUser(ctx context.Context, userID string) (models.PublicUser, error)
	UpdateAccountDetails(ctx context.Context, userID string, in services.AccountDetailsInput) (models.PublicUser, error)
	UpdateAvatar(ctx context.Context, userID, localPath string) (models.PublicUser, error)
	UpdateCoverImage(ctx context.Context, userID, localPath string) (models.PublicUser, error)
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.PublicUser, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Options are the transport settings of Server.
type Options struct {
	Addr         string
	CookieSecure bool
	// AccessTTL and RefreshTTL set the cookie max-age.
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	UploadDir      string
	MaxUploadBytes int64
	// MediaDir, when set, is served under /media.
	MediaDir    string
	CORSOrigins []string
}

// Deps are the collaborators of Server. Limiter, Health and Metrics may be
// nil.
type Deps struct {
	Accounts AccountService
	Gate     Authenticator
	Health   Pinger
	Limiter  ratelimit.Limiter
	Metrics  *metrics.Metrics
	Log      logging.Logger
}

type Server struct {
	opts     Options
	accounts AccountService
	gate     Authenticator
	health   Pinger
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	log      logging.Logger
	engine   *gin.Engine
}

func NewServer(opts Options, deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = logging.Nop()
	}

	s := &Server{
		opts:     opts,
		accounts: deps.Accounts,
		gate:     deps.Gate,
		health:   deps.Health,
		limiter:  deps.Limiter,
		metrics:  deps.Metrics,
		log:      log.With("module", "rest_server"),
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	useJSONFieldNames()

	r := gin.New()
	r.Use(s.recovery(), s.requestLogger())

	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     s.opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/healthz", s.healthz)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	if s.opts.MediaDir != "" {
		r.Static("/media", s.opts.MediaDir)
	}

	users := r.Group("/api/v1/users")
	users.POST("/register", s.rateLimit("register"), s.limitBody(), s.register)
	users.POST("/login", s.rateLimit("login"), s.login)
	users.POST("/refresh-token", s.rateLimit("refresh"), s.refreshToken)

	secured := users.Group("", s.requireUser())
	secured.POST("/logout", s.logout)
	secured.POST("/change-password", s.changePassword)
	secured.GET("/current-user", s.currentUser)
	secured.PATCH("/update-account", s.updateAccount)
	secured.PATCH("/avatar", s.limitBody(), s.updateAvatar)
	secured.PATCH("/cover-image", s.limitBody(), s.updateCoverImage)

	r.NoRoute(func(c *gin.Context) {
		abort(c, http.StatusNotFound, "route not found")
	})
	return r
}

func (s *Server) healthz(c *gin.Context) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.health.Ping(ctx); err != nil {
			s.log.Warn(ctx, "health check failed", "error", err)
			abort(c, http.StatusServiceUnavailable, "store unreachable")
			return
		}
	}
	ok(c, http.StatusOK, gin.H{"status": "ok"}, "healthy")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.log.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		stopped <- srv.Shutdown(shutdownCtx)
	}()

	s.log.Info(ctx, "Starting HTTP server", "address", s.opts.Addr)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-stopped
}
