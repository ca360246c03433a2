package rest

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uhhharsh/VidShare/internal/common"
	"github.com/uhhharsh/VidShare/internal/logging"
	"github.com/uhhharsh/VidShare/internal/server/auth"
)

const requestIDHeader = "X-Request-ID"

// requestLogger tags the request with an id (taken from X-Request-ID when the
// client sends one) and logs it once handled.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		latency := time.Since(start)
		status := c.Writer.Status()

		s.metrics.ObserveHTTP(c.Request.Method, route, status, latency)
		s.log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", latency,
			"client_ip", c.ClientIP(),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, rec any) {
		s.log.Error(c.Request.Context(), "panic in handler", "path", c.Request.URL.Path, "panic", rec)
		abort(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	})
}

// requireUser resolves the access token from the accessToken cookie or the
// Authorization header and attaches the user to the request context.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(common.AccessTokenCookieName)
		if err != nil || token == "" {
			token = auth.BearerToken(c.GetHeader(common.AuthorizationHeaderName))
		}

		user, err := s.gate.Authenticate(c.Request.Context(), token)
		if err != nil {
			s.fail(c, err)
			return
		}

		c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), user))
		c.Next()
	}
}

// rateLimit applies the limiter per client IP within scope. Limiter errors
// let the request through.
func (s *Server) rateLimit(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		d, err := s.limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP())
		if err != nil {
			s.log.Warn(c.Request.Context(), "rate limiter unavailable", "scope", scope, "error", err)
			c.Next()
			return
		}

		reset := strconv.Itoa(int(d.ResetIn.Round(time.Second) / time.Second))
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", reset)

		if !d.Allowed {
			s.metrics.RateLimited(c.FullPath())
			c.Header("Retry-After", reset)
			s.fail(c, common.NewError(common.ErrorRateLimited, "too many requests, try again later"))
			return
		}
		c.Next()
	}
}
