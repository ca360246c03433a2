package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uhhharsh/VidShare/internal/common"
)

// envelope is the body of every API response.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data,omitempty"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func ok(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, envelope{StatusCode: status, Message: message})
}

// statusFor maps an error kind to its HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrorRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrorUploadFailed):
		return http.StatusBadGateway
	case errors.Is(err, common.ErrorUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as an error envelope. Server-side failures are logged with
// their detail and reach the client only as a generic message.
func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)

	message := common.Message(err, http.StatusText(status))
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		s.log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "status", status, "error", err)
		message = http.StatusText(status)
	}

	abort(c, status, message)
}
