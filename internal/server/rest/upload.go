package rest

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/uhhharsh/VidShare/internal/common"
)

// limitBody caps the request body for multipart routes.
func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.MaxUploadBytes > 0 {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
		}
		c.Next()
	}
}

func isMultipart(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), "multipart/form-data")
}

// saveFormFile stores the named multipart file under the upload directory and
// returns its path. A missing file yields an empty path.
func (s *Server) saveFormFile(c *gin.Context, field string) (string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return "", nil
		case errors.As(err, &tooLarge):
			return "", common.NewError(common.ErrorInvalidInput, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
		default:
			return "", common.NewError(common.ErrorInvalidInput, "malformed multipart body")
		}
	}

	dst := filepath.Join(s.opts.UploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("save upload %s: %w", field, err)
	}
	return dst, nil
}
