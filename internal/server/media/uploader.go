// Package media stores profile images and returns their public URLs.
package media

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/uhhharsh/VidShare/internal/common"
)

// Result describes a stored object.
type Result struct {
	URL         string
	Key         string
	ContentType string
	Size        int64
}

// Uploader stores a local file and returns where it can be fetched.
// Failures are common.ErrorUploadFailed, or common.ErrorUnavailable when the
// deadline ran out. Delete removes a stored object by its Result.Key; a key
// that is already gone is not an error.
type Uploader interface {
	Upload(ctx context.Context, localPath string) (Result, error)
	Delete(ctx context.Context, key string) error
}

// storageKey builds a date-partitioned, collision-free object key.
func storageKey(now time.Time, ext string) string {
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.NewString(), ext)
}

// detect sniffs the content type of the file and picks an extension for it,
// preferring the one the file already has.
func detect(localPath string) (contentType, ext string, err error) {
	mt, err := mimetype.DetectFile(localPath)
	if err != nil {
		return "", "", err
	}

	ext = strings.ToLower(filepath.Ext(localPath))
	if ext == "" {
		ext = mt.Extension()
	}
	return mt.String(), ext, nil
}

func uploadError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.NewError(common.ErrorUnavailable, "media storage timed out"), err)
	}
	return fmt.Errorf("%w: %w", common.NewError(common.ErrorUploadFailed, "error while uploading file"), err)
}
