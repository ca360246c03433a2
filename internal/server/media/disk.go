package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskUploader copies files under a local directory that the HTTP server
// exposes at baseURL. It stands in for object storage in local runs.
type DiskUploader struct {
	dir     string
	baseURL string
	now     func() time.Time
}

func NewDiskUploader(dir, baseURL string) *DiskUploader {
	return &DiskUploader{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// Dir is the root directory files are written under.
func (u *DiskUploader) Dir() string { return u.dir }

func (u *DiskUploader) Upload(ctx context.Context, localPath string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, uploadError(err)
	}

	contentType, ext, err := detect(localPath)
	if err != nil {
		return Result{}, uploadError(err)
	}

	key := storageKey(u.now(), ext)
	dst := filepath.Join(u.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return Result{}, uploadError(err)
	}

	size, err := copyFile(dst, localPath)
	if err != nil {
		return Result{}, uploadError(err)
	}

	return Result{
		URL:         u.baseURL + "/" + key,
		Key:         key,
		ContentType: contentType,
		Size:        size,
	}, nil
}

// Delete removes the file stored under key. Keys that would resolve outside
// the media directory are rejected.
func (u *DiskUploader) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel := filepath.Clean(filepath.FromSlash(key))
	if key == "" || filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("invalid media key %q", key)
	}

	err := os.Remove(filepath.Join(u.dir, rel))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func copyFile(dst, src string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o640)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(out, in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("copy %s: %w", src, err)
	}
	return n, nil
}
