package images

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"mailblast/internal/types"
)

// UploadStore persists an operator-uploaded image and returns the public URL
// where composed mail can reference it.
type UploadStore interface {
	Save(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// Compile-time interface checks.
var (
	_ UploadStore = (*LocalStore)(nil)
	_ UploadStore = (*S3Store)(nil)
)

// LocalStore writes uploads to a directory served under /static. It is the
// fallback when no S3 bucket is configured.
type LocalStore struct {
	dir     string
	baseURL string
	logger  *slog.Logger
}

// NewLocalStore creates a LocalStore. dir is a relative path under the working
// directory (it must stay inside the tree served by the static file route);
// baseURL is the public server origin without a trailing slash.
func NewLocalStore(dir, baseURL string, logger *slog.Logger) *LocalStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalStore{
		dir:     filepath.Clean(dir),
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

// Save writes the image to disk under a collision-free name and returns its
// absolute URL.
func (s *LocalStore) Save(_ context.Context, filename, _ string, data []byte) (string, error) {
	key := objectKey(filename)

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", types.NewAppError(
			types.ErrCodeStorageUpload,
			"failed to create upload directory",
			err,
		)
	}

	path := filepath.Join(s.dir, key)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", types.NewAppError(
			types.ErrCodeStorageUpload,
			"failed to write uploaded image",
			err,
		)
	}

	url := s.baseURL + "/" + filepath.ToSlash(path)
	s.logger.Info("image uploaded",
		slog.String("store", "local"),
		slog.String("path", path),
		slog.Int("bytes", len(data)),
	)
	return url, nil
}

// unsafeFilenameChars matches characters that are not safe in object keys.
var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// objectKey derives a collision-free storage name from the uploaded filename.
// A fresh UUID prefix means repeated uploads of the same file never overwrite
// each other.
func objectKey(filename string) string {
	base := filepath.Base(filename)
	base = strings.Trim(base, " /\\")
	base = strings.ReplaceAll(base, "..", "")
	base = unsafeFilenameChars.ReplaceAllString(base, "_")
	if base == "" || base == "." {
		base = "upload"
	}
	return uuid.NewString() + "_" + base
}
