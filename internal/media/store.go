package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedContentType indicates an upload outside the accepted image types.
	ErrUnsupportedContentType = errors.New("media: unsupported content type")
	// ErrEmptyUpload indicates an upload with no bytes.
	ErrEmptyUpload = errors.New("media: empty upload")
)

// Store accepts an uploaded byte buffer and returns a publicly resolvable URL.
type Store interface {
	Save(ctx context.Context, data []byte, contentType string) (string, error)
}

var extensionsByContentType = map[string]string{
	"image/jpeg":    ".jpg",
	"image/png":     ".png",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/svg+xml": ".svg",
}

// FileStoreConfig configures the filesystem-backed object store.
type FileStoreConfig struct {
	Directory string
	BaseURL   string
	Logger    *zap.Logger
}

// FileStore writes uploads under a local directory served by the HTTP layer.
// Files are never deleted here: an interrupted multi-image request may leave
// uploads with no document reference, and no reconciliation is attempted.
type FileStore struct {
	directory string
	baseURL   string
	logger    *zap.Logger
}

// NewFileStore ensures the upload directory exists and constructs the store.
func NewFileStore(cfg FileStoreConfig) (*FileStore, error) {
	directory := strings.TrimSpace(cfg.Directory)
	if directory == "" {
		return nil, errors.New("media: directory is required")
	}
	if err := os.MkdirAll(directory, 0o755); err != nil {
		return nil, fmt.Errorf("media: create directory: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileStore{
		directory: directory,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		logger:    logger,
	}, nil
}

// Save writes data to a UUID-named file and returns its public URL.
func (s *FileStore) Save(_ context.Context, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyUpload
	}
	extension, ok := extensionsByContentType[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	name := id.String() + extension

	if err := os.WriteFile(filepath.Join(s.directory, name), data, 0o644); err != nil {
		s.logger.Error("media write failed", zap.String("file", name), zap.Error(err))
		return "", fmt.Errorf("media: write file: %w", err)
	}

	s.logger.Debug("media stored", zap.String("file", name), zap.Int("bytes", len(data)))
	return s.baseURL + "/" + name, nil
}

// Directory exposes the upload root so the router can serve it.
func (s *FileStore) Directory() string {
	return s.directory
}
