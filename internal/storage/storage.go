package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/measure-api/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned when the referenced object does not exist
	ErrNotFound = errors.New("attachment not found")
	// ErrInvalidPath is returned for storage paths that escape the attachment root
	ErrInvalidPath = errors.New("invalid storage path")
)

// Storage holds measurement attachments
type Storage interface {
	Upload(ctx context.Context, filename string, contentType string, data io.Reader) (string, int64, error)
	Download(ctx context.Context, storagePath string) (io.ReadCloser, error)
	Delete(ctx context.Context, storagePath string) error
}

// NewStorage creates the configured backend: "local" filesystem or "azure" blob storage
func NewStorage(cfg *config.StorageConfig, logger *zap.Logger) (Storage, error) {
	switch cfg.Mode {
	case "local":
		return NewLocalStorage(cfg.LocalBasePath, logger)
	case "cloud", "azure":
		if cfg.CloudConnectionString == "" {
			return nil, fmt.Errorf("cloud connection string required for azure storage")
		}
		return NewAzureBlobStorage(cfg.CloudConnectionString, cfg.CloudContainer, logger)
	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.Mode)
	}
}

// NewObjectName builds a collision free object name grouped by upload month,
// e.g. "2024/05/3f2a....pdf". The original extension is kept, lower-cased.
func NewObjectName(filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return path.Join(now.UTC().Format("2006"), now.UTC().Format("01"), uuid.NewString()+ext)
}

// CleanPath validates a client supplied storage path
func CleanPath(storagePath string) (string, error) {
	if storagePath == "" || strings.Contains(storagePath, "\\") {
		return "", ErrInvalidPath
	}
	cleaned := path.Clean(storagePath)
	if path.IsAbs(cleaned) || cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// LocalStorage keeps attachments on the local filesystem
type LocalStorage struct {
	basePath string
	logger   *zap.Logger
	now      func() time.Time
}

// NewLocalStorage creates the base directory if needed
func NewLocalStorage(basePath string, logger *zap.Logger) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{basePath: basePath, logger: logger, now: time.Now}, nil
}

func (s *LocalStorage) fullPath(storagePath string) (string, error) {
	cleaned, err := CleanPath(storagePath)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.basePath, filepath.FromSlash(cleaned)), nil
}

// Upload writes the stream to a new object and returns its storage path and size
func (s *LocalStorage) Upload(ctx context.Context, filename string, contentType string, data io.Reader) (string, int64, error) {
	storagePath := NewObjectName(filename, s.now())
	fullPath, err := s.fullPath(storagePath)
	if err != nil {
		return "", 0, err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	size, err := io.Copy(file, data)
	if err != nil {
		_ = os.Remove(fullPath)
		return "", 0, fmt.Errorf("failed to write file: %w", err)
	}

	s.logger.Debug("Attachment stored locally",
		zap.String("storage_path", storagePath),
		zap.String("content_type", contentType),
		zap.Int64("size", size),
	)
	return storagePath, size, nil
}

// Download opens a stored object
func (s *LocalStorage) Download(ctx context.Context, storagePath string) (io.ReadCloser, error) {
	fullPath, err := s.fullPath(storagePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, storagePath)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes a stored object; missing objects are not an error
func (s *LocalStorage) Delete(ctx context.Context, storagePath string) error {
	fullPath, err := s.fullPath(storagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
