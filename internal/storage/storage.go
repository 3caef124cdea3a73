// Package storage persists generated binary assets (images, video, audio)
// on the local filesystem under a book-scoped namespace.
//
// URL paths follow the pattern /data/{mediaType}/{bookID}/{filename} and map
// onto the configured per-media-type directories.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/moriai/storybook-server/internal/domain"
)

// Service manages asset filesystem operations.
// Thread-safe for concurrent operations.
type Service struct {
	dirs   map[domain.MediaType]string
	logger *slog.Logger
	mu     sync.RWMutex // Protects file operations
}

// NewService creates the asset storage service, creating the media
// directories if they don't exist.
func NewService(imageDir, videoDir, soundDir string, logger *slog.Logger) (*Service, error) {
	dirs := map[domain.MediaType]string{
		domain.MediaImage: imageDir,
		domain.MediaVideo: videoDir,
		domain.MediaSound: soundDir,
	}
	for mt, dir := range dirs {
		if dir == "" {
			return nil, fmt.Errorf("%s directory cannot be empty", mt)
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create %s directory: %w", mt, err)
		}
	}

	logger.Info("Asset storage initialized",
		"image_dir", imageDir, "video_dir", videoDir, "sound_dir", soundDir)

	return &Service{dirs: dirs, logger: logger}, nil
}

// Upload stores an asset for a book and returns its URL path.
func (s *Service) Upload(data []byte, bookID, filename string, mediaType domain.MediaType) (string, error) {
	if bookID == "" {
		return "", fmt.Errorf("book ID cannot be empty")
	}
	if len(data) == 0 {
		return "", fmt.Errorf("asset data cannot be empty")
	}
	baseDir, ok := s.dirs[mediaType]
	if !ok {
		return "", fmt.Errorf("unsupported media type: %s", mediaType)
	}
	if filename != filepath.Base(filename) || filename == "." || filename == "" {
		return "", fmt.Errorf("invalid filename: %q", filename)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bookDir := filepath.Join(baseDir, bookID)
	if err := os.MkdirAll(bookDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create book directory: %w", err)
	}

	path := filepath.Join(bookDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write asset file: %w", err)
	}

	urlPath := fmt.Sprintf("/data/%s/%s/%s", mediaType, bookID, filename)
	s.logger.Info("Asset uploaded", "url", urlPath, "bytes", len(data))
	return urlPath, nil
}

// Delete removes a single asset by URL path. A failure is reported as false
// rather than an error so best-effort multi-asset cleanup can continue.
func (s *Service) Delete(urlPath string, mediaType domain.MediaType) bool {
	path, err := s.resolve(urlPath, mediaType)
	if err != nil {
		s.logger.Warn("Invalid asset URL for delete", "url", urlPath, "error", err)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("Asset not found for delete", "url", urlPath)
		} else {
			s.logger.Error("Failed to delete asset", "url", urlPath, "error", err)
		}
		return false
	}

	s.logger.Info("Asset deleted", "url", urlPath)
	return true
}

// DeleteAll removes the entire asset subtree for a book across every media
// type. Returns false if any removal failed; it still attempts the rest.
func (s *Service) DeleteAll(bookID string) bool {
	if bookID == "" || bookID != filepath.Base(bookID) {
		s.logger.Warn("Invalid book ID for delete-all", "book_id", bookID)
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ok := true
	for mt, baseDir := range s.dirs {
		bookDir := filepath.Join(baseDir, bookID)
		if _, err := os.Stat(bookDir); os.IsNotExist(err) {
			continue
		}
		if err := os.RemoveAll(bookDir); err != nil {
			s.logger.Error("Failed to delete asset subtree", "book_id", bookID, "media_type", mt, "error", err)
			ok = false
		}
	}

	s.logger.Info("Asset subtree deleted", "book_id", bookID, "ok", ok)
	return ok
}

// Exists checks whether an asset exists at the given URL path.
func (s *Service) Exists(urlPath string, mediaType domain.MediaType) bool {
	path, err := s.resolve(urlPath, mediaType)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, statErr := os.Stat(path)
	return statErr == nil
}

// LocalPath maps an asset URL path back to its filesystem location.
// Used when a stored asset feeds a follow-up generation step.
func (s *Service) LocalPath(urlPath string, mediaType domain.MediaType) (string, error) {
	return s.resolve(urlPath, mediaType)
}

// resolve validates a URL path and maps it under the media type's base dir.
func (s *Service) resolve(urlPath string, mediaType domain.MediaType) (string, error) {
	baseDir, ok := s.dirs[mediaType]
	if !ok {
		return "", fmt.Errorf("unsupported media type: %s", mediaType)
	}

	prefix := fmt.Sprintf("/data/%s/", mediaType)
	if !strings.HasPrefix(urlPath, prefix) {
		return "", fmt.Errorf("invalid %s URL format: %s", mediaType, urlPath)
	}

	rel := strings.TrimPrefix(urlPath, prefix)
	// Reject traversal out of the base directory.
	cleaned := filepath.Clean(rel)
	if cleaned != rel || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("invalid asset path: %s", urlPath)
	}

	return filepath.Join(baseDir, cleaned), nil
}
