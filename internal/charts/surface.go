package charts

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"weatherchart/internal/storage"
)

// ErrNothingPublished is returned when archiving before the first render.
var ErrNothingPublished = errors.New("no chart published yet")

// FileStore is the part of the storage layer a surface writes through.
type FileStore interface {
	StoreFile(ctx context.Context, path string, data []byte) error
}

// Snapshot is the most recently published chart.
type Snapshot struct {
	Content     []byte
	ContentType string
	Path        string
	Published   time.Time
	Version     int
}

// StorageSurface publishes every render to a file named after the surface
// and keeps the latest one in memory for serving.
type StorageSurface struct {
	name  string
	store FileStore

	mu     sync.RWMutex
	latest Snapshot
}

// NewStorageSurface creates a surface writing "<name>.png" or "<name>.html".
// A nil store keeps renders in memory only.
func NewStorageSurface(name string, store FileStore) *StorageSurface {
	return &StorageSurface{name: name, store: store}
}

// Name returns the surface name.
func (s *StorageSurface) Name() string {
	return s.name
}

// Publish stores content and records it as the latest snapshot.
func (s *StorageSurface) Publish(ctx context.Context, content []byte, contentType string) error {
	path := s.name + extensionFor(contentType)
	if s.store != nil {
		if err := s.store.StoreFile(ctx, path, content); err != nil {
			return fmt.Errorf("failed to store %s: %w", path, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = Snapshot{
		Content:     content,
		ContentType: contentType,
		Path:        path,
		Published:   time.Now().UTC(),
		Version:     s.latest.Version + 1,
	}
	return nil
}

// Latest returns the last published chart and whether there is one.
func (s *StorageSurface) Latest() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest.Version > 0
}

// Archive stores a dated copy of the latest chart and returns its path.
func (s *StorageSurface) Archive(ctx context.Context) (string, error) {
	snap, ok := s.Latest()
	if !ok {
		return "", ErrNothingPublished
	}
	if s.store == nil {
		return "", fmt.Errorf("surface %s has no store", s.name)
	}

	path := storage.ArchivePath(s.name, extensionFor(snap.ContentType), snap.Published)
	if err := s.store.StoreFile(ctx, path, snap.Content); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", path, err)
	}
	return path, nil
}

func extensionFor(contentType string) string {
	switch {
	case contentType == "image/png":
		return ".png"
	case len(contentType) >= 9 && contentType[:9] == "text/html":
		return ".html"
	default:
		return ".bin"
	}
}
