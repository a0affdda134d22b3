package storage

import (
	"context"
)

// StorageClient defines the interface for chart file storage
type StorageClient interface {
	// Close closes the storage client
	Close() error

	// CreateDir creates a directory (no-op for object stores)
	CreateDir(ctx context.Context, dirPath string) error

	// StoreFile stores a file at the specified path
	StoreFile(ctx context.Context, filePath string, fileData []byte) error

	// GetFile retrieves a file from the specified path
	GetFile(ctx context.Context, filePath string) ([]byte, error)

	// ListDir lists file paths under a directory prefix, sorted
	ListDir(ctx context.Context, dirPath string) ([]string, error)

	// FileExists checks if a file exists at the specified path
	FileExists(ctx context.Context, filePath string) (bool, error)
}
