package storage

import (
	"context"
	"fmt"

	"weatherchart/internal/config"
)

// DeploymentMode selects where rendered charts are written
type DeploymentMode string

const (
	DeploymentLocal DeploymentMode = "local"
	DeploymentGCS   DeploymentMode = "gcs"
)

// NewStorageClient creates a storage client based on the configured storage mode
func NewStorageClient(ctx context.Context, cfg *config.Config) (StorageClient, error) {
	switch DeploymentMode(cfg.StorageMode) {
	case DeploymentLocal:
		chartsDir := cfg.LocalChartsDir
		if chartsDir == "" {
			chartsDir = "charts"
		}

		localClient, err := NewLocalStorageClient(chartsDir)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage client: %w", err)
		}
		return localClient, nil

	case DeploymentGCS:
		gcsClient, err := NewGCSClient(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize GCS client: %w", err)
		}
		return gcsClient, nil

	default:
		return nil, fmt.Errorf("unsupported storage mode: %s", cfg.StorageMode)
	}
}
