package storage

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// ArchiveDir is the storage prefix of archived chart snapshots.
const ArchiveDir = "archive"

// ArchivePath generates a dated path for a chart snapshot.
// Format: archive/YYYY/MM/DD/<name>-YYYY-MM-DD-HH-MM-SS<ext>
func ArchivePath(name, ext string, timestamp time.Time) string {
	t := timestamp.UTC()
	return fmt.Sprintf("%s/%04d/%02d/%02d/%s-%s%s",
		ArchiveDir, t.Year(), t.Month(), t.Day(), name, t.Format("2006-01-02-15-04-05"), ext)
}

// GetContentType determines the MIME content type based on file extension
func GetContentType(filename string) string {
	switch strings.ToLower(path.Ext(filename)) {
	case ".json":
		return "application/json"
	case ".html":
		return "text/html; charset=utf-8"
	case ".png":
		return "image/png"
	case ".svg":
		return "image/svg+xml"
	case ".yaml", ".yml":
		return "application/yaml"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}

// cleanPath normalizes a storage path and rejects escapes above the root.
func cleanPath(p string) (string, error) {
	cleaned := path.Clean("/" + strings.ReplaceAll(p, "\\", "/"))
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." {
		return "", fmt.Errorf("invalid storage path %q", p)
	}
	return cleaned, nil
}
