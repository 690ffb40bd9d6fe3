package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/docsynth/internal/gcp"
)

// Downloader fetches generated documents from their durable gs:// paths.
type Downloader struct {
	storageClient *storage.Client
}

// NewDownloader wraps an existing Storage client.
func NewDownloader(storageClient *storage.Client) *Downloader {
	return &Downloader{storageClient: storageClient}
}

// Download copies the object at gsURI into destDir and returns the local path.
func (d *Downloader) Download(ctx context.Context, gsURI, destDir string) (string, error) {
	bucket, object, err := gcp.ParseGCSURI(gsURI)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory %s: %w", destDir, err)
	}

	destPath := filepath.Join(destDir, path.Base(object))
	logCtx := slog.With("gcsBucket", bucket, "gcsObject", object, "destPath", destPath)

	n, err := gcp.StreamObjectToFile(ctx, d.storageClient, bucket, object, destPath)
	if err != nil {
		logCtx.Error("Download failed", "error", err)
		_ = os.Remove(destPath)
		return "", err
	}
	logCtx.Info("Download complete.", "bytes", n)
	return destPath, nil
}
