package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
)

// GetEnv is a helper to read an environment variable or return a default value.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// ParseGCSURI splits gs://bucket/object into its bucket and object names.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("not a gs:// URI: %q", uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("gs:// URI must name a bucket and an object: %q", uri)
	}
	return bucket, object, nil
}

// StreamObjectToFile copies a GCS object to destPath, creating or truncating it.
func StreamObjectToFile(ctx context.Context, client *storage.Client, bucket, object, destPath string) (int64, error) {
	gcsReader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return 0, fmt.Errorf("gs://%s/%s does not exist: %w", bucket, object, err)
		}
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && (apiErr.Code == 401 || apiErr.Code == 403) {
			return 0, fmt.Errorf("no read access to gs://%s/%s (HTTP %d): %w", bucket, object, apiErr.Code, err)
		}
		return 0, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	localFile, err := os.Create(destPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create local file at %s: %w", destPath, err)
	}
	n, err := io.Copy(localFile, gcsReader)
	if err != nil {
		_ = localFile.Close()
		return n, fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	if err := localFile.Close(); err != nil {
		return n, fmt.Errorf("failed to finalize local file %s: %w", destPath, err)
	}
	return n, nil
}
