package gcp

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
)

// Clients bundles the Google Cloud clients shared by the intake function and
// the CLI's download path.
type Clients struct {
	Storage   *storage.Client
	Firestore *firestore.Client
}

// NewFirestoreClient creates a Firestore client for the given project ID.
func NewFirestoreClient(ctx context.Context, projectID string) (*firestore.Client, error) {
	if projectID == "" {
		return nil, fmt.Errorf("projectID must be provided to create a firestore client")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}
	return client, nil
}

// NewClients creates a Storage client and, when projectID is set, a Firestore
// client. Without a project the Firestore field stays nil.
func NewClients(ctx context.Context, projectID string) (*Clients, error) {
	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Storage client: %w", err)
	}
	c := &Clients{Storage: storageClient}
	if projectID == "" {
		return c, nil
	}
	c.Firestore, err = NewFirestoreClient(ctx, projectID)
	if err != nil {
		_ = storageClient.Close()
		return nil, err
	}
	return c, nil
}

// Close releases every client that was opened.
func (c *Clients) Close() error {
	var errs []error
	if c.Storage != nil {
		errs = append(errs, c.Storage.Close())
	}
	if c.Firestore != nil {
		errs = append(errs, c.Firestore.Close())
	}
	return errors.Join(errs...)
}
