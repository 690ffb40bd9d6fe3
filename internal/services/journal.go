package services

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/Lllllllleong/docsynth/internal/models"
)

// FirestoreJournal keeps one document per generation request, keyed by the
// backend's request id.
type FirestoreJournal struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreJournal writes to collection, which defaults to "generationRequests".
func NewFirestoreJournal(client *firestore.Client, collection string) *FirestoreJournal {
	if collection == "" {
		collection = "generationRequests"
	}
	return &FirestoreJournal{client: client, collection: collection}
}

func (j *FirestoreJournal) doc(requestID string) *firestore.DocumentRef {
	return j.client.Collection(j.collection).Doc(requestID)
}

// RecordCreated stores the initial record for a freshly created request.
func (j *FirestoreJournal) RecordCreated(ctx context.Context, rec models.SubmissionRecord) error {
	if rec.RequestID == "" {
		return fmt.Errorf("submission record has no request id")
	}
	rec.UpdatedAt = rec.CreatedAt
	if _, err := j.doc(rec.RequestID).Set(ctx, rec); err != nil {
		return fmt.Errorf("failed to create submission record %s: %w", rec.RequestID, err)
	}
	return nil
}

// RecordProgress updates the status and uploaded-file count.
func (j *FirestoreJournal) RecordProgress(ctx context.Context, requestID, status string, uploaded int) error {
	updates := []firestore.Update{
		{Path: "status", Value: status},
		{Path: "uploadedFiles", Value: uploaded},
		{Path: "updatedAt", Value: time.Now()},
	}
	if _, err := j.doc(requestID).Update(ctx, updates); err != nil {
		return fmt.Errorf("failed to update submission %s to %s: %w", requestID, status, err)
	}
	return nil
}

// RecordFailure marks the request FAILED. It merges rather than updates so a
// failure before RecordCreated still leaves a trace.
func (j *FirestoreJournal) RecordFailure(ctx context.Context, requestID string, uploaded int, cause error) error {
	fields := map[string]interface{}{
		"requestId":     requestID,
		"status":        models.StatusFailed,
		"errorDetails":  cause.Error(),
		"uploadedFiles": uploaded,
		"updatedAt":     time.Now(),
	}
	if _, err := j.doc(requestID).Set(ctx, fields, firestore.MergeAll); err != nil {
		return fmt.Errorf("failed to mark submission %s as failed: %w", requestID, err)
	}
	return nil
}
