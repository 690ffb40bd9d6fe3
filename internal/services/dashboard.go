package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Lllllllleong/docsynth/internal/models"
	"golang.org/x/sync/errgroup"
)

// DashboardBackend is the read side of the REST client.
type DashboardBackend interface {
	ListDocuments(ctx context.Context, userID string) ([]models.Document, error)
	GetDashboardStats(ctx context.Context, userID string) (*models.DashboardStats, error)
	GetDocumentBatch(ctx context.Context, batchID string) (*models.DocumentBatch, error)
}

// Overview is what the dashboard screen shows on load.
type Overview struct {
	Stats     *models.DashboardStats
	Documents []models.Document
}

// Dashboard serves list screens from a shared DocumentCache.
type Dashboard struct {
	backend DashboardBackend
	cache   *DocumentCache
}

// NewDashboard wires a backend to a cache owned by the caller.
func NewDashboard(backend DashboardBackend, cache *DocumentCache) *Dashboard {
	return &Dashboard{backend: backend, cache: cache}
}

// Documents returns the user's documents, from cache unless refresh is set.
func (d *Dashboard) Documents(ctx context.Context, userID string, refresh bool) ([]models.Document, error) {
	return d.cache.GetDocuments(ctx, userID, d.backend.ListDocuments, refresh)
}

// Batch fetches one document batch. Batches are not cached.
func (d *Dashboard) Batch(ctx context.Context, batchID string) (*models.DocumentBatch, error) {
	return d.backend.GetDocumentBatch(ctx, batchID)
}

// Overview loads stats and documents concurrently.
func (d *Dashboard) Overview(ctx context.Context, userID string) (*Overview, error) {
	logCtx := slog.With("userId", userID)
	var out Overview

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		stats, err := d.backend.GetDashboardStats(gctx, userID)
		if err != nil {
			return fmt.Errorf("dashboard stats: %w", err)
		}
		out.Stats = stats
		return nil
	})
	eg.Go(func() error {
		docs, err := d.Documents(gctx, userID, false)
		if err != nil {
			return fmt.Errorf("documents: %w", err)
		}
		out.Documents = docs
		return nil
	})
	if err := eg.Wait(); err != nil {
		logCtx.Error("Failed to load dashboard overview", "error", err)
		return nil, err
	}
	logCtx.Info("Dashboard overview loaded.", "documentCount", len(out.Documents))
	return &out, nil
}

// SubmissionFinished drops cached lists so the next read sees the new request.
func (d *Dashboard) SubmissionFinished() {
	d.cache.Invalidate()
}
