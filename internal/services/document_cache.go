package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Lllllllleong/docsynth/internal/models"
	"golang.org/x/sync/singleflight"
)

// FetchDocumentsFunc loads the document list for a user from the backend.
type FetchDocumentsFunc func(ctx context.Context, userID string) ([]models.Document, error)

// DocumentCache memoizes one user's document list and coalesces concurrent
// fetches. In-flight fetches are tracked per user id, so callers for
// different users never share a result.
//
// Returned slices are shared with the cache and must not be modified.
type DocumentCache struct {
	mu           sync.Mutex
	documents    []models.Document
	cachedUserID string
	hasData      bool

	// pending counts callers registered with group per user. Both change
	// under mu.
	pending map[string]int

	group singleflight.Group
}

// NewDocumentCache returns an empty cache.
func NewDocumentCache() *DocumentCache {
	return &DocumentCache{pending: make(map[string]int)}
}

// GetDocuments returns the cached list for userID, or fetches it. A fetch
// already running for userID is joined even when forceRefresh is set. A
// failed fetch leaves the cache as it was.
//
// The context of the caller that starts a fetch is the one passed to fetch.
// Cancelling ctx only stops this caller waiting.
func (c *DocumentCache) GetDocuments(ctx context.Context, userID string, fetch FetchDocumentsFunc, forceRefresh bool) ([]models.Document, error) {
	c.mu.Lock()
	if c.pending[userID] == 0 && !forceRefresh && c.hasData && c.cachedUserID == userID {
		docs := c.documents
		c.mu.Unlock()
		return docs, nil
	}
	c.pending[userID]++
	ch := c.group.DoChan(userID, func() (any, error) {
		return c.load(ctx, userID, fetch, forceRefresh)
	})
	c.mu.Unlock()
	defer c.release(userID)

	select {
	case res := <-ch:
		if res.Err != nil {
			slog.Warn("Document list fetch failed.", "userId", userID, "shared", res.Shared, "error", res.Err)
			return nil, res.Err
		}
		return res.Val.([]models.Document), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// load runs as the leader of a fetch for userID. A caller that found a fetch
// pending but started a new one after it ended gets the fresh cache.
func (c *DocumentCache) load(ctx context.Context, userID string, fetch FetchDocumentsFunc, forceRefresh bool) ([]models.Document, error) {
	if !forceRefresh {
		c.mu.Lock()
		if c.hasData && c.cachedUserID == userID {
			docs := c.documents
			c.mu.Unlock()
			return docs, nil
		}
		c.mu.Unlock()
	}

	docs, err := fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents = docs
	c.cachedUserID = userID
	c.hasData = true
	return docs, nil
}

func (c *DocumentCache) release(userID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending[userID]--; c.pending[userID] <= 0 {
		delete(c.pending, userID)
	}
}

// Refresh fetches userID's list regardless of what is cached.
func (c *DocumentCache) Refresh(ctx context.Context, userID string, fetch FetchDocumentsFunc) ([]models.Document, error) {
	return c.GetDocuments(ctx, userID, fetch, true)
}

// Invalidate drops the cached list. A fetch already running is not cancelled
// and will repopulate the cache when it finishes.
func (c *DocumentCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.documents = nil
	c.cachedUserID = ""
	c.hasData = false
}

// HasCache reports whether a list is cached for userID.
func (c *DocumentCache) HasCache(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasData && c.cachedUserID == userID
}

// GetCached returns the cached list without fetching. ok is false when nothing
// is cached.
func (c *DocumentCache) GetCached() (docs []models.Document, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.documents, c.hasData
}
