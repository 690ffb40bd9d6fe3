package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/Lllllllleong/docsynth/internal/models"
)

// IdempotencyHeader carries the client-generated key on request creation.
const IdempotencyHeader = "Idempotency-Key"

// Client is a thin JSON-over-HTTP client for the document synthesis backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient returns a Client rooted at baseURL. A nil httpClient uses
// http.DefaultClient, which applies no request timeout.
func NewClient(baseURL string, httpClient *http.Client) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("backend base URL must be provided")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL %q: %w", baseURL, err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}, nil
}

// ListDocuments returns the generated documents recorded for a user.
func (c *Client) ListDocuments(ctx context.Context, userID string) ([]models.Document, error) {
	var out models.DocumentsResponse
	err := c.postJSON(ctx, "list documents", "/docs/get-generated-docs", models.UserRequest{ID: userID}, nil, &out, "Failed to fetch documents info")
	if err != nil {
		return nil, err
	}
	return out.Documents, nil
}

// GetDocumentBatch returns one batch of generated documents.
func (c *Client) GetDocumentBatch(ctx context.Context, batchID string) (*models.DocumentBatch, error) {
	var out models.BatchResponse
	err := c.postJSON(ctx, "get batch", "/docs/get-document-batch", models.BatchRequest{BatchID: batchID}, nil, &out, "Failed to fetch document batch")
	if err != nil {
		return nil, err
	}
	return &out.Batch, nil
}

// GetDashboardStats returns the dashboard summary for a user.
func (c *Client) GetDashboardStats(ctx context.Context, userID string) (*models.DashboardStats, error) {
	var out models.DashboardStats
	err := c.postJSON(ctx, "dashboard stats", "/user/get-dashboard-stats", models.UserRequest{ID: userID}, nil, &out, "Failed to fetch dashboard stats")
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateRequestWithUploadURLs registers a generation request and returns one
// pre-signed upload descriptor per file name, in input order.
func (c *Client) CreateRequestWithUploadURLs(ctx context.Context, payload models.CreateRequestPayload) (*models.CreateRequestResponse, error) {
	if payload.SeedFiles == nil {
		payload.SeedFiles = []string{}
	}
	if payload.VisualFiles == nil {
		payload.VisualFiles = []string{}
	}
	var header http.Header
	if payload.IdempotencyKey != "" {
		header = http.Header{IdempotencyHeader: []string{payload.IdempotencyKey}}
	}
	var out models.CreateRequestResponse
	if err := c.postJSON(ctx, "create request", "/requests/create-with-urls", payload, header, &out, "Failed to create request"); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadToSignedURL PUTs raw bytes to a backend-issued upload URL. size is
// used as the Content-Length when non-negative.
func (c *Client) UploadToSignedURL(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error {
	if body == nil {
		body = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return fmt.Errorf("upload file: building request: %w", err)
	}
	if size >= 0 {
		req.ContentLength = size
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload file: %w", err)
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return newAPIError("upload file", resp, "Upload was not acknowledged")
	}
	return nil
}

// CompleteRequest tells the backend that every upload for requestID finished.
func (c *Client) CompleteRequest(ctx context.Context, requestID string) error {
	path := "/requests/" + url.PathEscape(requestID) + "/complete"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("complete request: building request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("complete request: %w", err)
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		return newAPIError("complete request", resp, "Failed to complete upload")
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, op, path string, in any, header http.Header, out any, fallback string) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s: failed to marshal request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%s: building request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer drainAndClose(resp.Body)

	if !isSuccess(resp.StatusCode) {
		apiErr := newAPIError(op, resp, fallback)
		slog.Debug("Backend call rejected.", "op", op, "path", path, "status", resp.StatusCode, "message", apiErr.Message)
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func isSuccess(code int) bool {
	return code >= 200 && code < 300
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	_ = body.Close()
}
