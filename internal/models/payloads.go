package models

// These structs define the JSON payloads exchanged with the document
// synthesis backend.

// GenerationMetadata is the user-supplied description of a generation request.
type GenerationMetadata struct {
	DocumentName string `json:"documentName"`
	GroundTruth  string `json:"groundTruth"`
	DocumentType string `json:"documentType"`
	Language     string `json:"language"`
	Redaction    bool   `json:"redaction"`
	NumSolutions int    `json:"numSolutions"`
}

// UploadTarget is one pre-signed upload descriptor. Entry i of a collection
// corresponds to input file i of the same category.
type UploadTarget struct {
	FileName  string `json:"fileName"`
	Path      string `json:"path"`
	UploadURL string `json:"uploadUrl"`
}

// UploadSet holds the descriptors for both file categories.
type UploadSet struct {
	SeedDocs     []UploadTarget `json:"seedDocs"`
	VisualAssets []UploadTarget `json:"visualAssets"`
}

// CreateRequestPayload is the body of the create-with-urls call. Only file
// names are sent, never bytes.
type CreateRequestPayload struct {
	UserID      string             `json:"userId"`
	SeedFiles   []string           `json:"seedFiles"`
	VisualFiles []string           `json:"visualFiles"`
	Metadata    GenerationMetadata `json:"metadata"`

	// IdempotencyKey is sent as a header, not in the body.
	IdempotencyKey string `json:"-"`
}

// CreateRequestResponse is the backend's answer to create-with-urls.
type CreateRequestResponse struct {
	RequestID string    `json:"requestId"`
	Uploads   UploadSet `json:"uploads"`
}

// GenerationResult is returned once a generation flow has been finalized.
type GenerationResult struct {
	RequestID      string    `json:"requestId"`
	Uploads        UploadSet `json:"uploads"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
}

// UserRequest is the {id} body used by the per-user endpoints.
type UserRequest struct {
	ID string `json:"id"`
}

// BatchRequest is the body of get-document-batch.
type BatchRequest struct {
	BatchID string `json:"batchId"`
}

// DocumentsResponse wraps the list-documents payload.
type DocumentsResponse struct {
	Documents []Document `json:"documents"`
}

// BatchResponse wraps the get-document-batch payload.
type BatchResponse struct {
	Batch DocumentBatch `json:"batch"`
}
