package models

import "time"

// Document is one generated-document entry as listed by the backend for a user.
type Document struct {
	ID           string    `json:"id"`
	DocName      string    `json:"doc_name"`
	DocumentType string    `json:"documentType,omitempty"`
	NumDocs      int       `json:"numDocs,omitempty"`
	Status       string    `json:"status,omitempty"`
	Path         string    `json:"path,omitempty"`
	CreatedAt    Timestamp `json:"created_at"`
}

// DocumentBatch groups the documents produced for a single generation request.
type DocumentBatch struct {
	ID        string     `json:"id"`
	RequestID string     `json:"requestId,omitempty"`
	Status    string     `json:"status,omitempty"`
	Documents []Document `json:"documents"`
}

// RecentGeneration is a row of the dashboard's recent activity list.
type RecentGeneration struct {
	DocName string `json:"docName"`
	Date    string `json:"date"`
	Status  string `json:"status"`
}

// DashboardStats mirrors the backend's dashboard summary. The misspelled
// verfiedToday key is what the backend emits.
type DashboardStats struct {
	GeneratedDocs     int                `json:"generatedDocs"`
	RequestedDocs     int                `json:"requestedDocs"`
	FlaggedDocs       int                `json:"flaggedDocs"`
	SuccessRatio      float64            `json:"successRatio"`
	ProcessingQueue   int                `json:"processingQueue"`
	PendingReview     int                `json:"pendingReview"`
	VerifiedToday     int                `json:"verfiedToday"`
	RecentGenerations []RecentGeneration `json:"recentGenerations"`
}

// SubmissionRecord is the Firestore ledger entry for one generation request.
// It tracks how far the client got; it is not used to resume a flow.
type SubmissionRecord struct {
	RequestID      string    `firestore:"requestId,omitempty"`
	UserID         string    `firestore:"userId,omitempty"`
	DocumentName   string    `firestore:"documentName,omitempty"`
	IdempotencyKey string    `firestore:"idempotencyKey,omitempty"`
	Status         string    `firestore:"status,omitempty"`
	ErrorDetails   string    `firestore:"errorDetails,omitempty"`
	TotalFiles     int       `firestore:"totalFiles"`
	UploadedFiles  int       `firestore:"uploadedFiles"`
	CreatedAt      time.Time `firestore:"createdAt,omitempty"`
	UpdatedAt      time.Time `firestore:"updatedAt,omitempty"`
}

// IntakeRecord tracks a seed PDF picked up from the intake bucket.
type IntakeRecord struct {
	FileHash         string    `firestore:"fileHash,omitempty"`
	OriginalFilename string    `firestore:"originalFilename,omitempty"`
	Status           string    `firestore:"status,omitempty"`
	ErrorDetails     string    `firestore:"errorDetails,omitempty"`
	PageCount        int       `firestore:"pageCount,omitempty"`
	RequestID        string    `firestore:"requestId,omitempty"` // For traceability
	CreatedAt        time.Time `firestore:"createdAt,omitempty"`
}

// Submission statuses written to the ledger.
const (
	StatusCreated    = "CREATED"
	StatusUploading  = "UPLOADING"
	StatusCompleting = "COMPLETING"
	StatusCompleted  = "COMPLETED"
	StatusFailed     = "FAILED"
)

// Intake statuses.
const (
	IntakeValidating = "VALIDATING"
	IntakeSubmitting = "SUBMITTING"
	IntakeSubmitted  = "SUBMITTED"
	IntakeFailed     = "FAILED"
)
