package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Lllllllleong/docsynth/internal/models"
	"github.com/google/uuid"
)

// GenerationBackend is the subset of the REST client the sequencer drives.
type GenerationBackend interface {
	CreateRequestWithUploadURLs(ctx context.Context, payload models.CreateRequestPayload) (*models.CreateRequestResponse, error)
	UploadToSignedURL(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
	CompleteRequest(ctx context.Context, requestID string) error
}

// SubmissionJournal records how far a flow got. Implementations must not
// block the flow on failure; errors are only logged.
type SubmissionJournal interface {
	RecordCreated(ctx context.Context, rec models.SubmissionRecord) error
	RecordProgress(ctx context.Context, requestID, status string, uploaded int) error
	RecordFailure(ctx context.Context, requestID string, uploaded int, cause error) error
}

// ProgressFunc receives progress snapshots synchronously, in flow order.
type ProgressFunc func(models.UploadProgressState)

// GenerationRequest is everything a user submits for one generation.
type GenerationRequest struct {
	UserID      string
	SeedFiles   []SourceFile
	VisualFiles []SourceFile
	Metadata    models.GenerationMetadata
}

// Sequencer creates a generation request, uploads its seed documents and then
// its visual assets one file at a time, and finalizes the request.
//
// It is not transactional: on failure, files already uploaded stay uploaded
// and the backend request is left in whatever state it reached.
type Sequencer struct {
	backend GenerationBackend
	journal SubmissionJournal
	newKey  func() string
}

// NewSequencer builds a Sequencer. journal may be nil.
func NewSequencer(backend GenerationBackend, journal SubmissionJournal) *Sequencer {
	return &Sequencer{
		backend: backend,
		journal: journal,
		newKey:  uuid.NewString,
	}
}

// uploadBatch is one ordered category of files paired with its descriptors.
type uploadBatch struct {
	phase   models.Phase
	files   []SourceFile
	targets []models.UploadTarget
}

// StartGenerationFlow runs the whole submission and returns the request id and
// upload descriptors. onProgress may be nil. The first failure is returned
// immediately as a *RequestCreationError, *FileUploadError or *CompletionError.
func (s *Sequencer) StartGenerationFlow(ctx context.Context, req GenerationRequest, onProgress ProgressFunc) (*models.GenerationResult, error) {
	if onProgress == nil {
		onProgress = func(models.UploadProgressState) {}
	}
	seedNames := fileNames(req.SeedFiles)
	visualNames := fileNames(req.VisualFiles)
	totalFiles := len(req.SeedFiles) + len(req.VisualFiles)
	idempotencyKey := s.newKey()

	logCtx := slog.With("userId", req.UserID, "idempotencyKey", idempotencyKey, "totalFiles", totalFiles)
	logCtx.Info("Starting generation flow.", "seedFiles", len(seedNames), "visualFiles", len(visualNames))

	// --- 1. Create the request and mint upload URLs ---
	created, err := s.backend.CreateRequestWithUploadURLs(ctx, models.CreateRequestPayload{
		UserID:         req.UserID,
		SeedFiles:      seedNames,
		VisualFiles:    visualNames,
		Metadata:       req.Metadata,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		logCtx.Error("Failed to create generation request", "error", err)
		return nil, &RequestCreationError{Err: err}
	}
	if created.RequestID == "" {
		logCtx.Error("Backend accepted the request without a request id")
		return nil, &RequestCreationError{Err: ErrMissingRequestID}
	}
	if len(created.Uploads.SeedDocs) != len(req.SeedFiles) || len(created.Uploads.VisualAssets) != len(req.VisualFiles) {
		err := fmt.Errorf("%w: got %d seed and %d visual descriptors for %d seed and %d visual files",
			ErrUploadCountMismatch,
			len(created.Uploads.SeedDocs), len(created.Uploads.VisualAssets),
			len(req.SeedFiles), len(req.VisualFiles))
		logCtx.Error("Backend returned unusable upload descriptors", "requestId", created.RequestID, "error", err)
		s.recordFailure(ctx, logCtx, created.RequestID, 0, err)
		return nil, &RequestCreationError{Err: err}
	}

	requestID := created.RequestID
	logCtx = logCtx.With("requestId", requestID)
	logCtx.Info("Generation request created.")
	s.recordCreated(ctx, logCtx, models.SubmissionRecord{
		RequestID:      requestID,
		UserID:         req.UserID,
		DocumentName:   req.Metadata.DocumentName,
		IdempotencyKey: idempotencyKey,
		Status:         models.StatusCreated,
		TotalFiles:     totalFiles,
		CreatedAt:      time.Now(),
	})

	state := models.UploadProgressState{
		SeedFiles:   seedNames,
		VisualFiles: visualNames,
		TotalFiles:  totalFiles,
	}

	// --- 2 & 3. Upload seed documents, then visual assets, strictly in order ---
	batches := []uploadBatch{
		{phase: models.PhaseSeed, files: req.SeedFiles, targets: created.Uploads.SeedDocs},
		{phase: models.PhaseVisual, files: req.VisualFiles, targets: created.Uploads.VisualAssets},
	}
	uploaded := 0
	for _, batch := range batches {
		for i, file := range batch.files {
			state.Phase = batch.phase
			state.CurrentFileIndex = uploaded
			state.CurrentFileName = file.Name
			onProgress(state)

			if err := s.uploadOne(ctx, file, batch.targets[i].UploadURL); err != nil {
				logCtx.Error("File upload failed", "phase", batch.phase, "fileName", file.Name, "uploaded", uploaded, "error", err)
				s.recordFailure(ctx, logCtx, requestID, uploaded, err)
				return nil, &FileUploadError{
					RequestID: requestID,
					Phase:     batch.phase,
					Index:     i,
					FileName:  file.Name,
					Err:       err,
				}
			}
			uploaded++
			s.recordProgress(ctx, logCtx, requestID, models.StatusUploading, uploaded)
		}
	}
	logCtx.Info("All files uploaded.", "uploaded", uploaded)

	// --- 4. Mark the request complete ---
	state.Phase = models.PhaseCompleting
	state.CurrentFileIndex = uploaded
	state.CurrentFileName = ""
	onProgress(state)
	s.recordProgress(ctx, logCtx, requestID, models.StatusCompleting, uploaded)

	if err := s.backend.CompleteRequest(ctx, requestID); err != nil {
		logCtx.Error("Failed to complete generation request", "error", err)
		s.recordFailure(ctx, logCtx, requestID, uploaded, err)
		return nil, &CompletionError{RequestID: requestID, Err: err}
	}

	// --- 5. Done ---
	state.Phase = models.PhaseDone
	state.CurrentFileIndex = totalFiles
	onProgress(state)
	s.recordProgress(ctx, logCtx, requestID, models.StatusCompleted, uploaded)
	logCtx.Info("Generation flow complete.")

	return &models.GenerationResult{
		RequestID:      requestID,
		Uploads:        created.Uploads,
		IdempotencyKey: idempotencyKey,
	}, nil
}

func (s *Sequencer) uploadOne(ctx context.Context, file SourceFile, uploadURL string) error {
	if file.Open == nil {
		return fmt.Errorf("no content source for %s", file.Name)
	}
	body, err := file.Open()
	if err != nil {
		return fmt.Errorf("could not open %s: %w", file.Name, err)
	}
	defer body.Close()

	return s.backend.UploadToSignedURL(ctx, uploadURL, file.ContentType, body, file.Size)
}

func (s *Sequencer) recordCreated(ctx context.Context, logCtx *slog.Logger, rec models.SubmissionRecord) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordCreated(ctx, rec); err != nil {
		logCtx.Error("Failed to record submission in journal.", "error", err)
	}
}

func (s *Sequencer) recordProgress(ctx context.Context, logCtx *slog.Logger, requestID, status string, uploaded int) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordProgress(ctx, requestID, status, uploaded); err != nil {
		logCtx.Error("Failed to record submission progress in journal.", "status", status, "error", err)
	}
}

func (s *Sequencer) recordFailure(ctx context.Context, logCtx *slog.Logger, requestID string, uploaded int, cause error) {
	if s.journal == nil || requestID == "" {
		return
	}
	if err := s.journal.RecordFailure(ctx, requestID, uploaded, cause); err != nil {
		logCtx.Error("CRITICAL: Failed to record FAILED status after a flow error.", "updateError", err)
	}
}
