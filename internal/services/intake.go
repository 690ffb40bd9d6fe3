package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/storage"
	"github.com/Lllllllleong/docsynth/internal/backend"
	"github.com/Lllllllleong/docsynth/internal/gcp"
	"github.com/Lllllllleong/docsynth/internal/models"
	"google.golang.org/api/iterator"
)

type SeedIntakeConfig struct {
	ProjectID             string
	BackendURL            string
	UserID                string
	CollectionName        string
	SubmissionsCollection string
	Defaults              models.GenerationMetadata
}

// SeedIntakeFunction submits a generation request for every seed PDF dropped
// into the intake bucket.
type SeedIntakeFunction struct {
	storageClient   *storage.Client
	firestoreClient *firestore.Client
	sequencer       *Sequencer
	config          SeedIntakeConfig
}

// GCSEvent is the payload of a GCS object-finalize event.
type GCSEvent struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Metadata    map[string]string `json:"metadata"`
}

func loadIntakeConfig() (*SeedIntakeConfig, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return nil, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := &SeedIntakeConfig{
		ProjectID:             projectID,
		BackendURL:            gcp.GetEnv("BACKEND_URL", ""),
		UserID:                gcp.GetEnv("INTAKE_USER_ID", ""),
		CollectionName:        gcp.GetEnv("FIRESTORE_COLLECTION", "seedIntake"),
		SubmissionsCollection: gcp.GetEnv("SUBMISSIONS_COLLECTION", "generationRequests"),
		Defaults: models.GenerationMetadata{
			DocumentType: gcp.GetEnv("DEFAULT_DOCUMENT_TYPE", "General"),
			Language:     gcp.GetEnv("DEFAULT_LANGUAGE", "English"),
		},
	}
	if config.BackendURL == "" || config.UserID == "" {
		return nil, fmt.Errorf("BACKEND_URL and INTAKE_USER_ID must be set")
	}
	numSolutions, err := strconv.Atoi(gcp.GetEnv("DEFAULT_NUM_SOLUTIONS", "1"))
	if err != nil || numSolutions < 1 {
		return nil, fmt.Errorf("DEFAULT_NUM_SOLUTIONS must be a positive integer")
	}
	config.Defaults.NumSolutions = numSolutions
	return config, nil
}

// NewSeedIntake creates a SeedIntakeFunction from environment configuration.
func NewSeedIntake(ctx context.Context) (*SeedIntakeFunction, error) {
	config, err := loadIntakeConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	clients, err := gcp.NewClients(ctx, config.ProjectID)
	if err != nil {
		return nil, err
	}
	client, err := backend.NewClient(config.BackendURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create backend client: %w", err)
	}

	f := &SeedIntakeFunction{
		storageClient:   clients.Storage,
		firestoreClient: clients.Firestore,
		sequencer:       NewSequencer(client, NewFirestoreJournal(clients.Firestore, config.SubmissionsCollection)),
		config:          *config,
	}
	slog.Info("Seed intake logic initialized.", "backendUrl", config.BackendURL)
	return f, nil
}

func (f *SeedIntakeFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := slog.With("gcsBucket", e.Bucket, "gcsObject", e.Name)
	if !strings.EqualFold(path.Ext(e.Name), ".pdf") {
		logCtx.Info("Ignoring non-PDF object.")
		return nil
	}
	logCtx.Info("Processing new seed document.")

	metadata, err := metadataFromEvent(e, f.config.Defaults)
	if err != nil {
		logCtx.Error("Invalid seed metadata", "error", err)
		return err
	}

	tempDir, err := os.MkdirTemp("", "seed-intake-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	seedPath := filepath.Join(tempDir, path.Base(e.Name))
	if _, err := gcp.StreamObjectToFile(ctx, f.storageClient, e.Bucket, e.Name, seedPath); err != nil {
		logCtx.Error("Failed to download seed PDF", "error", err)
		return err
	}

	fileHash, err := calculateFileHash(seedPath)
	if err != nil {
		logCtx.Error("Failed to calculate file hash", "error", err)
		return fmt.Errorf("failed to calculate file hash: %w", err)
	}
	logCtx = logCtx.With("fileHash", fileHash)

	isDuplicate, docID, err := f.isDuplicate(ctx, fileHash)
	if err != nil {
		logCtx.Error("Failed to check for duplicate", "error", err)
		return err
	}
	if isDuplicate {
		logCtx.Info("Duplicate seed detected. Skipping.", "existingIntakeId", docID)
		return nil
	}

	docRef, err := f.createIntakeRecord(ctx, fileHash, e.Name)
	if err != nil {
		logCtx.Error("Failed to create intake record", "error", err)
		return err
	}
	logCtx = logCtx.With("intakeId", docRef.ID)

	pageCount, err := ValidateSeedPDF(seedPath)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "seed PDF failed validation", err)
	}
	updates := []firestore.Update{
		{Path: "status", Value: models.IntakeSubmitting},
		{Path: "pageCount", Value: pageCount},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to update status to SUBMITTING", err)
	}

	seed, err := FileFromPath(seedPath)
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "failed to open seed", err)
	}
	result, err := f.sequencer.StartGenerationFlow(ctx, GenerationRequest{
		UserID:    f.config.UserID,
		SeedFiles: []SourceFile{seed},
		Metadata:  metadata,
	}, func(s models.UploadProgressState) {
		logCtx.Info("Upload progress.", "phase", s.Phase, "fileIndex", s.CurrentFileIndex, "totalFiles", s.TotalFiles, "fileName", s.CurrentFileName)
	})
	if err != nil {
		return f.handleError(ctx, logCtx, docRef, "generation flow failed", err)
	}

	updates = []firestore.Update{
		{Path: "status", Value: models.IntakeSubmitted},
		{Path: "requestId", Value: result.RequestID},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		logCtx.Error("Failed to record submitted status", "requestId", result.RequestID, "error", err)
	}
	logCtx.Info("Seed submitted for generation.", "requestId", result.RequestID, "pageCount", pageCount)
	return nil
}

// metadataFromEvent builds request metadata from the object's custom metadata,
// falling back to defaults and to the object's base name for the document name.
func metadataFromEvent(e GCSEvent, defaults models.GenerationMetadata) (models.GenerationMetadata, error) {
	m := defaults
	base := path.Base(e.Name)
	m.DocumentName = strings.TrimSuffix(base, path.Ext(base))

	get := func(key string) (string, bool) {
		v, ok := e.Metadata[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	if v, ok := get("documentName"); ok {
		m.DocumentName = v
	}
	if v, ok := get("groundTruth"); ok {
		m.GroundTruth = v
	}
	if v, ok := get("documentType"); ok {
		m.DocumentType = v
	}
	if v, ok := get("language"); ok {
		m.Language = v
	}
	if v, ok := get("redaction"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return m, fmt.Errorf("metadata redaction=%q is not a boolean", v)
		}
		m.Redaction = b
	}
	if v, ok := get("numSolutions"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return m, fmt.Errorf("metadata numSolutions=%q must be a positive integer", v)
		}
		m.NumSolutions = n
	}
	if m.GroundTruth == "" {
		return m, fmt.Errorf("metadata groundTruth is required")
	}
	return m, nil
}

func (f *SeedIntakeFunction) isDuplicate(ctx context.Context, fileHash string) (bool, string, error) {
	it := f.firestoreClient.Collection(f.config.CollectionName).Where("fileHash", "==", fileHash).Documents(ctx)
	defer it.Stop()
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			return false, "", nil
		}
		if err != nil {
			return false, "", fmt.Errorf("failed to query for duplicates: %w", err)
		}
		var rec models.IntakeRecord
		if err := snap.DataTo(&rec); err != nil {
			return false, "", fmt.Errorf("failed to decode intake record %s: %w", snap.Ref.ID, err)
		}
		// A failed earlier attempt does not block a retry.
		if rec.Status != models.IntakeFailed {
			return true, snap.Ref.ID, nil
		}
	}
}

func (f *SeedIntakeFunction) createIntakeRecord(ctx context.Context, fileHash, filename string) (*firestore.DocumentRef, error) {
	rec := models.IntakeRecord{
		FileHash:         fileHash,
		OriginalFilename: filename,
		Status:           models.IntakeValidating,
		CreatedAt:        time.Now(),
	}
	docRef, _, err := f.firestoreClient.Collection(f.config.CollectionName).Add(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to create intake record: %w", err)
	}
	return docRef, nil
}

func (f *SeedIntakeFunction) handleError(ctx context.Context, logCtx *slog.Logger, docRef *firestore.DocumentRef, message string, originalErr error) error {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	logCtx.Error(message, "error", originalErr)
	updates := []firestore.Update{
		{Path: "status", Value: models.IntakeFailed},
		{Path: "errorDetails", Value: fullError},
	}
	if _, err := docRef.Update(ctx, updates); err != nil {
		logCtx.Error("CRITICAL: Failed to update Firestore status to FAILED after an intake error.", "updateError", err)
	}
	return fmt.Errorf("%s: %w", message, originalErr)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
