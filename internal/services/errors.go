package services

import (
	"errors"
	"fmt"

	"github.com/Lllllllleong/docsynth/internal/models"
)

// ErrUploadCountMismatch is wrapped in a RequestCreationError when the backend
// returns a different number of upload descriptors than files were sent.
var ErrUploadCountMismatch = errors.New("upload descriptors do not match submitted files")

// ErrMissingRequestID is wrapped in a RequestCreationError when the backend
// acknowledges creation without returning a request id.
var ErrMissingRequestID = errors.New("backend returned no request id")

// RequestCreationError means the generation request could not be created.
// No file was uploaded.
type RequestCreationError struct {
	Err error
}

func (e *RequestCreationError) Error() string {
	return fmt.Sprintf("request creation failed: %v", e.Err)
}

func (e *RequestCreationError) Unwrap() error { return e.Err }

// FileUploadError names the file whose transfer was not acknowledged. Files
// before it in the flow stay uploaded.
type FileUploadError struct {
	RequestID string
	Phase     models.Phase
	Index     int
	FileName  string
	Err       error
}

func (e *FileUploadError) Error() string {
	return fmt.Sprintf("Upload failed for %s: %v", e.FileName, e.Err)
}

func (e *FileUploadError) Unwrap() error { return e.Err }

// CompletionError means every file was uploaded but the backend did not
// acknowledge the completion call.
type CompletionError struct {
	RequestID string
	Err       error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completing request %s failed: %v", e.RequestID, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }
