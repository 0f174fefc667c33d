package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput signals a request or record the system refuses to process.
	ErrInvalidInput = errors.New("invalid input")
	// ErrEmbeddingService signals a network, auth or service failure from the embedding endpoint.
	ErrEmbeddingService = errors.New("embedding service error")
	// ErrProvision signals an index create/update failure.
	ErrProvision = errors.New("index provisioning failed")
	// ErrUpload signals a document upload failure.
	ErrUpload = errors.New("document upload failed")
	// ErrQuery signals a search request failure.
	ErrQuery = errors.New("query failed")
	// ErrIndexNotFound signals a missing search index.
	ErrIndexNotFound = errors.New("index not found")
	// ErrVectorDimMismatch signals a vector whose length differs from the declared dimensions.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
	// ErrSemanticNotSupported signals that the backend lacks semantic reranking.
	ErrSemanticNotSupported = errors.New("semantic search not supported by backend")
)

// EmbeddingServiceError carries the upstream status and message of a failed embedding call.
// Status is 0 when the request never reached the service.
type EmbeddingServiceError struct {
	Status  int
	Message string
}

func (e *EmbeddingServiceError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", ErrEmbeddingService.Error(), e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrEmbeddingService.Error(), e.Status, e.Message)
}

func (e *EmbeddingServiceError) Unwrap() error { return ErrEmbeddingService }

// UploadError lists the document keys the index rejected.
type UploadError struct {
	FailedKeys []string
	Messages   []string
}

func (e *UploadError) Error() string {
	msg := fmt.Sprintf("%s: %d document(s) rejected", ErrUpload.Error(), len(e.FailedKeys))
	if len(e.FailedKeys) > 0 {
		msg += " [" + strings.Join(e.FailedKeys, ", ") + "]"
	}
	if len(e.Messages) > 0 && e.Messages[0] != "" {
		msg += ": " + e.Messages[0]
	}
	return msg
}

func (e *UploadError) Unwrap() error { return ErrUpload }
