package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrDocumentNotFound signals a missing document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrConversationNotFound signals a missing conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrUnsupportedFormat signals an unrecognized document format.
	ErrUnsupportedFormat = errors.New("unsupported document format")
	// ErrExtraction signals that text extraction failed or yielded nothing.
	ErrExtraction = errors.New("text extraction failed")
	// ErrFileTooLarge signals an upload exceeding the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmbedding signals an embedding provider failure or timeout.
	ErrEmbedding = errors.New("embedding provider error")
	// ErrIndex signals a vector index I/O failure.
	ErrIndex = errors.New("vector index error")
	// ErrGeneration signals a language model failure or timeout.
	ErrGeneration = errors.New("generation error")
	// ErrBudgetExceeded signals that the minimum required prompt content
	// does not fit the context token budget.
	ErrBudgetExceeded = errors.New("context budget exceeded")

	// ErrIngestInProgress signals a concurrent ingestion attempt for the same document.
	ErrIngestInProgress = errors.New("ingestion already in progress")
	// ErrDocumentNotReady signals an operation requiring a ready document.
	ErrDocumentNotReady = errors.New("document not ready")
	// ErrInvalidMode signals an unknown conversation mode.
	ErrInvalidMode = errors.New("invalid conversation mode")
)
