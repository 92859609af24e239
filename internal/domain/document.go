package domain

import "time"

// Format is the declared format of an uploaded document.
type Format string

const (
	// FormatText is plain UTF-8 text.
	FormatText Format = "txt"
	// FormatMarkdown is Markdown, ingested as plain text with markup retained.
	FormatMarkdown Format = "md"
	// FormatHTML is HTML, reduced to readable article text during extraction.
	FormatHTML Format = "html"
)

// DocumentStatus is the ingestion lifecycle state of a document.
type DocumentStatus string

const (
	// StatusPending means the document record exists but ingestion has not started.
	StatusPending DocumentStatus = "pending"
	// StatusProcessing means ingestion is running; at most one worker holds this state.
	StatusProcessing DocumentStatus = "processing"
	// StatusReady means all chunks are extracted, embedded, and indexed.
	StatusReady DocumentStatus = "ready"
	// StatusFailed means ingestion failed; FailReason carries the cause.
	StatusFailed DocumentStatus = "failed"
)

// Document is an uploaded document going through the ingestion lifecycle.
// A document is immutable once ready; deleting it cascades to its index chunks.
type Document struct {
	ID         string
	UserID     string
	Filename   string
	Format     Format
	Status     DocumentStatus
	FailReason string
	TextLength int
	ChunkCount int
	ContentSHA string // hex sha256 of the uploaded bytes, for idempotent re-ingest
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
