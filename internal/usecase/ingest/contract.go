package ingest

import (
	"context"

	"github.com/kailas-cloud/chatdex/internal/chunker"
	"github.com/kailas-cloud/chatdex/internal/domain"
)

// Records is the system-of-record contract for document metadata.
type Records interface {
	CreateDocument(ctx context.Context, doc *domain.Document) error
	GetDocument(ctx context.Context, userID, id string) (*domain.Document, error)
	ListDocuments(ctx context.Context, userID string) ([]domain.Document, error)
	DeleteDocument(ctx context.Context, userID, id string) error
	FindByContentSHA(ctx context.Context, userID, sha string) (*domain.Document, error)
	ClaimForProcessing(ctx context.Context, id string) (bool, error)
	MarkReady(ctx context.Context, id string, textLength, chunkCount int) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Index is the vector index contract for chunk persistence.
type Index interface {
	UpsertChunks(ctx context.Context, chunks []domain.Chunk) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Extractor converts raw document bytes into plain text.
type Extractor interface {
	Extract(format domain.Format, data []byte) (string, error)
}

// Chunker splits extracted text into overlapping pieces.
type Chunker interface {
	Split(text string) []chunker.Piece
}

// Embedder vectorizes document chunks in batch.
type Embedder interface {
	BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}
