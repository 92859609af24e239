package retrieval

import (
	"context"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// Repository defines the chunk index contract for retrieval.
type Repository interface {
	Search(ctx context.Context, vector []float32, documentIDs []string, k int) ([]domain.ScoredChunk, error)
}

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
