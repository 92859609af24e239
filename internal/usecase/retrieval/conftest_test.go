package retrieval

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

// mockRepo implements Repository with function fields.
type mockRepo struct {
	searchFn func(ctx context.Context, vector []float32, documentIDs []string, k int) ([]domain.ScoredChunk, error)
}

func (m *mockRepo) Search(ctx context.Context, vector []float32, documentIDs []string, k int) ([]domain.ScoredChunk, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, vector, documentIDs, k)
	}
	return nil, nil
}

// mockEmbedder implements Embedder with function fields.
type mockEmbedder struct {
	embedFn func(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}}, nil
}

func newTestService(t *testing.T) (*Service, *mockRepo, *mockEmbedder) {
	t.Helper()
	mr := &mockRepo{}
	me := &mockEmbedder{}
	svc := New(mr, me, Config{TopK: 5, MinScore: 0.7}, zap.NewNop())
	return svc, mr, me
}

func chunkWithScore(docID string, seq int, score float64) domain.ScoredChunk {
	return domain.ScoredChunk{
		Chunk: domain.Chunk{
			ID:         domain.ChunkID(docID, seq),
			DocumentID: docID,
			Seq:        seq,
			Text:       "chunk text",
		},
		Score: score,
	}
}
