package ingest

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/chunker"
	"github.com/kailas-cloud/chatdex/internal/domain"
)

// mockRecords implements Records with function fields.
type mockRecords struct {
	createFn    func(ctx context.Context, doc *domain.Document) error
	getFn       func(ctx context.Context, userID, id string) (*domain.Document, error)
	listFn      func(ctx context.Context, userID string) ([]domain.Document, error)
	deleteFn    func(ctx context.Context, userID, id string) error
	findShaFn   func(ctx context.Context, userID, sha string) (*domain.Document, error)
	claimFn     func(ctx context.Context, id string) (bool, error)
	markReadyFn func(ctx context.Context, id string, textLength, chunkCount int) error
	markFailFn  func(ctx context.Context, id, reason string) error
}

func (m *mockRecords) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if m.createFn != nil {
		return m.createFn(ctx, doc)
	}
	return nil
}

func (m *mockRecords) GetDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID, id)
	}
	return &domain.Document{ID: id, UserID: userID, Status: domain.StatusReady}, nil
}

func (m *mockRecords) ListDocuments(ctx context.Context, userID string) ([]domain.Document, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRecords) DeleteDocument(ctx context.Context, userID, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, id)
	}
	return nil
}

func (m *mockRecords) FindByContentSHA(ctx context.Context, userID, sha string) (*domain.Document, error) {
	if m.findShaFn != nil {
		return m.findShaFn(ctx, userID, sha)
	}
	return nil, domain.ErrDocumentNotFound
}

func (m *mockRecords) ClaimForProcessing(ctx context.Context, id string) (bool, error) {
	if m.claimFn != nil {
		return m.claimFn(ctx, id)
	}
	return true, nil
}

func (m *mockRecords) MarkReady(ctx context.Context, id string, textLength, chunkCount int) error {
	if m.markReadyFn != nil {
		return m.markReadyFn(ctx, id, textLength, chunkCount)
	}
	return nil
}

func (m *mockRecords) MarkFailed(ctx context.Context, id, reason string) error {
	if m.markFailFn != nil {
		return m.markFailFn(ctx, id, reason)
	}
	return nil
}

// mockIndex implements Index with function fields.
type mockIndex struct {
	upsertFn func(ctx context.Context, chunks []domain.Chunk) error
	deleteFn func(ctx context.Context, documentID string) error
}

func (m *mockIndex) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, chunks)
	}
	return nil
}

func (m *mockIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, documentID)
	}
	return nil
}

// mockExtractor implements Extractor with function fields.
type mockExtractor struct {
	extractFn func(format domain.Format, data []byte) (string, error)
}

func (m *mockExtractor) Extract(format domain.Format, data []byte) (string, error) {
	if m.extractFn != nil {
		return m.extractFn(format, data)
	}
	return string(data), nil
}

// mockEmbedder implements Embedder with function fields.
type mockEmbedder struct {
	batchFn func(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error)
}

func (m *mockEmbedder) BatchEmbed(ctx context.Context, texts []string) (domain.BatchEmbeddingResult, error) {
	if m.batchFn != nil {
		return m.batchFn(ctx, texts)
	}
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = []float32{0.1, 0.2}
	}
	return domain.BatchEmbeddingResult{Embeddings: embeddings, TotalTokens: len(texts) * 4}, nil
}

type testDeps struct {
	records *mockRecords
	index   *mockIndex
	extract *mockExtractor
	embed   *mockEmbedder
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records: &mockRecords{},
		index:   &mockIndex{},
		extract: &mockExtractor{},
		embed:   &mockEmbedder{},
	}
	svc := New(
		deps.records, deps.index, deps.extract,
		chunker.New(50, 10), deps.embed,
		Config{MaxFileSizeBytes: 1024}, zap.NewNop(),
	)
	return svc, deps
}
