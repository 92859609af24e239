package chat

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

// mockRecords implements Records with function fields. AppendMessage keeps
// an in-memory log so history assertions stay simple.
type mockRecords struct {
	createConvFn func(ctx context.Context, conv *domain.Conversation) error
	getConvFn    func(ctx context.Context, userID, id string) (*domain.Conversation, error)
	listConvFn   func(ctx context.Context, userID string) ([]domain.Conversation, error)
	deleteConvFn func(ctx context.Context, userID, id string) error
	setTitleFn   func(ctx context.Context, id, title string) error
	addTokensFn  func(ctx context.Context, id string, tokens int) error
	getDocFn     func(ctx context.Context, userID, id string) (*domain.Document, error)

	appended []domain.Message
	titles   []string
}

func (m *mockRecords) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	if m.createConvFn != nil {
		return m.createConvFn(ctx, conv)
	}
	return nil
}

func (m *mockRecords) GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, error) {
	if m.getConvFn != nil {
		return m.getConvFn(ctx, userID, id)
	}
	return &domain.Conversation{ID: id, UserID: userID, Title: "New conversation", Mode: domain.ModeOpenChat}, nil
}

func (m *mockRecords) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	if m.listConvFn != nil {
		return m.listConvFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockRecords) DeleteConversation(ctx context.Context, userID, id string) error {
	if m.deleteConvFn != nil {
		return m.deleteConvFn(ctx, userID, id)
	}
	return nil
}

func (m *mockRecords) SetTitle(ctx context.Context, id, title string) error {
	m.titles = append(m.titles, title)
	if m.setTitleFn != nil {
		return m.setTitleFn(ctx, id, title)
	}
	return nil
}

func (m *mockRecords) AddTokens(ctx context.Context, id string, tokens int) error {
	if m.addTokensFn != nil {
		return m.addTokensFn(ctx, id, tokens)
	}
	return nil
}

func (m *mockRecords) AppendMessage(_ context.Context, msg *domain.Message) error {
	msg.Seq = len(m.appended)
	m.appended = append(m.appended, *msg)
	return nil
}

func (m *mockRecords) ListMessages(_ context.Context, _ string) ([]domain.Message, error) {
	out := make([]domain.Message, len(m.appended))
	copy(out, m.appended)
	return out, nil
}

func (m *mockRecords) GetDocument(ctx context.Context, userID, id string) (*domain.Document, error) {
	if m.getDocFn != nil {
		return m.getDocFn(ctx, userID, id)
	}
	return &domain.Document{ID: id, UserID: userID, Status: domain.StatusReady}, nil
}

// mockRetriever implements Retriever with function fields.
type mockRetriever struct {
	retrieveFn func(ctx context.Context, query string, documentIDs []string) (*domain.RetrievalResult, error)
	calls      int
}

func (m *mockRetriever) Retrieve(ctx context.Context, query string, documentIDs []string) (*domain.RetrievalResult, error) {
	m.calls++
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, query, documentIDs)
	}
	return &domain.RetrievalResult{}, nil
}

// mockAssembler implements Assembler with function fields.
type mockAssembler struct {
	assembleFn func(mode domain.Mode, history []domain.Message, chunks []domain.ScoredChunk) (*prompt.Assembled, error)
}

func (m *mockAssembler) Assemble(mode domain.Mode, history []domain.Message, chunks []domain.ScoredChunk) (*prompt.Assembled, error) {
	if m.assembleFn != nil {
		return m.assembleFn(mode, history, chunks)
	}
	msgs := []prompt.Message{{Role: domain.RoleSystem, Content: "system"}}
	for _, h := range history {
		msgs = append(msgs, prompt.Message{Role: h.Role, Content: h.Content})
	}
	return &prompt.Assembled{Messages: msgs, UsedChunks: chunks}, nil
}

// mockGenerator implements Generator with function fields.
type mockGenerator struct {
	generateFn func(ctx context.Context, messages []prompt.Message) (domain.GenerationResult, error)
	calls      int
}

func (m *mockGenerator) Generate(ctx context.Context, messages []prompt.Message) (domain.GenerationResult, error) {
	m.calls++
	if m.generateFn != nil {
		return m.generateFn(ctx, messages)
	}
	return domain.GenerationResult{Content: "generated answer", CompletionTokens: 3}, nil
}

type testDeps struct {
	records   *mockRecords
	retriever *mockRetriever
	assembler *mockAssembler
	generator *mockGenerator
}

func newTestService(t *testing.T) (*Service, *testDeps) {
	t.Helper()
	deps := &testDeps{
		records:   &mockRecords{},
		retriever: &mockRetriever{},
		assembler: &mockAssembler{},
		generator: &mockGenerator{},
	}
	svc := New(
		deps.records, deps.retriever, deps.assembler, deps.generator,
		Config{Model: "test-model"}, zap.NewNop(),
	)
	return svc, deps
}
