package chat

import (
	"context"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

// Records is the system-of-record contract for conversations and messages.
type Records interface {
	CreateConversation(ctx context.Context, conv *domain.Conversation) error
	GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, error)
	ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error)
	DeleteConversation(ctx context.Context, userID, id string) error
	SetTitle(ctx context.Context, id, title string) error
	AddTokens(ctx context.Context, id string, tokens int) error
	AppendMessage(ctx context.Context, msg *domain.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
	GetDocument(ctx context.Context, userID, id string) (*domain.Document, error)
}

// Retriever finds relevant chunks for a query within a document set.
type Retriever interface {
	Retrieve(ctx context.Context, query string, documentIDs []string) (*domain.RetrievalResult, error)
}

// Assembler builds a budget-fitted prompt from history and chunks.
type Assembler interface {
	Assemble(mode domain.Mode, history []domain.Message, chunks []domain.ScoredChunk) (*prompt.Assembled, error)
}

// Generator invokes the language model with an assembled prompt.
type Generator interface {
	Generate(ctx context.Context, messages []prompt.Message) (domain.GenerationResult, error)
}
