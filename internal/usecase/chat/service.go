// Package chat orchestrates conversations: mode-dependent retrieval, prompt
// assembly and response generation.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
	"github.com/kailas-cloud/chatdex/internal/usecase/prompt"
)

const (
	defaultTitle = "New conversation"
	maxTitleLen  = 60

	// WarningNoDocuments flags a grounded request answered without context
	// because the conversation has no associated documents.
	WarningNoDocuments = "conversation is grounded but has no documents; answered without document context"
)

// Config carries chat orchestration parameters.
type Config struct {
	Model string // label for metrics and logs
}

// Response is a generated assistant message plus orchestration flags.
// UserMessage is the persisted user turn that triggered the generation.
type Response struct {
	UserMessage *domain.Message
	Message     *domain.Message
	Warning     string
}

// Service implements conversation lifecycle and response generation.
type Service struct {
	records   Records
	retriever Retriever
	assembler Assembler
	generator Generator
	cfg       Config
	logger    *zap.Logger
}

// New creates a chat service.
func New(
	records Records, retriever Retriever, assembler Assembler,
	generator Generator, cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		records:   records,
		retriever: retriever,
		assembler: assembler,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
}

// CreateConversation starts a conversation. Mode is fixed for the
// conversation's lifetime. Grounded conversations may reference only
// documents that are owned by the user and fully ingested. An empty
// title falls back to the default until the first user message arrives.
func (s *Service) CreateConversation(
	ctx context.Context, userID, title string, mode domain.Mode, documentIDs []string,
) (*domain.Conversation, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidMode, mode)
	}
	if mode == domain.ModeOpenChat && len(documentIDs) > 0 {
		return nil, fmt.Errorf("%w: open_chat conversations cannot reference documents", domain.ErrInvalidMode)
	}

	for _, docID := range documentIDs {
		doc, err := s.records.GetDocument(ctx, userID, docID)
		if err != nil {
			return nil, err
		}
		if doc.Status != domain.StatusReady {
			return nil, fmt.Errorf("%w: document %s is %s", domain.ErrDocumentNotReady, docID, doc.Status)
		}
	}

	if title == "" {
		title = defaultTitle
	}

	now := time.Now()
	conv := &domain.Conversation{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Mode:        mode,
		DocumentIDs: documentIDs,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.records.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	s.logger.Info("Conversation created",
		zap.String("conversation_id", conv.ID),
		zap.String("user_id", userID),
		zap.String("mode", string(mode)),
		zap.Int("documents", len(documentIDs)),
	)
	return conv, nil
}

// GetConversation returns a conversation with its messages.
func (s *Service) GetConversation(ctx context.Context, userID, id string) (*domain.Conversation, []domain.Message, error) {
	conv, err := s.records.GetConversation(ctx, userID, id)
	if err != nil {
		return nil, nil, err
	}
	msgs, err := s.records.ListMessages(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list messages: %w", err)
	}
	return conv, msgs, nil
}

// ListConversations returns all of a user's conversations.
func (s *Service) ListConversations(ctx context.Context, userID string) ([]domain.Conversation, error) {
	return s.records.ListConversations(ctx, userID)
}

// DeleteConversation removes a conversation and its messages.
func (s *Service) DeleteConversation(ctx context.Context, userID, id string) error {
	return s.records.DeleteConversation(ctx, userID, id)
}

// GenerateResponse appends the user message, runs retrieval when the
// conversation is grounded, assembles the prompt and generates the answer.
// A generation failure leaves the history unchanged beyond the user message.
func (s *Service) GenerateResponse(
	ctx context.Context, userID, conversationID, userMessage string,
) (*Response, error) {
	start := time.Now()

	conv, err := s.records.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        userMessage,
		Tokens:         prompt.EstimateTokens(userMessage),
		CreatedAt:      time.Now(),
	}
	if err := s.records.AppendMessage(ctx, userMsg); err != nil {
		return nil, fmt.Errorf("append user message: %w", err)
	}
	if userMsg.Seq == 0 && conv.Title == defaultTitle {
		if err := s.records.SetTitle(ctx, conv.ID, makeTitle(userMessage)); err != nil {
			s.logger.Warn("Failed to set conversation title", zap.Error(err))
		}
	}

	reqLogger := s.logger.With(zap.String("conversation_id", conv.ID))
	reqLogger.Debug("Generation state", zap.String("state", "received"))

	resp, err := s.generate(ctx, reqLogger, conv, userMsg)

	status := "ok"
	if err != nil {
		status = "error"
		reqLogger.Debug("Generation state", zap.String("state", "failed"))
	}
	metrics.GenerationRequestsTotal.WithLabelValues(s.cfg.Model, string(conv.Mode), status).Inc()
	if err != nil {
		return nil, err
	}
	reqLogger.Debug("Generation state", zap.String("state", "completed"))

	s.logger.Info("Response generated",
		zap.String("conversation_id", conv.ID),
		zap.String("mode", string(conv.Mode)),
		zap.Int("provenance_chunks", len(resp.Message.Provenance)),
		zap.Duration("duration", time.Since(start)),
	)
	return resp, nil
}

func (s *Service) generate(
	ctx context.Context, logger *zap.Logger, conv *domain.Conversation, userMsg *domain.Message,
) (*Response, error) {
	var warning string
	var chunks []domain.ScoredChunk
	mode := conv.Mode

	if mode == domain.ModeGrounded {
		if len(conv.DocumentIDs) == 0 {
			warning = WarningNoDocuments
			mode = domain.ModeOpenChat
		} else {
			logger.Debug("Generation state", zap.String("state", "retrieving"))
			result, err := s.retriever.Retrieve(ctx, userMsg.Content, conv.DocumentIDs)
			if err != nil {
				return nil, err
			}
			chunks = result.Chunks
		}
	}

	history, err := s.records.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	logger.Debug("Generation state", zap.String("state", "assembling"))
	assembled, err := s.assembler.Assemble(mode, history, chunks)
	if err != nil {
		return nil, err
	}

	logger.Debug("Generation state", zap.String("state", "generating"))
	genStart := time.Now()
	result, err := s.generator.Generate(ctx, assembled.Messages)
	metrics.GenerationRequestDuration.WithLabelValues(s.cfg.Model).Observe(time.Since(genStart).Seconds())
	if err != nil {
		return nil, err
	}

	completionTokens := result.CompletionTokens
	if completionTokens == 0 {
		completionTokens = prompt.EstimateTokens(result.Content)
	}
	metrics.GenerationTokensTotal.WithLabelValues(s.cfg.Model, "prompt").Add(float64(result.PromptTokens))
	metrics.GenerationTokensTotal.WithLabelValues(s.cfg.Model, "completion").Add(float64(completionTokens))

	assistantMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        result.Content,
		Tokens:         completionTokens,
		Provenance:     provenanceOf(conv.Mode, assembled.UsedChunks),
		CreatedAt:      time.Now(),
	}
	if err := s.records.AppendMessage(ctx, assistantMsg); err != nil {
		return nil, fmt.Errorf("append assistant message: %w", err)
	}

	if err := s.records.AddTokens(ctx, conv.ID, userMsg.Tokens+completionTokens); err != nil {
		s.logger.Warn("Failed to update conversation token total", zap.Error(err))
	}

	return &Response{UserMessage: userMsg, Message: assistantMsg, Warning: warning}, nil
}

// provenanceOf lists the chunks that informed the answer. Only grounded
// conversations carry provenance.
func provenanceOf(mode domain.Mode, chunks []domain.ScoredChunk) []domain.ProvenanceEntry {
	if mode != domain.ModeGrounded || len(chunks) == 0 {
		return nil
	}
	entries := make([]domain.ProvenanceEntry, len(chunks))
	for i, c := range chunks {
		entries[i] = domain.ProvenanceEntry{
			ChunkID:    c.Chunk.ID,
			DocumentID: c.Chunk.DocumentID,
			Score:      c.Score,
		}
	}
	return entries
}

// makeTitle derives a conversation title from the first user message.
func makeTitle(message string) string {
	title := strings.Join(strings.Fields(message), " ")
	if title == "" {
		return defaultTitle
	}
	if len(title) <= maxTitleLen {
		return title
	}

	cut := title[:maxTitleLen]
	if i := strings.LastIndexByte(cut, ' '); i > maxTitleLen/2 {
		cut = cut[:i]
	}
	return cut + "..."
}
