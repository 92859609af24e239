package chi

import (
	"time"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/usecase/chat"
)

// Error codes of the JSON error envelope.
const (
	codeBadRequest           = "bad_request"
	codeValidationFailed     = "validation_failed"
	codeUnauthorized         = "unauthorized"
	codeNotFound             = "not_found"
	codeDocumentNotFound     = "document_not_found"
	codeConversationNotFound = "conversation_not_found"
	codeUnsupportedFormat    = "unsupported_format"
	codeExtractionFailed     = "extraction_failed"
	codeInvalidMode          = "invalid_mode"
	codeFileTooLarge         = "file_too_large"
	codeIngestInProgress     = "ingest_in_progress"
	codeDocumentNotReady     = "document_not_ready"
	codeEmbeddingError       = "embedding_provider_error"
	codeGenerationError      = "generation_error"
	codeIndexError           = "index_error"
	codeBudgetExceeded       = "context_budget_exceeded"
	codeInternalError        = "internal_error"
)

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type documentResponse struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	Format     string    `json:"format"`
	Status     string    `json:"status"`
	FailReason string    `json:"fail_reason,omitempty"`
	TextLength int       `json:"text_length"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type documentListResponse struct {
	Items []documentResponse `json:"items"`
	Total int                `json:"total"`
}

type conversationResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Mode        string    `json:"mode"`
	DocumentIDs []string  `json:"document_ids,omitempty"`
	TotalTokens int       `json:"total_tokens"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type conversationListResponse struct {
	Items []conversationResponse `json:"items"`
	Total int                    `json:"total"`
}

type messageResponse struct {
	ID         string                   `json:"id"`
	Role       string                   `json:"role"`
	Content    string                   `json:"content"`
	Tokens     int                      `json:"tokens"`
	Seq        int                      `json:"seq"`
	Provenance []domain.ProvenanceEntry `json:"provenance,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
}

type conversationDetailResponse struct {
	conversationResponse
	Messages []messageResponse `json:"messages"`
}

type createConversationRequest struct {
	UserID       string   `json:"user_id"`
	Title        string   `json:"title"`
	Mode         string   `json:"mode"`
	DocumentIDs  []string `json:"document_ids"`
	FirstMessage string   `json:"first_message"`
}

type createConversationResponse struct {
	conversationResponse
	Messages []messageResponse `json:"messages,omitempty"`
	Warning  string            `json:"warning,omitempty"`
}

type generateMessageRequest struct {
	UserID  string `json:"user_id"`
	Content string `json:"content"`
}

type messageExchangeResponse struct {
	UserMessage      messageResponse `json:"user_message"`
	AssistantMessage messageResponse `json:"assistant_message"`
	Warning          string          `json:"warning,omitempty"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func documentToDTO(d *domain.Document) documentResponse {
	return documentResponse{
		ID:         d.ID,
		Filename:   d.Filename,
		Format:     string(d.Format),
		Status:     string(d.Status),
		FailReason: d.FailReason,
		TextLength: d.TextLength,
		ChunkCount: d.ChunkCount,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

func conversationToDTO(c *domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:          c.ID,
		Title:       c.Title,
		Mode:        string(c.Mode),
		DocumentIDs: c.DocumentIDs,
		TotalTokens: c.TotalTokens,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func messageToDTO(m *domain.Message) messageResponse {
	return messageResponse{
		ID:         m.ID,
		Role:       string(m.Role),
		Content:    m.Content,
		Tokens:     m.Tokens,
		Seq:        m.Seq,
		Provenance: m.Provenance,
		CreatedAt:  m.CreatedAt,
	}
}

func exchangeToDTO(resp *chat.Response) messageExchangeResponse {
	return messageExchangeResponse{
		UserMessage:      messageToDTO(resp.UserMessage),
		AssistantMessage: messageToDTO(resp.Message),
		Warning:          resp.Warning,
	}
}
