package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	chatuc "github.com/kailas-cloud/chatdex/internal/usecase/chat"
	healthuc "github.com/kailas-cloud/chatdex/internal/usecase/health"
	ingestuc "github.com/kailas-cloud/chatdex/internal/usecase/ingest"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server exposes the document and conversation API over chi.
type Server struct {
	documents     *ingestuc.Service
	chat          *chatuc.Service
	health        *healthuc.Service
	maxUpload     int64
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	documents *ingestuc.Service,
	chat *chatuc.Service,
	health *healthuc.Service,
	maxUpload int64,
	logger *zap.Logger,
) *Server {
	s := &Server{
		documents: documents,
		chat:      chat,
		health:    health,
		maxUpload: maxUpload,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, codeDocumentNotFound),
		sentinelHandler(domain.ErrConversationNotFound, http.StatusNotFound, codeConversationNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, codeNotFound),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusBadRequest, codeUnsupportedFormat),
		sentinelHandler(domain.ErrExtraction, http.StatusBadRequest, codeExtractionFailed),
		sentinelHandler(domain.ErrInvalidMode, http.StatusBadRequest, codeInvalidMode),
		sentinelHandler(domain.ErrBudgetExceeded, http.StatusBadRequest, codeBudgetExceeded),
		sentinelHandler(domain.ErrFileTooLarge, http.StatusRequestEntityTooLarge, codeFileTooLarge),
		sentinelHandler(domain.ErrIngestInProgress, http.StatusConflict, codeIngestInProgress),
		sentinelHandler(domain.ErrDocumentNotReady, http.StatusConflict, codeDocumentNotReady),
		sentinelHandler(domain.ErrEmbedding, http.StatusBadGateway, codeEmbeddingError),
		sentinelHandler(domain.ErrGeneration, http.StatusBadGateway, codeGenerationError),
		sentinelHandler(domain.ErrIndex, http.StatusInternalServerError, codeIndexError),
	}
	return s
}

// Routes mounts all API routes on the given router.
func (s *Server) Routes(r chi.Router) {
	r.Post("/documents", s.uploadDocument)
	r.Get("/documents", s.listDocuments)
	r.Get("/documents/{documentID}", s.getDocument)
	r.Delete("/documents/{documentID}", s.deleteDocument)

	r.Post("/conversations", s.createConversation)
	r.Get("/conversations", s.listConversations)
	r.Get("/conversations/{conversationID}", s.getConversation)
	r.Delete("/conversations/{conversationID}", s.deleteConversation)
	r.Post("/conversations/{conversationID}/messages", s.generateMessage)

	r.Get("/health", s.healthCheck)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
}

// uploadDocument handles POST /documents (multipart: file, user_id).
func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	// Leave headroom for the multipart framing around the file part.
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+64*1024)

	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, codeFileTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "file part is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "read upload: "+err.Error())
		return
	}

	docID, err := s.documents.Ingest(r.Context(), data, header.Filename, userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	doc, err := s.documents.Get(r.Context(), userID, docID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("/documents/%s", docID))
	writeJSON(w, http.StatusCreated, documentToDTO(doc))
}

// listDocuments handles GET /documents?user_id=.
func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	docs, err := s.documents.List(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]documentResponse, len(docs))
	for i := range docs {
		items[i] = documentToDTO(&docs[i])
	}
	writeJSON(w, http.StatusOK, documentListResponse{Items: items, Total: len(items)})
}

// getDocument handles GET /documents/{documentID}?user_id=.
func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	doc, err := s.documents.Get(r.Context(), userID, chi.URLParam(r, "documentID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToDTO(doc))
}

// deleteDocument handles DELETE /documents/{documentID}?user_id=.
func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := s.documents.Delete(r.Context(), userID, chi.URLParam(r, "documentID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createConversation handles POST /conversations.
func (s *Server) createConversation(w http.ResponseWriter, r *http.Request) {
	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}

	conv, err := s.chat.CreateConversation(
		r.Context(), req.UserID, req.Title, domain.Mode(req.Mode), req.DocumentIDs,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := createConversationResponse{conversationResponse: conversationToDTO(conv)}
	if req.FirstMessage != "" {
		gen, err := s.chat.GenerateResponse(r.Context(), req.UserID, conv.ID, req.FirstMessage)
		if err != nil {
			s.handleDomainError(w, err)
			return
		}
		resp.Messages = []messageResponse{messageToDTO(gen.UserMessage), messageToDTO(gen.Message)}
		resp.Warning = gen.Warning
	}

	w.Header().Set("Location", fmt.Sprintf("/conversations/%s", conv.ID))
	writeJSON(w, http.StatusCreated, resp)
}

// listConversations handles GET /conversations?user_id=.
func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	convs, err := s.chat.ListConversations(r.Context(), userID)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]conversationResponse, len(convs))
	for i := range convs {
		items[i] = conversationToDTO(&convs[i])
	}
	writeJSON(w, http.StatusOK, conversationListResponse{Items: items, Total: len(items)})
}

// getConversation handles GET /conversations/{conversationID}?user_id=.
func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	conv, msgs, err := s.chat.GetConversation(r.Context(), userID, chi.URLParam(r, "conversationID"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	resp := conversationDetailResponse{
		conversationResponse: conversationToDTO(conv),
		Messages:             make([]messageResponse, len(msgs)),
	}
	for i := range msgs {
		resp.Messages[i] = messageToDTO(&msgs[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteConversation handles DELETE /conversations/{conversationID}?user_id=.
func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := s.chat.DeleteConversation(r.Context(), userID, chi.URLParam(r, "conversationID")); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generateMessage handles POST /conversations/{conversationID}/messages.
func (s *Server) generateMessage(w http.ResponseWriter, r *http.Request) {
	var req generateMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id is required")
		return
	}
	if req.Content == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "content is required")
		return
	}

	resp, err := s.chat.GenerateResponse(
		r.Context(), req.UserID, chi.URLParam(r, "conversationID"), req.Content,
	)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exchangeToDTO(resp))
}

// healthCheck handles GET /health.
func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, healthResponse{Status: string(report.Status), Checks: checks})
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "user_id query parameter is required")
		return "", false
	}
	return userID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrConversationNotFound,
		domain.ErrNotFound,
		domain.ErrUnsupportedFormat,
		domain.ErrExtraction,
		domain.ErrInvalidMode,
		domain.ErrBudgetExceeded,
		domain.ErrFileTooLarge,
		domain.ErrIngestInProgress,
		domain.ErrDocumentNotReady,
		domain.ErrEmbedding,
		domain.ErrGeneration,
		domain.ErrIndex,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
