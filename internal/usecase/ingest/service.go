// Package ingest runs the document ingestion pipeline: extract, chunk,
// embed, index.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/extract"
)

// Config carries ingestion limits.
type Config struct {
	MaxFileSizeBytes int64
}

// Service implements document ingestion and lifecycle management.
type Service struct {
	records   Records
	index     Index
	extractor Extractor
	chunker   Chunker
	embed     Embedder
	cfg       Config
	logger    *zap.Logger
}

// New creates an ingestion service.
func New(
	records Records, index Index, extractor Extractor,
	chunker Chunker, embed Embedder, cfg Config, logger *zap.Logger,
) *Service {
	return &Service{
		records:   records,
		index:     index,
		extractor: extractor,
		chunker:   chunker,
		embed:     embed,
		cfg:       cfg,
		logger:    logger,
	}
}

// Ingest runs the full pipeline for an uploaded document and returns its ID.
// Re-uploading identical content returns the existing ready document without
// reprocessing. A document that previously failed is claimed and retried.
func (s *Service) Ingest(ctx context.Context, data []byte, filename, userID string) (string, error) {
	if s.cfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.cfg.MaxFileSizeBytes {
		return "", fmt.Errorf("%w: %d bytes (limit %d)", domain.ErrFileTooLarge, len(data), s.cfg.MaxFileSizeBytes)
	}

	format, err := extract.DetectFormat(filename)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(data)
	contentSHA := hex.EncodeToString(sum[:])

	doc, err := s.resolveDocument(ctx, userID, filename, format, contentSHA)
	if err != nil {
		return "", err
	}
	if doc.Status == domain.StatusReady {
		s.logger.Info("Duplicate upload, returning existing document",
			zap.String("document_id", doc.ID),
			zap.String("user_id", userID),
		)
		return doc.ID, nil
	}

	claimed, err := s.records.ClaimForProcessing(ctx, doc.ID)
	if err != nil {
		return "", fmt.Errorf("claim document: %w", err)
	}
	if !claimed {
		return "", fmt.Errorf("%w: document %s", domain.ErrIngestInProgress, doc.ID)
	}

	if err := s.process(ctx, doc, data); err != nil {
		s.fail(ctx, doc.ID, err)
		return "", err
	}

	return doc.ID, nil
}

// resolveDocument finds an existing document for identical content or
// creates a fresh pending record.
func (s *Service) resolveDocument(
	ctx context.Context, userID, filename string, format domain.Format, contentSHA string,
) (*domain.Document, error) {
	existing, err := s.records.FindByContentSHA(ctx, userID, contentSHA)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("find by content sha: %w", err)
	}

	now := time.Now()
	doc := &domain.Document{
		ID:         uuid.NewString(),
		UserID:     userID,
		Filename:   filename,
		Format:     format,
		Status:     domain.StatusPending,
		ContentSHA: contentSHA,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.records.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return doc, nil
}

// process runs extract, chunk, embed and index, then marks the document
// ready. Partially indexed chunks are rolled back on any failure, so the
// index holds either all of a document's chunks or none.
func (s *Service) process(ctx context.Context, doc *domain.Document, data []byte) error {
	start := time.Now()

	text, err := s.extractor.Extract(doc.Format, data)
	if err != nil {
		return err
	}

	pieces := s.chunker.Split(text)
	if len(pieces) == 0 {
		return fmt.Errorf("%w: no chunks produced", domain.ErrExtraction)
	}

	texts := make([]string, len(pieces))
	for i, p := range pieces {
		texts[i] = p.Text
	}

	batch, err := s.embed.BatchEmbed(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}
	if len(batch.Embeddings) != len(pieces) {
		return fmt.Errorf("%w: got %d embeddings for %d chunks",
			domain.ErrEmbedding, len(batch.Embeddings), len(pieces))
	}

	chunks := make([]domain.Chunk, len(pieces))
	for i, p := range pieces {
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.ID, i),
			DocumentID: doc.ID,
			Seq:        i,
			Text:       p.Text,
			Start:      p.Start,
			End:        p.End,
			Vector:     batch.Embeddings[i],
		}
	}

	if err := s.index.UpsertChunks(ctx, chunks); err != nil {
		s.rollbackChunks(ctx, doc.ID)
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}

	if err := s.records.MarkReady(context.WithoutCancel(ctx), doc.ID, len(text), len(chunks)); err != nil {
		s.rollbackChunks(ctx, doc.ID)
		return fmt.Errorf("mark ready: %w", err)
	}

	s.logger.Info("Document ingested",
		zap.String("document_id", doc.ID),
		zap.String("user_id", doc.UserID),
		zap.Int("text_length", len(text)),
		zap.Int("chunks", len(chunks)),
		zap.Int("embedding_tokens", batch.TotalTokens),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

// fail records the failure reason. The write must survive request
// cancellation, otherwise the document stays stuck in processing.
func (s *Service) fail(ctx context.Context, documentID string, cause error) {
	ctx = context.WithoutCancel(ctx)
	if err := s.records.MarkFailed(ctx, documentID, cause.Error()); err != nil {
		s.logger.Error("Failed to record ingestion failure",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

func (s *Service) rollbackChunks(ctx context.Context, documentID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		s.logger.Error("Failed to roll back chunks",
			zap.String("document_id", documentID),
			zap.Error(err),
		)
	}
}

// Get returns a document owned by userID.
func (s *Service) Get(ctx context.Context, userID, id string) (*domain.Document, error) {
	return s.records.GetDocument(ctx, userID, id)
}

// List returns all documents owned by userID.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Document, error) {
	return s.records.ListDocuments(ctx, userID)
}

// Delete removes a document's chunks from the index, then its record.
// Chunk deletion is atomic, so concurrent retrieval never sees a partial set.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.records.GetDocument(ctx, userID, id); err != nil {
		return err
	}

	if err := s.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}

	if err := s.records.DeleteDocument(ctx, userID, id); err != nil {
		return fmt.Errorf("delete document record: %w", err)
	}

	s.logger.Info("Document deleted",
		zap.String("document_id", id),
		zap.String("user_id", userID),
	)
	return nil
}
