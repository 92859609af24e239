// Package retrieval embeds a query and finds the most similar document
// chunks above a similarity threshold.
package retrieval

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/chatdex/internal/domain"
	"github.com/kailas-cloud/chatdex/internal/metrics"
)

// Config carries retrieval tuning parameters.
type Config struct {
	TopK     int
	MinScore float64
}

// Service retrieves relevant chunks for a query, scoped to a document set.
type Service struct {
	repo   Repository
	embed  Embedder
	cfg    Config
	logger *zap.Logger
}

// New creates a retrieval service.
func New(repo Repository, embed Embedder, cfg Config, logger *zap.Logger) *Service {
	return &Service{repo: repo, embed: embed, cfg: cfg, logger: logger}
}

// Retrieve embeds the query and returns up to TopK chunks from the given
// documents with similarity at or above MinScore, ordered by score
// descending with ties broken by chunk sequence.
func (s *Service) Retrieve(
	ctx context.Context, query string, documentIDs []string,
) (*domain.RetrievalResult, error) {
	if len(documentIDs) == 0 {
		return &domain.RetrievalResult{}, nil
	}

	embResult, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	scored, err := s.repo.Search(ctx, embResult.Embedding, documentIDs, s.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndex, err)
	}

	// Post-filter: min_score
	filtered := scored[:0]
	for _, sc := range scored {
		if sc.Score >= s.cfg.MinScore {
			filtered = append(filtered, sc)
		}
	}
	if len(filtered) > s.cfg.TopK {
		filtered = filtered[:s.cfg.TopK]
	}

	metrics.RetrievedChunks.Observe(float64(len(filtered)))
	s.logger.Debug("Retrieval completed",
		zap.Int("candidates", len(scored)),
		zap.Int("kept", len(filtered)),
		zap.Int("documents", len(documentIDs)),
	)

	return &domain.RetrievalResult{
		Chunks:      filtered,
		QueryVector: embResult.Embedding,
	}, nil
}
