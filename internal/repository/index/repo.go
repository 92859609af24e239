// Package index stores document chunks as vector-indexed hashes and runs
// similarity search over them.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/kailas-cloud/chatdex/internal/db"
	"github.com/kailas-cloud/chatdex/internal/db/redis"
	"github.com/kailas-cloud/chatdex/internal/domain"
)

// store is the consumer interface for chunk index operations (ISP).
type store interface {
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
	DelAtomic(ctx context.Context, keys []string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// Config carries index layout parameters.
type Config struct {
	KeyPrefix       string
	Dimensions      int
	HNSWM           int
	HNSWEFConstruct int
}

// Repo implements chunk persistence and KNN retrieval over a single FT index.
type Repo struct {
	store store
	cfg   Config
}

// New creates a chunk index repository.
func New(s store, cfg Config) *Repo {
	return &Repo{store: s, cfg: cfg}
}

func (r *Repo) indexName() string {
	return r.cfg.KeyPrefix + "chunks:idx"
}

func (r *Repo) chunkKeyPrefix() string {
	return r.cfg.KeyPrefix + "chunk:"
}

func (r *Repo) chunkKey(documentID string, seq int) string {
	return r.chunkKeyPrefix() + domain.ChunkID(documentID, seq)
}

// EnsureIndex creates the chunk FT index if it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, r.indexName())
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def := &db.IndexDefinition{
		Name:     r.indexName(),
		Prefixes: []string{r.chunkKeyPrefix()},
		Fields: []db.IndexField{
			{Name: "document_id", Type: db.IndexFieldTag},
			{Name: "seq", Type: db.IndexFieldNumeric},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         r.cfg.Dimensions,
				VectorDistance:    db.DistanceCosine,
				VectorM:           r.cfg.HNSWM,
				VectorEFConstruct: r.cfg.HNSWEFConstruct,
			},
		},
	}

	if err := r.store.CreateIndex(ctx, def); err != nil {
		if errors.Is(err, db.ErrIndexExists) {
			return nil
		}
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

// UpsertChunks writes all chunks of a document in one pipelined round-trip.
// Keys are deterministic, so re-ingesting a document overwrites in place.
func (r *Repo) UpsertChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	items := make([]db.HashSetItem, len(chunks))
	for i, c := range chunks {
		items[i] = db.HashSetItem{
			Key: r.chunkKey(c.DocumentID, c.Seq),
			Fields: map[string]string{
				"document_id": c.DocumentID,
				"seq":         strconv.Itoa(c.Seq),
				"text":        c.Text,
				"start":       strconv.Itoa(c.Start),
				"end":         strconv.Itoa(c.End),
				"vector":      redis.VectorToBlob(c.Vector),
			},
		}
	}

	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// Search runs a KNN query scoped to the given documents. Results come back
// ordered by score descending, ties broken by chunk sequence ascending.
func (r *Repo) Search(ctx context.Context, vector []float32, documentIDs []string, k int) ([]domain.ScoredChunk, error) {
	q := &db.KNNQuery{
		IndexName:       r.indexName(),
		Vector:          vector,
		K:               k,
		FilterTagField:  "document_id",
		FilterTagValues: documentIDs,
		ReturnFields:    []string{"document_id", "seq", "text", "start", "end", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	if sr == nil || len(sr.Entries) == 0 {
		return nil, nil
	}

	scored := make([]domain.ScoredChunk, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		chunk, err := parseChunkFields(entry.Fields)
		if err != nil {
			return nil, fmt.Errorf("parse chunk %s: %w", entry.Key, err)
		}
		chunk.ID = domain.ChunkID(chunk.DocumentID, chunk.Seq)
		scored = append(scored, domain.ScoredChunk{Chunk: chunk, Score: entry.Score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].Chunk.Seq < scored[j].Chunk.Seq
	})

	return scored, nil
}

// DeleteByDocument removes every chunk key of a document in one atomic script
// call, so a concurrent search sees either all chunks or none.
func (r *Repo) DeleteByDocument(ctx context.Context, documentID string) error {
	pattern := r.chunkKeyPrefix() + documentID + ":*"
	keys, err := r.store.Scan(ctx, pattern)
	if err != nil {
		return fmt.Errorf("scan chunks: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.store.DelAtomic(ctx, keys); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

func parseChunkFields(fields map[string]string) (domain.Chunk, error) {
	seq, err := strconv.Atoi(fields["seq"])
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("bad seq %q", fields["seq"])
	}
	start, _ := strconv.Atoi(fields["start"])
	end, _ := strconv.Atoi(fields["end"])

	return domain.Chunk{
		DocumentID: fields["document_id"],
		Seq:        seq,
		Text:       fields["text"],
		Start:      start,
		End:        end,
	}, nil
}
