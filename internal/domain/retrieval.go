package domain

// ScoredChunk pairs a chunk with its normalized similarity to a query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64 // cosine similarity normalized to [0,1]
}

// RetrievalResult is the ephemeral outcome of one retrieval pass. It lives
// for a single query/response cycle and is never persisted.
type RetrievalResult struct {
	Chunks      []ScoredChunk
	QueryVector []float32
}
