package domain

import "fmt"

// Chunk is a contiguous segment of a document's extracted text, embedded
// independently for retrieval. Offsets index into the parent text; chunk
// texts of consecutive sequence numbers may overlap by at most the
// configured overlap width.
type Chunk struct {
	ID         string
	DocumentID string
	Seq        int
	Text       string
	Start      int // inclusive character offset into the extracted text
	End        int // exclusive character offset
	Vector     []float32
}

// ChunkID builds the canonical chunk identifier. Deterministic so that
// re-ingesting the same document replaces chunks instead of duplicating them.
func ChunkID(documentID string, seq int) string {
	return fmt.Sprintf("%s:%d", documentID, seq)
}
