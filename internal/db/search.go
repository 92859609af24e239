package db

// KNNQuery is the input for vector similarity search.
// FilterTagValues (when non-empty) pre-filters to hashes whose FilterTagField
// matches any of the given values.
type KNNQuery struct {
	IndexName       string
	Vector          []float32
	K               int
	FilterTagField  string
	FilterTagValues []string
	ReturnFields    []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64 // similarity in [0,1], already converted from cosine distance
	Fields map[string]string
}
