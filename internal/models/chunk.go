package models

// Chunk is the unit of retrieval: one fixed-size span of resume text.
type Chunk struct {
	ID     string
	Source string
	Page   int
	Index  int
	Size   int
	Text   string
}

// ScoredChunk pairs a retrieved chunk with its similarity score.
type ScoredChunk struct {
	Chunk
	Score float32
}
