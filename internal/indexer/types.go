package indexer

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_indexer.go -package=mocks industryinsider/internal/indexer Embedder,Chunker

import "context"

// Chunk represents a token-bounded piece of an article.
type Chunk struct {
	Index      int    // Chunk index within the article (starts at 0)
	Text       string // Chunk text content
	TokenCount int    // Tokens in Text under the configured tiktoken encoding
}

// Embedder turns texts into vectors, one per input, in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits an article into chunks.
type Chunker interface {
	Chunk(ctx context.Context, text string) ([]Chunk, error)
}
