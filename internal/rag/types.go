package rag

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_rag.go -package=mocks industryinsider/internal/rag Retriever,LLMClient,QueryEmbedder

import (
	"context"

	"industryinsider/internal/llm"
)

// Payload keys read back from retrieved chunks.
const (
	metaText       = "text"
	metaTitle      = "title"
	metaFileName   = "file_name"
	metaChunkIndex = "chunk_index"
	metaSourceURL  = "source_url"
)

// Document is a retrieved chunk.
type Document struct {
	// ID is the chunk ID (the Qdrant point ID).
	ID string
	// Text is the chunk text handed to the LLM as context.
	Text string
	// Meta carries the stored payload (title, file name, chunk index, source URL).
	Meta map[string]any
	// Score is retriever specific: cosine similarity, BM25 or fused RRF score.
	Score float64
}

// Source identifies the article a document came from.
type Source struct {
	Title      string `json:"title"`
	FileName   string `json:"file_name"`
	SourceURL  string `json:"source_url,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
}

// Source returns the article reference stored in the document payload.
func (d Document) Source() Source {
	return Source{
		Title:      metaString(d.Meta, metaTitle),
		FileName:   metaString(d.Meta, metaFileName),
		SourceURL:  metaString(d.Meta, metaSourceURL),
		ChunkIndex: metaInt(d.Meta, metaChunkIndex),
	}
}

// Retriever returns the documents relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]Document, error)
}

// LLMClient is the chat completion surface used by the chain.
type LLMClient interface {
	ChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams) (string, error)
	StreamChatWithMessages(ctx context.Context, messages []llm.Message, params llm.ChatParams, callback func(chunk string) error) error
}

// QueryEmbedder embeds a single search query.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

func metaString(meta map[string]any, key string) string {
	s, _ := meta[key].(string)
	return s
}

// metaInt accepts the integer shapes produced by Qdrant payloads and JSON decoding.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}
