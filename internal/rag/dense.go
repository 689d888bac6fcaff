package rag

import (
	"context"
	"fmt"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/vectorstore"
)

// DefaultDenseK is the number of chunks returned by the vector search.
const DefaultDenseK = 4

// DenseRetriever embeds the query and runs a similarity search in Qdrant.
type DenseRetriever struct {
	embedder    QueryEmbedder
	vectorStore vectorstore.VectorStore
	collection  string
	k           int
}

// NewDenseRetriever creates a dense retriever returning the top k chunks.
func NewDenseRetriever(embedder QueryEmbedder, vs vectorstore.VectorStore, collection string, k int) *DenseRetriever {
	if k <= 0 {
		k = DefaultDenseK
	}
	return &DenseRetriever{
		embedder:    embedder,
		vectorStore: vs,
		collection:  collection,
		k:           k,
	}
}

// Retrieve returns the k nearest chunks to the query.
func (r *DenseRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	logger := contextutil.LoggerFromContext(ctx)

	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := r.vectorStore.Search(ctx, r.collection, vec, r.k, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search vector store: %w", err)
	}

	docs := make([]Document, 0, len(results))
	for _, res := range results {
		text := metaString(res.Meta, metaText)
		if text == "" {
			logger.WarnContext(ctx, "skipping point without text payload", "point_id", res.PointID)
			continue
		}
		docs = append(docs, Document{
			ID:    res.PointID,
			Text:  text,
			Meta:  res.Meta,
			Score: float64(res.Score),
		})
	}

	logger.DebugContext(ctx, "dense retrieval completed", "k", r.k, "results", len(docs))
	return docs, nil
}
