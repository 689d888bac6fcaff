package rag

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/storage"
)

const (
	// DefaultKeywordK is the number of chunks returned by the keyword search.
	DefaultKeywordK = 5

	indexBatchSize = 500
)

var lexicalStopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "have": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {},
	"or": {}, "the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// keywordDoc is the shape indexed by bleve.
type keywordDoc struct {
	Text string `json:"text"`
}

// KeywordRetriever scores chunks by term relevance over an in-memory bleve
// index built from every stored chunk.
type KeywordRetriever struct {
	mu    sync.RWMutex
	index bleve.Index
	docs  map[string]Document
	k     int
}

// NewKeywordRetriever creates an empty keyword retriever. Call Rebuild to fill it.
func NewKeywordRetriever(k int) *KeywordRetriever {
	if k <= 0 {
		k = DefaultKeywordK
	}
	return &KeywordRetriever{k: k}
}

// Rebuild replaces the index with the chunks currently in the store and
// returns how many were indexed.
func (r *KeywordRetriever) Rebuild(ctx context.Context, store storage.ChunkStore) (int, error) {
	logger := contextutil.LoggerFromContext(ctx)

	chunks, err := store.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list chunks: %w", err)
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return 0, fmt.Errorf("failed to create keyword index: %w", err)
	}

	docs := make(map[string]Document, len(chunks))
	batch := index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, keywordDoc{Text: c.Text}); err != nil {
			_ = index.Close()
			return 0, fmt.Errorf("failed to index chunk %s: %w", c.ID, err)
		}
		docs[c.ID] = Document{
			ID:   c.ID,
			Text: c.Text,
			Meta: map[string]any{
				metaText:       c.Text,
				metaTitle:      c.Title,
				metaFileName:   c.FileName,
				metaChunkIndex: c.ChunkIndex,
				metaSourceURL:  c.SourceURL,
			},
		}

		if batch.Size() >= indexBatchSize {
			if err := index.Batch(batch); err != nil {
				_ = index.Close()
				return 0, fmt.Errorf("failed to write keyword index batch: %w", err)
			}
			batch.Reset()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			_ = index.Close()
			return 0, fmt.Errorf("failed to write keyword index batch: %w", err)
		}
	}

	r.mu.Lock()
	old := r.index
	r.index = index
	r.docs = docs
	r.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}

	logger.InfoContext(ctx, "keyword index rebuilt", "chunks", len(docs))
	return len(docs), nil
}

// Retrieve returns the top k chunks matching any non-stopword term of the query.
func (r *KeywordRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	terms := filterStopwords(tokenize(query))
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.index == nil {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(strings.Join(terms, " ")), r.k, 0, false)
	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("keyword search failed: %w", err)
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		doc, ok := r.docs[hit.ID]
		if !ok {
			continue
		}
		doc.Score = hit.Score
		docs = append(docs, doc)
	}

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "keyword retrieval completed", "terms", terms, "results", len(docs))
	return docs, nil
}

// Close releases the index.
func (r *KeywordRetriever) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.index == nil {
		return nil
	}
	err := r.index.Close()
	r.index = nil
	r.docs = nil
	return err
}

func tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var builder strings.Builder
	builder.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
		} else {
			builder.WriteRune(' ')
		}
	}
	tokens := strings.Fields(builder.String())
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

func filterStopwords(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}

	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if _, isStop := lexicalStopwords[token]; isStop {
			continue
		}
		result = append(result, token)
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
