package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/corpus"
	"industryinsider/internal/metrics"
	"industryinsider/internal/storage"
	"industryinsider/internal/vectorstore"
)

// Payload keys stored with every Qdrant point.
const (
	MetaText       = "text"
	MetaTitle      = "title"
	MetaFileName   = "file_name"
	MetaArticleID  = "article_id"
	MetaChunkIndex = "chunk_index"
	MetaTokenCount = "token_count"
	MetaSourceURL  = "source_url"
)

// Pipeline orchestrates the indexing of article files into SQLite and Qdrant.
type Pipeline struct {
	corpus       *corpus.Corpus
	articleRepo  storage.ArticleStore
	chunkRepo    storage.ChunkStore
	chunker      Chunker
	embedder     Embedder
	vectorStore  vectorstore.VectorStore
	collection   string
	indexVersion string
	metrics      *metrics.Metrics
}

// NewPipeline creates a new indexing pipeline.
func NewPipeline(
	c *corpus.Corpus,
	articleRepo storage.ArticleStore,
	chunkRepo storage.ChunkStore,
	chunker Chunker,
	embedder Embedder,
	vectorStore vectorstore.VectorStore,
	collection string,
	indexVersion string,
	m *metrics.Metrics,
) *Pipeline {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &Pipeline{
		corpus:       c,
		articleRepo:  articleRepo,
		chunkRepo:    chunkRepo,
		chunker:      chunker,
		embedder:     embedder,
		vectorStore:  vectorStore,
		collection:   collection,
		indexVersion: indexVersion,
		metrics:      m,
	}
}

// ChunkAll chunks every article file without storing anything.
func (p *Pipeline) ChunkAll(ctx context.Context) ([]Chunk, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.corpus.Scan(ctx)
	if err != nil {
		return nil, err
	}

	var all []Chunk
	for _, f := range files {
		content, _, err := corpus.Read(f)
		if err != nil {
			return nil, err
		}
		chunks, err := p.chunker.Chunk(ctx, content)
		if err != nil {
			return nil, fmt.Errorf("failed to chunk %s: %w", f.Name, err)
		}
		all = append(all, chunks...)
	}

	logger.InfoContext(ctx, "chunked articles", "files", len(files), "chunks", len(all))
	return all, nil
}

// IndexAll indexes every article file in the data directory. The first error stops the run.
func (p *Pipeline) IndexAll(ctx context.Context) (*RunStats, error) {
	logger := contextutil.LoggerFromContext(ctx)

	files, err := p.corpus.Scan(ctx)
	if err != nil {
		return nil, err
	}

	stats := &RunStats{FilesScanned: len(files), IndexVersion: p.indexVersion}
	logger.InfoContext(ctx, "starting indexing", "total_files", len(files), "index_version", p.indexVersion)

	var written []Chunk
	for _, f := range files {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		chunks, indexed, err := p.IndexArticle(ctx, f)
		if err != nil {
			return stats, fmt.Errorf("failed to index %s: %w", f.Name, err)
		}
		if !indexed {
			stats.FilesSkipped++
			continue
		}
		stats.FilesIndexed++
		written = append(written, chunks...)
	}

	stats.ChunksIndexed = len(written)
	stats.ChunkTokenStats = ComputeTokenStats(written)

	logger.InfoContext(ctx, "indexing completed",
		"indexed", stats.FilesIndexed,
		"skipped", stats.FilesSkipped,
		"chunks", stats.ChunksIndexed,
		"max_tokens", stats.ChunkTokenStats.Max,
		"p95_tokens", stats.ChunkTokenStats.P95,
	)
	return stats, nil
}

// IndexArticle indexes a single article file. An article whose content hash
// is unchanged and which already has chunks is skipped; indexed reports
// whether any work was done.
func (p *Pipeline) IndexArticle(ctx context.Context, f corpus.File) (chunks []Chunk, indexed bool, err error) {
	logger := contextutil.LoggerFromContext(ctx)

	content, hash, err := corpus.Read(f)
	if err != nil {
		return nil, false, err
	}

	existing, err := p.articleRepo.GetByFileName(ctx, f.Name)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to check existing article: %w", err)
	}

	var oldChunkIDs []string
	if existing != nil {
		if oldChunkIDs, err = p.chunkRepo.ListIDsByArticle(ctx, existing.ID); err != nil {
			return nil, false, fmt.Errorf("failed to list old chunk IDs: %w", err)
		}
		if existing.Hash == hash && len(oldChunkIDs) > 0 {
			logger.DebugContext(ctx, "skipping unchanged file", "file", f.Name, "hash", hash)
			return nil, false, nil
		}
	}

	chunks, err = p.chunker.Chunk(ctx, content)
	if err != nil {
		return nil, false, fmt.Errorf("failed to chunk article: %w", err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	var embeddings [][]float32
	if len(texts) > 0 {
		if embeddings, err = p.embedder.EmbedTexts(ctx, texts); err != nil {
			return nil, false, fmt.Errorf("failed to generate embeddings: %w", err)
		}
		if len(embeddings) != len(chunks) {
			return nil, false, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(embeddings))
		}
	}

	// The hash is written last so an interrupted run is retried.
	article := &storage.ArticleRecord{
		FileName: f.Name,
		Title:    corpus.Title(content),
	}
	if existing != nil {
		article.SourceURL = existing.SourceURL
	}
	if err := p.articleRepo.Upsert(ctx, article); err != nil {
		return nil, false, fmt.Errorf("failed to upsert article: %w", err)
	}

	if len(oldChunkIDs) > 0 {
		if err := p.vectorStore.Delete(ctx, p.collection, oldChunkIDs); err != nil {
			return nil, false, fmt.Errorf("failed to delete old points: %w", err)
		}
		if err := p.chunkRepo.DeleteByArticle(ctx, article.ID); err != nil {
			return nil, false, fmt.Errorf("failed to delete old chunks: %w", err)
		}
	}

	points := make([]vectorstore.Point, len(chunks))
	for i, c := range chunks {
		chunkID := pointID(article.ID, c.Index)

		record := &storage.ChunkRecord{
			ID:         chunkID,
			ArticleID:  article.ID,
			ChunkIndex: c.Index,
			Text:       c.Text,
			TokenCount: c.TokenCount,
		}
		if err := p.chunkRepo.Insert(ctx, record); err != nil {
			return nil, false, fmt.Errorf("failed to insert chunk: %w", err)
		}

		points[i] = vectorstore.Point{
			ID:  chunkID,
			Vec: embeddings[i],
			Meta: map[string]any{
				MetaText:       c.Text,
				MetaTitle:      article.Title,
				MetaFileName:   f.Name,
				MetaArticleID:  article.ID,
				MetaChunkIndex: c.Index,
				MetaTokenCount: c.TokenCount,
				MetaSourceURL:  article.SourceURL,
			},
		}
	}

	if err := p.vectorStore.Upsert(ctx, p.collection, points); err != nil {
		return nil, false, fmt.Errorf("failed to upsert vectors: %w", err)
	}

	article.Hash = hash
	if err := p.articleRepo.Upsert(ctx, article); err != nil {
		return nil, false, fmt.Errorf("failed to record article hash: %w", err)
	}

	p.metrics.ChunksIndexed.Add(float64(len(chunks)))
	logger.InfoContext(ctx, "indexed article", "file", f.Name, "chunks", len(chunks), "title", article.Title)
	return chunks, true, nil
}

// pointID derives a stable point UUID from the article and chunk index.
func pointID(articleID string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", articleID, index))).String()
}
