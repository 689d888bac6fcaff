package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chunk_store.go -package=mocks industryinsider/internal/storage ChunkStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChunkStore defines the interface for chunk storage operations.
type ChunkStore interface {
	// Insert inserts a single chunk into the database.
	// The chunk.ID must be set (UUID) before calling this method.
	Insert(ctx context.Context, chunk *ChunkRecord) error
	// DeleteByArticle deletes all chunks for a given article ID.
	DeleteByArticle(ctx context.Context, articleID string) error
	// ListIDsByArticle returns all chunk IDs for a given article, ordered by chunk_index.
	ListIDsByArticle(ctx context.Context, articleID string) ([]string, error)
	// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
	GetByID(ctx context.Context, id string) (*ChunkRecord, error)
	// ListAll returns every chunk with its article title, file name and source URL.
	ListAll(ctx context.Context) ([]*ChunkRecord, error)
}

// ChunkRepo provides methods for chunk operations.
// It implements the ChunkStore interface.
type ChunkRepo struct {
	db *sql.DB
}

// NewChunkRepo creates a new ChunkRepo.
func NewChunkRepo(db *sql.DB) *ChunkRepo {
	return &ChunkRepo{db: db}
}

// Insert inserts a single chunk into the database.
func (r *ChunkRepo) Insert(ctx context.Context, chunk *ChunkRecord) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO chunks (id, article_id, chunk_index, text, token_count) VALUES (?, ?, ?, ?, ?)",
		chunk.ID, chunk.ArticleID, chunk.ChunkIndex, chunk.Text, chunk.TokenCount,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// DeleteByArticle deletes all chunks for a given article ID.
// Used when re-indexing an article to remove old chunks before inserting new ones.
func (r *ChunkRepo) DeleteByArticle(ctx context.Context, articleID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM chunks WHERE article_id = ?", articleID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks by article: %w", err)
	}
	return nil
}

// DeleteAll removes every chunk and returns how many were deleted.
// Articles without chunks are re-indexed on the next load even when their hash is unchanged.
func (r *ChunkRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM chunks")
	if err != nil {
		return 0, fmt.Errorf("failed to delete chunks: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted chunks: %w", err)
	}
	return n, nil
}

// ListIDsByArticle returns all chunk IDs for a given article, ordered by chunk_index.
// Returns an empty slice if no chunks exist (not an error).
func (r *ChunkRepo) ListIDsByArticle(ctx context.Context, articleID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id FROM chunks WHERE article_id = ? ORDER BY chunk_index",
		articleID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk IDs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan chunk ID: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return ids, nil
}

// GetByID gets a chunk by its ID. Returns ErrNotFound if not found.
func (r *ChunkRepo) GetByID(ctx context.Context, id string) (*ChunkRecord, error) {
	var chunk ChunkRecord
	err := r.db.QueryRowContext(ctx,
		"SELECT id, article_id, chunk_index, text, token_count FROM chunks WHERE id = ?",
		id,
	).Scan(&chunk.ID, &chunk.ArticleID, &chunk.ChunkIndex, &chunk.Text, &chunk.TokenCount)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query chunk: %w", err)
	}

	return &chunk, nil
}

// ListAll returns every chunk ordered by article file name and chunk index.
// The keyword index is rebuilt from this list.
func (r *ChunkRepo) ListAll(ctx context.Context) ([]*ChunkRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.article_id, c.chunk_index, c.text, c.token_count, a.title, a.file_name, a.source_url
		 FROM chunks c JOIN articles a ON a.id = c.article_id
		 ORDER BY a.file_name, c.chunk_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var chunks []*ChunkRecord
	for rows.Next() {
		var c ChunkRecord
		if err := rows.Scan(&c.ID, &c.ArticleID, &c.ChunkIndex, &c.Text, &c.TokenCount, &c.Title, &c.FileName, &c.SourceURL); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return chunks, nil
}
