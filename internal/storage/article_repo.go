package storage

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_article_store.go -package=mocks industryinsider/internal/storage ArticleStore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("record not found")
)

// ArticleStore defines the interface for article storage operations.
type ArticleStore interface {
	// GetByFileName gets an article by its file name.
	// Returns nil and ErrNotFound if not found.
	GetByFileName(ctx context.Context, fileName string) (*ArticleRecord, error)
	// Upsert inserts a new article or updates an existing one keyed by file name.
	// An empty SourceURL never overwrites a stored one.
	Upsert(ctx context.Context, article *ArticleRecord) error
	// List returns all articles ordered by file name.
	List(ctx context.Context) ([]*ArticleRecord, error)
}

// ArticleRepo provides methods for article operations.
// It implements the ArticleStore interface.
type ArticleRepo struct {
	db *sql.DB
}

// NewArticleRepo creates a new ArticleRepo.
func NewArticleRepo(db *sql.DB) *ArticleRepo {
	return &ArticleRepo{db: db}
}

const articleColumns = "id, file_name, title, source_url, hash, created_at, updated_at"

// GetByFileName gets an article by its file name.
func (r *ArticleRepo) GetByFileName(ctx context.Context, fileName string) (*ArticleRecord, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+articleColumns+" FROM articles WHERE file_name = ?",
		fileName,
	)
	article, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query article: %w", err)
	}
	return article, nil
}

// Upsert inserts a new article or updates an existing one.
// New articles get a generated UUID; existing ones keep their ID, which is written back into article.
func (r *ArticleRepo) Upsert(ctx context.Context, article *ArticleRecord) error {
	existing, err := r.GetByFileName(ctx, article.FileName)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to check existing article: %w", err)
	}

	if existing != nil {
		article.ID = existing.ID
	} else if article.ID == "" {
		article.ID = uuid.New().String()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO articles (id, file_name, title, source_url, hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		 ON CONFLICT (file_name) DO UPDATE SET
		 title = excluded.title,
		 source_url = COALESCE(NULLIF(excluded.source_url, ''), articles.source_url),
		 hash = excluded.hash,
		 updated_at = CURRENT_TIMESTAMP`,
		article.ID, article.FileName, article.Title, article.SourceURL, article.Hash,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert article: %w", err)
	}

	return nil
}

// List returns all articles ordered by file name.
func (r *ArticleRepo) List(ctx context.Context) ([]*ArticleRecord, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+articleColumns+" FROM articles ORDER BY file_name")
	if err != nil {
		return nil, fmt.Errorf("failed to query articles: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var articles []*ArticleRecord
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan article: %w", err)
		}
		articles = append(articles, article)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return articles, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*ArticleRecord, error) {
	var a ArticleRecord
	var createdAt, updatedAt string
	if err := row.Scan(&a.ID, &a.FileName, &a.Title, &a.SourceURL, &a.Hash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if a.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at timestamp: %w", err)
	}
	if a.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at timestamp: %w", err)
	}
	return &a, nil
}

// parseTimestamp accepts SQLite's CURRENT_TIMESTAMP layout and the RFC3339
// form the driver produces when it has already decoded a DATETIME column.
func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
