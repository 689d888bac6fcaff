package storage

import "time"

// ArticleRecord represents a saved article file in the database.
type ArticleRecord struct {
	ID        string // UUID
	FileName  string // File name inside the data directory, unique
	Title     string
	SourceURL string // Page the article was scraped from; empty when unknown
	Hash      string // SHA256 hex of the file content at last indexing; empty until indexed
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ChunkRecord represents an indexed chunk of an article.
type ChunkRecord struct {
	ID         string // UUID (same as Qdrant point ID)
	ArticleID  string // Foreign key to articles.id
	ChunkIndex int    // Index within the article (starts at 0)
	Text       string
	TokenCount int

	// Filled by ListAll only.
	Title     string
	FileName  string
	SourceURL string
}
