package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
)

// RunStats summarises one loader run.
type RunStats struct {
	// FilesScanned is the number of article files found in the data directory.
	FilesScanned int `json:"files_scanned"`
	// FilesIndexed is the number of files that were (re)chunked and embedded.
	FilesIndexed int `json:"files_indexed"`
	// FilesSkipped is the number of unchanged files left as they were.
	FilesSkipped int `json:"files_skipped"`
	// ChunksIndexed is the number of chunks written in this run.
	ChunksIndexed int `json:"chunks_indexed"`
	// ChunkTokenStats describes the chunks written in this run.
	ChunkTokenStats ChunkTokenStats `json:"chunk_token_stats"`
	// IndexVersion is a hash identifying the index build (chunker + embedding model + params).
	IndexVersion string `json:"index_version"`
}

// ChunkTokenStats contains statistics about token counts in chunks.
type ChunkTokenStats struct {
	Min  int     `json:"min"`
	Max  int     `json:"max"`
	Mean float64 `json:"mean"`
	P95  int     `json:"p95"`
}

// ComputeTokenStats computes min, max, mean, and p95 from chunk token counts.
func ComputeTokenStats(chunks []Chunk) ChunkTokenStats {
	if len(chunks) == 0 {
		return ChunkTokenStats{}
	}

	sorted := make([]int, len(chunks))
	sum := 0
	for i, c := range chunks {
		sorted[i] = c.TokenCount
		sum += c.TokenCount
	}
	sort.Ints(sorted)

	mean := float64(sum) / float64(len(sorted))

	p95Index := int(math.Ceil(float64(len(sorted)) * 0.95))
	if p95Index >= len(sorted) {
		p95Index = len(sorted) - 1
	}

	return ChunkTokenStats{
		Min:  sorted[0],
		Max:  sorted[len(sorted)-1],
		Mean: math.Round(mean*100) / 100, // Round to 2 decimal places
		P95:  sorted[p95Index],
	}
}

// IndexVersion hashes the chunker version, embedding model and token limit.
// Two indexes with the same version were built the same way.
func IndexVersion(embeddingModel string, maxChunkTokens int) string {
	input := fmt.Sprintf("%s|%s|maxChunkTokens=%d", ChunkerVersion, embeddingModel, maxChunkTokens)
	hash := sha256.Sum256([]byte(input))
	return hex.EncodeToString(hash[:])[:16] // 16 hex chars = 64 bits
}
