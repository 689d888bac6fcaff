package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/corpus"
	"industryinsider/internal/indexer"
	"industryinsider/internal/llm"
	"industryinsider/internal/logging"
	"industryinsider/internal/metrics"
	"industryinsider/internal/storage"
	"industryinsider/internal/tokens"
	"industryinsider/internal/vectorstore"
)

func loadCMD() *cobra.Command {
	var (
		dryRun   bool
		recreate bool
	)

	var load = &cobra.Command{
		Use:   "load",
		Short: "Chunk and embed saved articles into Qdrant",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cfg, closer, err := setup(cmd.Context(), logging.Vector)
			if err != nil {
				return err
			}
			defer func() {
				_ = closer.Close()
			}()
			logger := contextutil.LoggerFromContext(ctx)

			db, err := openDB(ctx, cfg.DBPath)
			if err != nil {
				return err
			}
			defer func() {
				_ = db.Close()
			}()

			vectorStore, err := vectorstore.NewQdrantStore(cfg.QdrantURL)
			if err != nil {
				return fmt.Errorf("failed to create Qdrant client: %w", err)
			}
			defer func() {
				_ = vectorStore.Close()
			}()

			embedder := llm.NewEmbeddingsClient(cfg.EmbeddingBaseURL, cfg.EmbeddingAPIKey, cfg.EmbeddingModelName, cfg.QdrantVectorSize)
			embedder.BatchSize = cfg.EmbeddingBatchSize

			counter, err := tokens.NewCounter(cfg.TiktokenModel)
			if err != nil {
				return err
			}

			version := indexer.IndexVersion(cfg.EmbeddingModelName, cfg.MaxChunkTokens)
			chunkRepo := storage.NewChunkRepo(db)
			pipeline := indexer.NewPipeline(
				corpus.New(cfg.DataDir, cfg.FileExtension),
				storage.NewArticleRepo(db),
				chunkRepo,
				indexer.NewSemanticChunker(embedder, counter, cfg.MaxChunkTokens),
				embedder,
				vectorStore,
				cfg.QdrantCollection,
				version,
				metrics.NewUnregistered(),
			)

			if dryRun {
				chunks, err := pipeline.ChunkAll(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "chunking failed", "error", err)
					return err
				}
				return printJSON(cmd, struct {
					Chunks       int                     `json:"chunks"`
					TokenStats   indexer.ChunkTokenStats `json:"chunk_token_stats"`
					IndexVersion string                  `json:"index_version"`
				}{
					Chunks:       len(chunks),
					TokenStats:   indexer.ComputeTokenStats(chunks),
					IndexVersion: version,
				})
			}

			if recreate {
				// Points written under an older index version cannot be mixed
				// with new ones, so the collection and chunk rows start empty.
				logger.InfoContext(ctx, "recreating collection", "collection", cfg.QdrantCollection, "index_version", version)
				if err := vectorStore.DeleteCollection(ctx, cfg.QdrantCollection); err != nil {
					return fmt.Errorf("failed to delete Qdrant collection: %w", err)
				}
				n, err := chunkRepo.DeleteAll(ctx)
				if err != nil {
					return err
				}
				logger.InfoContext(ctx, "cleared chunk records", "deleted", n)
			}

			if err := vectorStore.EnsureCollection(ctx, cfg.QdrantCollection, cfg.QdrantVectorSize); err != nil {
				return fmt.Errorf("failed to ensure Qdrant collection: %w", err)
			}

			stats, err := pipeline.IndexAll(ctx)
			if err != nil {
				logger.ErrorContext(ctx, "loading failed", "error", err)
				return err
			}
			return printJSON(cmd, stats)
		},
	}
	load.Flags().BoolVar(&dryRun, "dry-run", false, "chunk articles and print token statistics without embedding or storing")
	load.Flags().BoolVar(&recreate, "recreate", false, "drop the collection and re-embed every article, needed after the embedding model or chunk size changes")
	load.MarkFlagsMutuallyExclusive("dry-run", "recreate")

	return load
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
