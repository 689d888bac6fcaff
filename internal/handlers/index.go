package handlers

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/indexer"
	"industryinsider/internal/storage"
)

// Indexer loads article files into the vector and relational stores.
type Indexer interface {
	IndexAll(ctx context.Context) (*indexer.RunStats, error)
}

// KeywordIndex is rebuilt from the chunk store after every indexing run.
type KeywordIndex interface {
	Rebuild(ctx context.Context, store storage.ChunkStore) (int, error)
}

// IndexHandler handles HTTP requests for triggering re-indexing.
type IndexHandler struct {
	indexer   Indexer
	keyword   KeywordIndex
	chunkRepo storage.ChunkStore

	running atomic.Bool
	wg      sync.WaitGroup

	// runs is cancelled by Shutdown.
	runs     context.Context
	stopRuns context.CancelFunc
}

// NewIndexHandler creates a new IndexHandler.
func NewIndexHandler(idx Indexer, keyword KeywordIndex, chunkRepo storage.ChunkStore) *IndexHandler {
	runs, stopRuns := context.WithCancel(context.Background())
	return &IndexHandler{
		indexer:   idx,
		keyword:   keyword,
		chunkRepo: chunkRepo,
		runs:      runs,
		stopRuns:  stopRuns,
	}
}

// IndexResponse represents the response from the index endpoint.
type IndexResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ServeHTTP starts a re-indexing run in the background. Only one run is
// active at a time.
func (h *IndexHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		writeJSON(ctx, w, http.StatusConflict, IndexResponse{
			Message: "Indexing is already running.",
			Status:  "running",
		})
		return
	}

	logger.InfoContext(ctx, "re-indexing triggered via API")

	// The run outlives the request but keeps its logger. Shutdown cancels it.
	indexCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(h.runs, cancel)
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer h.running.Store(false)
		defer cancel()
		defer stop()
		h.run(indexCtx)
	}()

	writeJSON(ctx, w, http.StatusAccepted, IndexResponse{
		Message: "Indexing started. Check server logs for progress.",
		Status:  "accepted",
	})
}

// Wait blocks until the current run, if any, has finished.
func (h *IndexHandler) Wait() {
	h.wg.Wait()
}

// Shutdown cancels the current run and waits for it to return, or for ctx
// to expire. Call it after the HTTP server has stopped accepting requests
// and before closing the stores the run writes to.
func (h *IndexHandler) Shutdown(ctx context.Context) error {
	h.stopRuns()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *IndexHandler) run(ctx context.Context) {
	logger := contextutil.LoggerFromContext(ctx)

	stats, err := h.indexer.IndexAll(ctx)
	if err != nil && ctx.Err() != nil {
		logger.WarnContext(ctx, "re-indexing cancelled", "error", err)
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, "re-indexing failed", "error", err)
	} else {
		logger.InfoContext(ctx, "re-indexing completed successfully",
			"indexed", stats.FilesIndexed,
			"skipped", stats.FilesSkipped,
			"chunks", stats.ChunksIndexed,
		)
	}

	// Rebuild even after a failed run: some articles may have been replaced.
	if _, err := h.keyword.Rebuild(ctx, h.chunkRepo); err != nil {
		logger.ErrorContext(ctx, "failed to rebuild keyword index", "error", err)
	}
}
