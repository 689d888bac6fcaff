package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/metrics"
)

// rrfC is the reciprocal rank fusion constant.
const rrfC = 60

// WeightedRetriever is one input of an EnsembleRetriever.
type WeightedRetriever struct {
	Name      string
	Retriever Retriever
	Weight    float64
}

// EnsembleRetriever runs several retrievers concurrently and merges their
// rankings with weighted reciprocal rank fusion.
type EnsembleRetriever struct {
	retrievers []WeightedRetriever
	metrics    *metrics.Metrics
}

// NewEnsembleRetriever creates a hybrid retriever over rs.
func NewEnsembleRetriever(m *metrics.Metrics, rs ...WeightedRetriever) *EnsembleRetriever {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &EnsembleRetriever{retrievers: rs, metrics: m}
}

// Retrieve returns every unique document found by any retriever, ordered by fused score.
func (e *EnsembleRetriever) Retrieve(ctx context.Context, query string) ([]Document, error) {
	results := make([][]Document, len(e.retrievers))

	g, gctx := errgroup.WithContext(ctx)
	for i, wr := range e.retrievers {
		g.Go(func() error {
			start := time.Now()
			docs, err := wr.Retriever.Retrieve(gctx, query)
			e.metrics.RetrievalDuration.WithLabelValues(wr.Name).Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("%s retriever: %w", wr.Name, err)
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := make([]float64, len(e.retrievers))
	for i, wr := range e.retrievers {
		weights[i] = wr.Weight
	}
	fused := fuse(results, weights)

	contextutil.LoggerFromContext(ctx).DebugContext(ctx, "hybrid retrieval completed", "results", len(fused))
	return fused, nil
}

// fuse scores each unique text by the sum of weight/(rank+rrfC) over the
// lists it appears in, rank starting at 1. Ties keep first-seen order.
func fuse(lists [][]Document, weights []float64) []Document {
	scores := make(map[string]float64)
	var order []Document

	for i, docs := range lists {
		for rank, doc := range docs {
			if _, seen := scores[doc.Text]; !seen {
				order = append(order, doc)
			}
			scores[doc.Text] += weights[i] / float64(rank+1+rrfC)
		}
	}

	for i := range order {
		order[i].Score = scores[order[i].Text]
	}
	sort.SliceStable(order, func(a, b int) bool {
		return order[a].Score > order[b].Score
	})
	return order
}
