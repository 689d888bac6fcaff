// Package metrics holds the Prometheus collectors shared by the extractor, loader and chat server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "industryinsider"

// Chat outcomes recorded on ChatRequests.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRejected = "rejected"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	ChatRequests       *prometheus.CounterVec
	StreamedTokens     prometheus.Counter
	HistoryTruncations prometheus.Counter
	RetrievalDuration  *prometheus.HistogramVec

	ArticlesSaved   prometheus.Counter
	ArticlesSkipped prometheus.Counter
	ChunksIndexed   prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChatRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "requests_total",
			Help:      "Chat messages processed, by outcome.",
		}, []string{"outcome"}),
		StreamedTokens: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "streamed_tokens_total",
			Help:      "Answer tokens streamed to clients.",
		}),
		HistoryTruncations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "history_truncations_total",
			Help:      "Human/AI pairs dropped from session history to stay within the token budget.",
		}),
		RetrievalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retriever latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"retriever"}),
		ArticlesSaved: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "articles_saved_total",
			Help:      "Article files written.",
		}),
		ArticlesSkipped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "articles_skipped_total",
			Help:      "Articles not written because a file with the same name exists.",
		}),
		ChunksIndexed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "chunks_indexed_total",
			Help:      "Chunks embedded and stored.",
		}),
	}
}

// NewUnregistered returns collectors bound to a private registry. Used by tools and tests.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler exposes the collectors gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
