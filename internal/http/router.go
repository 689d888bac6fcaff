package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"industryinsider/internal/handlers"
	"industryinsider/internal/metrics"
	"industryinsider/internal/service"
	"industryinsider/internal/storage"
	"industryinsider/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	Logger       *slog.Logger
	ChatService  service.ChatService
	VectorStore  vectorstore.VectorStore
	Collection   string
	// IndexHandler serves POST /api/index; the route is omitted when nil.
	// The caller owns it so shutdown can wait for a running load.
	IndexHandler *handlers.IndexHandler
	ArticleRepo  storage.ArticleStore
	DataDir      string
	// Gatherer serves /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(RequestLogger)
	r.Use(CORS)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Method(http.MethodGet, "/api/health", handlers.NewHealthHandler(deps.VectorStore, deps.Collection))

	articles := handlers.NewArticleHandler(deps.ArticleRepo, deps.DataDir)
	r.Get("/articles/{name}", articles.Show)

	// Everything below belongs to a chat session.
	r.Group(func(r chi.Router) {
		r.Use(SessionCookie)

		chat := handlers.NewChatHandler(deps.ChatService)
		page := handlers.NewPageHandler(deps.ChatService)

		r.Method(http.MethodGet, "/", page)
		r.Get("/api/messages", page.Messages)
		r.Method(http.MethodPost, "/api/chat", chat)
		r.Post("/api/refresh", chat.Refresh)
		r.Get("/api/history", chat.History)
		r.Method(http.MethodPost, "/api/ask", handlers.NewAskHandler(deps.ChatService))
		if deps.IndexHandler != nil {
			r.Method(http.MethodPost, "/api/index", deps.IndexHandler)
		}
		r.Get("/api/articles", articles.List)
	})

	return r
}
