package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/corpus"
	"industryinsider/internal/storage"
)

// ArticleHandler lists saved articles and serves them as rendered HTML pages.
type ArticleHandler struct {
	articles storage.ArticleStore
	dir      string
	md       goldmark.Markdown
	template *template.Template
}

// articlePageData holds template data for rendered article pages.
type articlePageData struct {
	Title     string
	FileName  string
	SourceURL string
	Content   template.HTML
}

// ArticleSummary is one entry of the article list.
type ArticleSummary struct {
	FileName  string    `json:"file_name"`
	Title     string    `json:"title"`
	SourceURL string    `json:"source_url,omitempty"`
	Indexed   bool      `json:"indexed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewArticleHandler creates a handler serving article files from dir.
func NewArticleHandler(articles storage.ArticleStore, dir string) *ArticleHandler {
	return &ArticleHandler{
		articles: articles,
		dir:      dir,
		md:       newMarkdown(),
		template: template.Must(template.New("article").Parse(articleTemplate)),
	}
}

// List returns every known article.
func (h *ArticleHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	records, err := h.articles.List(ctx)
	if err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to list articles", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list articles")
		return
	}

	out := make([]ArticleSummary, 0, len(records))
	for _, a := range records {
		out = append(out, ArticleSummary{
			FileName:  a.FileName,
			Title:     a.Title,
			SourceURL: a.SourceURL,
			Indexed:   a.Hash != "",
			UpdatedAt: a.UpdatedAt,
		})
	}
	writeJSON(ctx, w, http.StatusOK, out)
}

// Show renders the requested article file as HTML.
func (h *ArticleHandler) Show(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil {
		http.Error(w, "invalid article name", http.StatusBadRequest)
		return
	}
	if err := validateFileName(name); err != nil {
		http.Error(w, "invalid article name", http.StatusBadRequest)
		return
	}

	content, _, err := corpus.Read(corpus.File{Name: name, Path: filepath.Join(h.dir, name)})
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "article not found", http.StatusNotFound)
			return
		}
		logger.ErrorContext(ctx, "failed to read article", "file", name, "error", err)
		http.Error(w, "failed to read article", http.StatusInternalServerError)
		return
	}

	html, err := renderMarkdown(h.md, []byte(content))
	if err != nil {
		logger.ErrorContext(ctx, "failed to render markdown", "file", name, "error", err)
		http.Error(w, "failed to render article", http.StatusInternalServerError)
		return
	}

	data := articlePageData{
		Title:    corpus.Title(content),
		FileName: name,
		Content:  html,
	}
	if record, err := h.articles.GetByFileName(ctx, name); err == nil {
		data.SourceURL = record.SourceURL
	} else if !errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "failed to look up article", "file", name, "error", err)
	}
	if data.Title == "" {
		data.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.Execute(w, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute article template", "file", name, "error", err)
	}
}

// validateFileName accepts a bare file name inside the data directory.
func validateFileName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return errors.New("empty name")
	}
	if strings.ContainsAny(name, `/\`) {
		return errors.New("path separators not allowed")
	}
	return nil
}

const articleTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}} - IndustryInsider</title>
  <style>
    body {
      font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
      margin: 0 auto;
      padding: 2rem;
      max-width: 900px;
      line-height: 1.7;
      background: #0b1220;
      color: #e4ecff;
    }
    header {
      margin-bottom: 2rem;
      border-bottom: 1px solid rgba(148, 163, 184, 0.2);
      padding-bottom: 1.5rem;
    }
    article {
      background: rgba(12, 19, 35, 0.85);
      border: 1px solid rgba(99, 102, 241, 0.2);
      border-radius: 16px;
      padding: 2rem;
    }
    a {
      color: #60a5fa;
    }
    .meta {
      color: #94a3b8;
      font-size: 0.95rem;
    }
  </style>
</head>
<body>
  <header>
    <p class="meta"><a href="/">&larr; Back to chat</a></p>
    <p class="meta">{{.FileName}}{{if .SourceURL}} &middot; <a href="{{.SourceURL}}">original article</a>{{end}}</p>
  </header>
  <article>{{.Content}}</article>
</body>
</html>`
