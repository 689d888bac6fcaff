package handlers

import (
	_ "embed"
	"html/template"
	"net/http"

	"github.com/yuin/goldmark"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/prompts"
	"industryinsider/internal/service"
)

//go:embed templates/chat.html
var chatTemplate string

// PageHandler serves the chat page with the caller's conversation so far.
type PageHandler struct {
	chatService service.ChatService
	md          goldmark.Markdown
	template    *template.Template
}

type pageMessage struct {
	Human   bool
	Content template.HTML
}

type pageData struct {
	Messages []pageMessage
}

// NewPageHandler creates a new PageHandler.
func NewPageHandler(chatService service.ChatService) *PageHandler {
	return &PageHandler{
		chatService: chatService,
		md:          newMarkdown(),
		template:    template.Must(template.New("chat").Parse(chatTemplate)),
	}
}

// ServeHTTP renders the chat page. A history that cannot be loaded is logged
// and the page is shown empty.
func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "chat")
}

// Messages renders only the conversation, for the page to swap in once a
// streamed answer is complete.
func (h *PageHandler) Messages(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "messages")
}

func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, name string) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	history, err := h.chatService.History(ctx, contextutil.SessionIDFromContext(ctx))
	if err != nil {
		logger.ErrorContext(ctx, "failed to load history", "error", err)
		history = nil
	}

	data := pageData{Messages: make([]pageMessage, 0, len(history))}
	for _, msg := range history {
		if msg.Role == prompts.RoleSystem {
			continue
		}
		html, err := renderMarkdown(h.md, []byte(msg.Content))
		if err != nil {
			logger.WarnContext(ctx, "failed to render message", "error", err)
			html = template.HTML(template.HTMLEscapeString(msg.Content))
		}
		data.Messages = append(data.Messages, pageMessage{
			Human:   msg.Role == prompts.RoleHuman,
			Content: html,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.template.ExecuteTemplate(w, name, data); err != nil {
		logger.ErrorContext(ctx, "failed to execute template", "template", name, "error", err)
	}
}
