package handlers

import (
	"encoding/json"
	"net/http"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/rag"
	"industryinsider/internal/service"
)

// AskHandler answers one-off questions outside any chat session.
type AskHandler struct {
	chatService service.ChatService
}

// NewAskHandler creates a new AskHandler.
func NewAskHandler(chatService service.ChatService) *AskHandler {
	return &AskHandler{chatService: chatService}
}

// AskRequest represents the HTTP request payload for a question.
type AskRequest struct {
	Question string `json:"question"`
}

// AskResponse carries the answer and the articles it was drawn from.
type AskResponse struct {
	Answer  string       `json:"answer"`
	Sources []rag.Source `json:"sources"`
}

// ServeHTTP handles HTTP requests for questions.
func (h *AskHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.chatService.Ask(ctx, req.Question)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to answer question")
		return
	}

	sources := resp.Sources
	if sources == nil {
		sources = []rag.Source{}
	}
	writeJSON(ctx, w, http.StatusOK, AskResponse{Answer: resp.Reply, Sources: sources})
}
