package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/prompts"
	"industryinsider/internal/rag"
	"industryinsider/internal/service"
)

// ChatHandler handles HTTP requests for chat.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// ChatRequest represents the HTTP request payload for chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse represents the HTTP response payload for chat.
type ChatResponse struct {
	Reply   string       `json:"reply"`
	Query   string       `json:"query"`
	Sources []rag.Source `json:"sources"`
}

// HistoryResponse lists the messages of the caller's session.
type HistoryResponse struct {
	Messages []prompts.Message `json:"messages"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP handles HTTP requests for chat.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := contextutil.LoggerFromContext(ctx)

	if r.Method != http.MethodPost {
		logger.WarnContext(ctx, "method not allowed", "method", r.Method)
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.WarnContext(ctx, "invalid request body", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "Message cannot be empty")
		return
	}

	svcReq := service.ChatRequest{
		SessionID: contextutil.SessionIDFromContext(ctx),
		Message:   req.Message,
	}

	if r.URL.Query().Get("stream") == "true" {
		h.handleStreamingChat(ctx, w, svcReq)
		return
	}

	svcResp, err := h.chatService.ProcessChat(ctx, svcReq)
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to process chat request")
		return
	}

	writeJSON(ctx, w, http.StatusOK, ChatResponse{
		Reply:   svcResp.Reply,
		Query:   svcResp.Query,
		Sources: svcResp.Sources,
	})
}

// handleStreamingChat streams answer tokens as Server-Sent Events. Each event
// carries one JSON-encoded token; the stream always ends with [DONE] and
// never carries error text.
func (h *ChatHandler) handleStreamingChat(ctx context.Context, w http.ResponseWriter, req service.ChatRequest) {
	logger := contextutil.LoggerFromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.ErrorContext(ctx, "streaming not supported by response writer")
		writeError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	err := h.chatService.StreamChat(ctx, req, func(chunk string) error {
		data, err := json.Marshal(chunk)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		logger.ErrorContext(ctx, "error streaming chat", "error", err)
	}

	_, _ = fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

// History returns the caller's session messages.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	msgs, err := h.chatService.History(ctx, contextutil.SessionIDFromContext(ctx))
	if err != nil {
		handleServiceError(ctx, w, err, "Failed to load history")
		return
	}
	writeJSON(ctx, w, http.StatusOK, HistoryResponse{Messages: msgs})
}

// Refresh clears the caller's session history.
func (h *ChatHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.chatService.ClearHistory(ctx, contextutil.SessionIDFromContext(ctx)); err != nil {
		handleServiceError(ctx, w, err, "Failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleServiceError maps service errors to appropriate HTTP status codes and responses.
func handleServiceError(ctx context.Context, w http.ResponseWriter, err error, defaultMsg string) {
	contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "service error", "error", err)

	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Validation error: %s", validationErr.Error()))
		return
	}

	if errors.Is(err, service.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, "Invalid input")
		return
	}

	if errors.Is(err, service.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Resource not found")
		return
	}

	if errors.Is(err, service.ErrExternalService) {
		writeError(w, http.StatusBadGateway, "External service error")
		return
	}

	writeError(w, http.StatusInternalServerError, defaultMsg)
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		contextutil.LoggerFromContext(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error: message,
	})
}
