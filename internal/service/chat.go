package service

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_chat_service.go -package=mocks -mock_names=ChatService=MockChatService industryinsider/internal/service ChatService

import (
	"context"
	"strings"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/metrics"
	"industryinsider/internal/prompts"
	"industryinsider/internal/rag"
	"industryinsider/internal/session"
	"industryinsider/internal/tokens"
)

// ChatRequest represents a chat request in the domain layer.
type ChatRequest struct {
	SessionID string
	Message   string
}

// ChatResponse represents a chat response in the domain layer.
type ChatResponse struct {
	Reply   string
	Query   string
	Sources []rag.Source
}

// ChatService provides chat functionality.
type ChatService interface {
	// ProcessChat answers a message in the session and returns the whole reply.
	ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error)
	// StreamChat answers a message in the session, passing each token to callback.
	StreamChat(ctx context.Context, req ChatRequest, callback func(chunk string) error) error
	// Ask answers a single question without any session history.
	Ask(ctx context.Context, question string) (ChatResponse, error)
	// History returns the session's messages.
	History(ctx context.Context, sessionID string) ([]prompts.Message, error)
	// ClearHistory empties the session's history.
	ClearHistory(ctx context.Context, sessionID string) error
}

// Budget holds the token limits applied to every conversation.
type Budget struct {
	// MaxTokens is the model context window.
	MaxTokens int
	// HistoryPadding is added per history message for role and framing overhead.
	HistoryPadding int
	// PromptPadding is added once for the prompt framing.
	PromptPadding int
	// SafetyMargin is kept free when trimming history.
	SafetyMargin int
	// MinResponseTokens is the smallest output allowance ever requested.
	MinResponseTokens int
}

// chatService implements ChatService.
type chatService struct {
	chain    *rag.Chain
	sessions session.Store
	counter  tokens.Counter
	budget   Budget
	metrics  *metrics.Metrics

	// templateTokens is the fixed cost of the question and answer prompts.
	templateTokens int
}

// NewChatService creates a new ChatService.
func NewChatService(chain *rag.Chain, sessions session.Store, counter tokens.Counter, budget Budget, m *metrics.Metrics) ChatService {
	if m == nil {
		m = metrics.NewUnregistered()
	}
	return &chatService{
		chain:          chain,
		sessions:       sessions,
		counter:        counter,
		budget:         budget,
		metrics:        m,
		templateTokens: counter.Count(prompts.QuestionMaker.PrettyRepr()) + counter.Count(prompts.Answer.PrettyRepr()),
	}
}

// ProcessChat processes a chat request.
func (s *chatService) ProcessChat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	res, err := s.converse(ctx, req, nil)
	if err != nil {
		return ChatResponse{}, err
	}
	return ChatResponse{Reply: res.Answer, Query: res.Query, Sources: res.Sources()}, nil
}

// StreamChat processes a chat request and streams the response.
func (s *chatService) StreamChat(ctx context.Context, req ChatRequest, callback func(chunk string) error) error {
	_, err := s.converse(ctx, req, func(token string) error {
		s.metrics.StreamedTokens.Inc()
		return callback(token)
	})
	return err
}

// Ask answers a question with no conversation context.
func (s *chatService) Ask(ctx context.Context, question string) (ChatResponse, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if strings.TrimSpace(question) == "" {
		logger.WarnContext(ctx, "empty question in ask request")
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return ChatResponse{}, &ValidationError{Field: "question", Message: "cannot be empty"}
	}

	res, err := s.chain.Invoke(ctx, rag.ChainInput{
		Input:     question,
		MaxTokens: s.maxOutput(s.usage(nil, question)),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to answer question", "error", err)
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return ChatResponse{}, externalError(err, "failed to answer question")
	}

	s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.InfoContext(ctx, "question answered", "question_length", len(question), "documents", len(res.Documents))
	return ChatResponse{Reply: res.Answer, Query: res.Query, Sources: res.Sources()}, nil
}

// History returns the session's messages.
func (s *chatService) History(ctx context.Context, sessionID string) ([]prompts.Message, error) {
	if sessionID == "" {
		return nil, &ValidationError{Field: "session_id", Message: "cannot be empty"}
	}
	msgs, err := s.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, WrapError(err, "failed to load history")
	}
	return msgs, nil
}

// ClearHistory empties the session's history.
func (s *chatService) ClearHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return &ValidationError{Field: "session_id", Message: "cannot be empty"}
	}
	if err := s.sessions.Clear(ctx, sessionID); err != nil {
		return WrapError(err, "failed to clear history")
	}
	contextutil.LoggerFromContext(ctx).InfoContext(ctx, "history cleared")
	return nil
}

// converse runs one turn: budget the output, run the chain, then record the
// exchange and trim history. Nothing is written if the turn fails.
func (s *chatService) converse(ctx context.Context, req ChatRequest, callback func(string) error) (*rag.ChainResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	if req.SessionID == "" {
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, &ValidationError{Field: "session_id", Message: "cannot be empty"}
	}
	if strings.TrimSpace(req.Message) == "" {
		logger.WarnContext(ctx, "empty message in chat request")
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, &ValidationError{Field: "message", Message: "cannot be empty"}
	}

	history, err := s.sessions.History(ctx, req.SessionID)
	if err != nil {
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, WrapError(err, "failed to load history")
	}

	usage := s.usage(history, req.Message)
	in := rag.ChainInput{
		Input:     req.Message,
		History:   history,
		MaxTokens: s.maxOutput(usage),
	}
	logger.DebugContext(ctx, "token budget", "usage", usage, "max_output", in.MaxTokens, "history_messages", len(history))

	var res *rag.ChainResult
	if callback != nil {
		res, err = s.chain.Stream(ctx, in, callback)
	} else {
		res, err = s.chain.Invoke(ctx, in)
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to generate answer", "error", err)
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, externalError(err, "failed to generate answer")
	}

	history = append(history,
		prompts.Message{Role: prompts.RoleHuman, Content: req.Message},
		prompts.Message{Role: prompts.RoleAI, Content: res.Answer},
	)
	total := usage + s.counter.Count(res.Answer)
	history, dropped := s.truncate(history, total)
	if dropped > 0 {
		s.metrics.HistoryTruncations.Add(float64(dropped))
		logger.InfoContext(ctx, "history truncated", "dropped_pairs", dropped, "remaining_messages", len(history))
	}

	if err := s.sessions.Save(ctx, req.SessionID, history); err != nil {
		s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, WrapError(err, "failed to save history")
	}

	s.metrics.ChatRequests.WithLabelValues(metrics.OutcomeOK).Inc()
	logger.InfoContext(ctx, "chat request processed successfully",
		"message_length", len(req.Message),
		"reply_length", len(res.Answer),
		"documents", len(res.Documents),
	)
	return res, nil
}

// usage estimates the prompt tokens of a turn.
func (s *chatService) usage(history []prompts.Message, input string) int {
	total := 0
	for _, m := range history {
		total += s.counter.Count(m.Content) + s.budget.HistoryPadding
	}
	return total + s.counter.Count(input) + s.templateTokens + s.budget.PromptPadding
}

// maxOutput is the remaining window, never less than MinResponseTokens.
func (s *chatService) maxOutput(usage int) int {
	return max(s.budget.MaxTokens-usage, s.budget.MinResponseTokens)
}

// truncate drops the oldest human/AI pairs while total is within the safety
// margin of the window. It returns the kept history and the pairs dropped.
func (s *chatService) truncate(history []prompts.Message, total int) ([]prompts.Message, int) {
	limit := s.budget.MaxTokens - s.budget.SafetyMargin
	dropped := 0
	for total >= limit && len(history) >= 2 {
		for _, m := range history[:2] {
			total -= s.counter.Count(m.Content) + s.budget.HistoryPadding
		}
		history = history[2:]
		dropped++
	}
	return history, dropped
}
