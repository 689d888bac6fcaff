package rag

import (
	"context"
	"fmt"
	"strings"

	"industryinsider/internal/contextutil"
	"industryinsider/internal/llm"
	"industryinsider/internal/prompts"
)

// HistoryAwareRetriever rewrites a follow-up question into a standalone
// query before retrieving.
type HistoryAwareRetriever struct {
	llm       LLMClient
	retriever Retriever
}

// NewHistoryAwareRetriever wraps retriever with question rewriting.
func NewHistoryAwareRetriever(client LLMClient, retriever Retriever) *HistoryAwareRetriever {
	return &HistoryAwareRetriever{llm: client, retriever: retriever}
}

// Retrieve returns the query that was searched and the documents found.
// With no history the input is searched as is.
func (h *HistoryAwareRetriever) Retrieve(ctx context.Context, input string, history []prompts.Message) (string, []Document, error) {
	query := input
	if len(history) > 0 {
		msgs := prompts.QuestionMaker.Messages(nil, history, input)
		rewritten, err := h.llm.ChatWithMessages(ctx, ToLLMMessages(msgs), llm.ChatParams{})
		if err != nil {
			return "", nil, fmt.Errorf("failed to rewrite question: %w", err)
		}
		if rewritten = strings.TrimSpace(rewritten); rewritten != "" {
			query = rewritten
		}
		contextutil.LoggerFromContext(ctx).DebugContext(ctx, "question rewritten", "input", input, "query", query)
	}

	docs, err := h.retriever.Retrieve(ctx, query)
	if err != nil {
		return "", nil, err
	}
	return query, docs, nil
}

// ChainInput is one turn of the conversation.
type ChainInput struct {
	Input   string
	History []prompts.Message
	// MaxTokens caps the answer length. Zero leaves it to the server.
	MaxTokens int
}

// ChainResult is the outcome of one turn.
type ChainResult struct {
	Answer    string
	Query     string
	Documents []Document
}

// Sources lists the articles behind the retrieved documents, deduplicated.
func (r *ChainResult) Sources() []Source {
	seen := make(map[Source]bool, len(r.Documents))
	out := make([]Source, 0, len(r.Documents))
	for _, d := range r.Documents {
		s := d.Source()
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Chain answers questions with history-aware retrieval followed by a
// single completion over the retrieved context.
type Chain struct {
	llm       LLMClient
	retriever *HistoryAwareRetriever
}

// NewChain creates a retrieval chain.
func NewChain(client LLMClient, retriever Retriever) *Chain {
	return &Chain{
		llm:       client,
		retriever: NewHistoryAwareRetriever(client, retriever),
	}
}

// Stream runs the chain, passing each answer token to callback as it arrives.
func (c *Chain) Stream(ctx context.Context, in ChainInput, callback func(token string) error) (*ChainResult, error) {
	logger := contextutil.LoggerFromContext(ctx)

	query, docs, err := c.retriever.Retrieve(ctx, in.Input, in.History)
	if err != nil {
		return nil, err
	}
	logger.InfoContext(ctx, "documents retrieved", "query", query, "documents", len(docs))

	msgs := c.answerMessages(in, docs)
	params := llm.ChatParams{MaxTokens: in.MaxTokens}

	var answer strings.Builder
	err = c.llm.StreamChatWithMessages(ctx, msgs, params, func(token string) error {
		answer.WriteString(token)
		if callback != nil {
			return callback(token)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	return &ChainResult{Answer: answer.String(), Query: query, Documents: docs}, nil
}

// Invoke runs the chain and returns the whole answer at once.
func (c *Chain) Invoke(ctx context.Context, in ChainInput) (*ChainResult, error) {
	query, docs, err := c.retriever.Retrieve(ctx, in.Input, in.History)
	if err != nil {
		return nil, err
	}

	answer, err := c.llm.ChatWithMessages(ctx, c.answerMessages(in, docs), llm.ChatParams{MaxTokens: in.MaxTokens})
	if err != nil {
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}
	return &ChainResult{Answer: answer, Query: query, Documents: docs}, nil
}

func (c *Chain) answerMessages(in ChainInput, docs []Document) []llm.Message {
	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Text
	}
	vars := map[string]string{"context": strings.Join(texts, "\n\n")}
	return ToLLMMessages(prompts.Answer.Messages(vars, in.History, in.Input))
}

// ToLLMMessages maps conversation roles onto chat completion roles.
func ToLLMMessages(msgs []prompts.Message) []llm.Message {
	out := make([]llm.Message, len(msgs))
	for i, m := range msgs {
		role := llm.RoleSystem
		switch m.Role {
		case prompts.RoleHuman:
			role = llm.RoleUser
		case prompts.RoleAI:
			role = llm.RoleAssistant
		}
		out[i] = llm.Message{Role: role, Content: m.Content}
	}
	return out
}
