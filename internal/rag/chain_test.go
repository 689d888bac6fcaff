package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/mock/gomock"

	"industryinsider/internal/llm"
	"industryinsider/internal/prompts"
	"industryinsider/internal/rag"
	rag_mocks "industryinsider/internal/rag/mocks"
)

func streamTokens(tokens ...string) func(context.Context, []llm.Message, llm.ChatParams, func(string) error) error {
	return func(_ context.Context, _ []llm.Message, _ llm.ChatParams, cb func(string) error) error {
		for _, tok := range tokens {
			if err := cb(tok); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestChain_Stream_NoHistory(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := rag_mocks.NewMockLLMClient(ctrl)
	retriever := rag_mocks.NewMockRetriever(ctrl)
	ctx := context.Background()

	docs := []rag.Document{{ID: "1", Text: "doc one"}, {ID: "2", Text: "doc two"}}
	retriever.EXPECT().Retrieve(ctx, "What happened to steel?").Return(docs, nil)
	client.EXPECT().StreamChatWithMessages(ctx, gomock.Any(), llm.ChatParams{MaxTokens: 300}, gomock.Any()).
		DoAndReturn(func(ctx context.Context, msgs []llm.Message, p llm.ChatParams, cb func(string) error) error {
			if len(msgs) != 2 {
				t.Fatalf("got %d messages, want system and user", len(msgs))
			}
			if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "Context: doc one\n\ndoc two") {
				t.Errorf("system message = %+v", msgs[0])
			}
			if msgs[1].Role != llm.RoleUser || msgs[1].Content != "What happened to steel?" {
				t.Errorf("user message = %+v", msgs[1])
			}
			return streamTokens("Prices ", "rose.")(ctx, msgs, p, cb)
		})

	var streamed []string
	res, err := rag.NewChain(client, retriever).Stream(ctx, rag.ChainInput{
		Input:     "What happened to steel?",
		MaxTokens: 300,
	}, func(tok string) error {
		streamed = append(streamed, tok)
		return nil
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}

	if res.Answer != "Prices rose." {
		t.Errorf("Answer = %q", res.Answer)
	}
	if res.Query != "What happened to steel?" {
		t.Errorf("Query = %q", res.Query)
	}
	if len(streamed) != 2 || len(res.Documents) != 2 {
		t.Errorf("streamed = %q, documents = %d", streamed, len(res.Documents))
	}
}

func TestChain_Stream_RewritesFollowUp(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := rag_mocks.NewMockLLMClient(ctrl)
	retriever := rag_mocks.NewMockRetriever(ctrl)
	ctx := context.Background()

	history := []prompts.Message{
		{Role: prompts.RoleHuman, Content: "Tell me about steel exports."},
		{Role: prompts.RoleAI, Content: "They rose 8% in May."},
	}

	gomock.InOrder(
		client.EXPECT().ChatWithMessages(ctx, gomock.Any(), llm.ChatParams{}).
			DoAndReturn(func(_ context.Context, msgs []llm.Message, _ llm.ChatParams) (string, error) {
				if len(msgs) != 4 {
					t.Fatalf("got %d messages, want 4", len(msgs))
				}
				if msgs[0].Content != prompts.QuestionMaker.System {
					t.Errorf("system message = %q", msgs[0].Content)
				}
				if msgs[1].Role != llm.RoleUser || msgs[2].Role != llm.RoleAssistant {
					t.Errorf("history roles = %s, %s", msgs[1].Role, msgs[2].Role)
				}
				return "  Why did India's steel exports rise in May?\n", nil
			}),
		retriever.EXPECT().Retrieve(ctx, "Why did India's steel exports rise in May?").
			Return([]rag.Document{{Text: "Demand from Europe."}}, nil),
		client.EXPECT().StreamChatWithMessages(ctx, gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(ctx context.Context, msgs []llm.Message, p llm.ChatParams, cb func(string) error) error {
				if len(msgs) != 4 || msgs[3].Content != "Why?" {
					t.Errorf("answer messages = %+v", msgs)
				}
				return streamTokens("European demand.")(ctx, msgs, p, cb)
			}),
	)

	res, err := rag.NewChain(client, retriever).Stream(ctx, rag.ChainInput{Input: "Why?", History: history}, nil)
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	if res.Query != "Why did India's steel exports rise in May?" {
		t.Errorf("Query = %q", res.Query)
	}
	if res.Answer != "European demand." {
		t.Errorf("Answer = %q", res.Answer)
	}
}

func TestChain_Stream_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(client *rag_mocks.MockLLMClient, retriever *rag_mocks.MockRetriever)
	}{
		{
			name: "retrieval fails",
			setup: func(_ *rag_mocks.MockLLMClient, retriever *rag_mocks.MockRetriever) {
				retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, errors.New("qdrant unavailable"))
			},
		},
		{
			name: "generation fails",
			setup: func(client *rag_mocks.MockLLMClient, retriever *rag_mocks.MockRetriever) {
				retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, nil)
				client.EXPECT().StreamChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					Return(errors.New("LLM API returned status 503"))
			},
		},
		{
			name: "callback fails",
			setup: func(client *rag_mocks.MockLLMClient, retriever *rag_mocks.MockRetriever) {
				retriever.EXPECT().Retrieve(gomock.Any(), gomock.Any()).Return(nil, nil)
				client.EXPECT().StreamChatWithMessages(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
					DoAndReturn(streamTokens("a", "b"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			client := rag_mocks.NewMockLLMClient(ctrl)
			retriever := rag_mocks.NewMockRetriever(ctrl)
			tt.setup(client, retriever)

			_, err := rag.NewChain(client, retriever).Stream(context.Background(), rag.ChainInput{Input: "q"}, func(string) error {
				return errors.New("client went away")
			})
			if err == nil {
				t.Error("Stream() expected error")
			}
		})
	}
}

func TestChain_Invoke(t *testing.T) {
	ctrl := gomock.NewController(t)
	client := rag_mocks.NewMockLLMClient(ctrl)
	retriever := rag_mocks.NewMockRetriever(ctrl)
	ctx := context.Background()

	retriever.EXPECT().Retrieve(ctx, "steel").Return([]rag.Document{
		{Text: "a", Meta: map[string]any{"title": "Steel", "file_name": "Steel.md", "chunk_index": int64(0)}},
		{Text: "b", Meta: map[string]any{"title": "Steel", "file_name": "Steel.md", "chunk_index": int64(0)}},
		{Text: "c", Meta: map[string]any{"title": "Cranes", "file_name": "Cranes.md", "chunk_index": float64(3)}},
	}, nil)
	client.EXPECT().ChatWithMessages(ctx, gomock.Any(), llm.ChatParams{}).Return("Steel is up.", nil)

	res, err := rag.NewChain(client, retriever).Invoke(ctx, rag.ChainInput{Input: "steel"})
	if err != nil {
		t.Fatalf("Invoke() error = %v", err)
	}
	if res.Answer != "Steel is up." {
		t.Errorf("Answer = %q", res.Answer)
	}

	sources := res.Sources()
	if len(sources) != 2 {
		t.Fatalf("Sources() = %+v, want 2 unique", sources)
	}
	if sources[1].FileName != "Cranes.md" || sources[1].ChunkIndex != 3 {
		t.Errorf("Sources()[1] = %+v", sources[1])
	}
}

func TestToLLMMessages(t *testing.T) {
	got := rag.ToLLMMessages([]prompts.Message{
		{Role: prompts.RoleSystem, Content: "s"},
		{Role: prompts.RoleHuman, Content: "h"},
		{Role: prompts.RoleAI, Content: "a"},
	})
	want := []string{llm.RoleSystem, llm.RoleUser, llm.RoleAssistant}
	for i, m := range got {
		if m.Role != want[i] {
			t.Errorf("message %d role = %s, want %s", i, m.Role, want[i])
		}
	}
}
