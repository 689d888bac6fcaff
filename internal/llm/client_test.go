package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8081/", "test-key", "test-model")
	if client == nil {
		t.Fatal("NewClient() returned nil")
	}
	if client.BaseURL != "http://localhost:8081" {
		t.Errorf("NewClient() BaseURL = %v, want trailing slash trimmed", client.BaseURL)
	}
	if client.APIKey != "test-key" {
		t.Errorf("NewClient() APIKey = %v, want test-key", client.APIKey)
	}
	if client.Model != "test-model" {
		t.Errorf("NewClient() Model = %v, want test-model", client.Model)
	}
	if client.client == nil {
		t.Error("NewClient() client should not be nil")
	}
}

func TestClient_ChatWithMessages(t *testing.T) {
	tests := []struct {
		name       string
		params     ChatParams
		serverResp func(t *testing.T, w http.ResponseWriter, r *http.Request)
		wantReply  string
		wantErr    bool
	}{
		{
			name:   "successful chat with params",
			params: ChatParams{Model: "custom-model", MaxTokens: 100, Temperature: 0},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("expected POST, got %s", r.Method)
				}
				if r.URL.Path != "/v1/chat/completions" {
					t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
				}
				if !strings.Contains(r.Header.Get("Authorization"), "Bearer") {
					t.Error("missing Authorization header")
				}

				var raw map[string]any
				_ = json.NewDecoder(r.Body).Decode(&raw)
				if raw["model"] != "custom-model" {
					t.Errorf("model = %v, want custom-model", raw["model"])
				}
				if raw["max_tokens"] != float64(100) {
					t.Errorf("max_tokens = %v, want 100", raw["max_tokens"])
				}
				// Zero temperature must still be sent.
				if temp, ok := raw["temperature"]; !ok || temp != float64(0) {
					t.Errorf("temperature = %v (present %v), want 0", temp, ok)
				}
				if msgs, _ := raw["messages"].([]any); len(msgs) != 2 {
					t.Errorf("expected 2 messages, got %d", len(msgs))
				}

				resp := ChatResponse{
					ID:     "test-id",
					Object: "chat.completion",
					Choices: []ChatChoice{{
						Message:      ChatChoiceMessage{Role: "assistant", Content: "Hi there!"},
						FinishReason: "stop",
					}},
				}
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(resp)
			},
			wantReply: "Hi there!",
		},
		{
			name:   "default model",
			params: ChatParams{},
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if req.Model != "test-model" {
					t.Errorf("expected model test-model, got %s", req.Model)
				}
				if req.MaxTokens != 0 {
					t.Errorf("expected no max_tokens, got %d", req.MaxTokens)
				}
				_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{{Message: ChatChoiceMessage{Content: "Response"}}}})
			},
			wantReply: "Response",
		},
		{
			name: "no choices returned",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(ChatResponse{Choices: []ChatChoice{}})
			},
			wantErr: true,
		},
		{
			name: "server error",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("internal server error"))
			},
			wantErr: true,
		},
	}

	messages := []Message{
		{Role: RoleSystem, Content: "You are a helpful assistant"},
		{Role: RoleUser, Content: "Hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResp(t, w, r)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			reply, err := client.ChatWithMessages(context.Background(), messages, tt.params)

			if tt.wantErr {
				if err == nil {
					t.Errorf("ChatWithMessages() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ChatWithMessages() unexpected error: %v", err)
			}
			if reply != tt.wantReply {
				t.Errorf("ChatWithMessages() reply = %v, want %v", reply, tt.wantReply)
			}
		})
	}
}

func TestClient_StreamChatWithMessages(t *testing.T) {
	tests := []struct {
		name       string
		serverResp func(t *testing.T, w http.ResponseWriter, r *http.Request)
		wantChunks []string
		wantErr    bool
	}{
		{
			name: "successful streaming",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Accept") != "text/event-stream" {
					t.Error("missing Accept header")
				}
				var req ChatRequest
				_ = json.NewDecoder(r.Body).Decode(&req)
				if !req.Stream {
					t.Error("expected stream=true")
				}

				w.Header().Set("Content-Type", "text/event-stream")
				flusher, _ := w.(http.Flusher)

				chunks := []string{
					`{"choices":[{"delta":{"content":"Hello"}}]}`,
					`not json`,
					`{"choices":[{"delta":{"content":" "}}]}`,
					`{"choices":[{"delta":{"content":"world"}}]}`,
					`{"choices":[{"finish_reason":"stop"}]}`,
					`{"choices":[{"delta":{"content":"ignored"}}]}`,
				}
				for _, chunk := range chunks {
					_, _ = w.Write([]byte("data: " + chunk + "\n\n"))
					flusher.Flush()
				}
				_, _ = w.Write([]byte("data: [DONE]\n\n"))
			},
			wantChunks: []string{"Hello", " ", "world"},
		},
		{
			name: "done marker ends stream",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\ndata: [DONE]\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n"))
			},
			wantChunks: []string{"a"},
		},
		{
			name: "server error",
			serverResp: func(t *testing.T, w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				tt.serverResp(t, w, r)
			}))
			defer server.Close()

			client := NewClient(server.URL, "test-key", "test-model")
			var receivedChunks []string

			err := client.StreamChatWithMessages(context.Background(), []Message{{Role: RoleUser, Content: "Hello"}}, ChatParams{}, func(chunk string) error {
				receivedChunks = append(receivedChunks, chunk)
				return nil
			})

			if tt.wantErr {
				if err == nil {
					t.Errorf("StreamChatWithMessages() expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("StreamChatWithMessages() unexpected error: %v", err)
			}

			if strings.Join(receivedChunks, "|") != strings.Join(tt.wantChunks, "|") {
				t.Errorf("StreamChatWithMessages() chunks = %q, want %q", receivedChunks, tt.wantChunks)
			}
		})
	}
}

func TestClient_StreamChatWithMessages_CallbackError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n"))
	}))
	defer server.Close()

	sentinel := errors.New("client went away")
	client := NewClient(server.URL, "test-key", "test-model")
	err := client.StreamChatWithMessages(context.Background(), nil, ChatParams{}, func(string) error {
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("StreamChatWithMessages() error = %v, want wrapped callback error", err)
	}
}
