package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/mock/gomock"

	"industryinsider/internal/handlers"
	"industryinsider/internal/indexer"
	"industryinsider/internal/metrics"
	"industryinsider/internal/prompts"
	service_mocks "industryinsider/internal/service/mocks"
	"industryinsider/internal/storage"
	storage_mocks "industryinsider/internal/storage/mocks"
	"industryinsider/internal/vectorstore"
	vectorstore_mocks "industryinsider/internal/vectorstore/mocks"
)

type stubIndexer struct{}

func (stubIndexer) IndexAll(ctx context.Context) (*indexer.RunStats, error) {
	return &indexer.RunStats{}, nil
}

type stubKeywordIndex struct{}

func (stubKeywordIndex) Rebuild(ctx context.Context, store storage.ChunkStore) (int, error) {
	return 0, nil
}

type routerFixture struct {
	chat     *service_mocks.MockChatService
	vectors  *vectorstore_mocks.MockVectorStore
	articles *storage_mocks.MockArticleStore
	router   http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ChatRequests.WithLabelValues(metrics.OutcomeOK).Inc()

	f := &routerFixture{
		chat:     service_mocks.NewMockChatService(ctrl),
		vectors:  vectorstore_mocks.NewMockVectorStore(ctrl),
		articles: storage_mocks.NewMockArticleStore(ctrl),
	}
	index := handlers.NewIndexHandler(stubIndexer{}, stubKeywordIndex{}, storage_mocks.NewMockChunkStore(ctrl))
	t.Cleanup(func() {
		_ = index.Shutdown(context.Background())
	})
	f.router = NewRouter(&Deps{
		ChatService:  f.chat,
		VectorStore:  f.vectors,
		Collection:   "articles",
		IndexHandler: index,
		ArticleRepo:  f.articles,
		DataDir:      t.TempDir(),
		Gatherer:     reg,
	})
	return f
}

func TestNewRouter(t *testing.T) {
	f := newRouterFixture(t)
	if f.router == nil {
		t.Fatal("NewRouter() returned nil")
	}
}

func TestRouter_Routes(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		mockSetup  func(*routerFixture)
		wantStatus int
		wantBody   string
	}{
		{
			name:   "GET root serves the chat page",
			method: http.MethodGet,
			path:   "/",
			mockSetup: func(f *routerFixture) {
				f.chat.EXPECT().History(gomock.Any(), gomock.Any()).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "IndustryInsider Assistant",
		},
		{
			name:       "POST /api/chat exists",
			method:     http.MethodPost,
			path:       "/api/chat",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "GET /api/chat method not allowed",
			method:     http.MethodGet,
			path:       "/api/chat",
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:   "GET /api/history",
			method: http.MethodGet,
			path:   "/api/history",
			mockSetup: func(f *routerFixture) {
				f.chat.EXPECT().History(gomock.Any(), gomock.Any()).
					Return([]prompts.Message{{Role: prompts.RoleHuman, Content: "hi"}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"content":"hi"`,
		},
		{
			name:   "POST /api/refresh",
			method: http.MethodPost,
			path:   "/api/refresh",
			mockSetup: func(f *routerFixture) {
				f.chat.EXPECT().ClearHistory(gomock.Any(), gomock.Any()).Return(nil)
			},
			wantStatus: http.StatusNoContent,
		},
		{
			name:   "GET /api/health",
			method: http.MethodGet,
			path:   "/api/health",
			mockSetup: func(f *routerFixture) {
				f.vectors.EXPECT().CollectionExists(gomock.Any(), "articles").Return(true, nil)
				f.vectors.EXPECT().GetCollectionInfo(gomock.Any(), "articles").
					Return(&vectorstore.CollectionInfo{PointsCount: 12}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   `"points":12`,
		},
		{
			name:   "GET /api/messages",
			method: http.MethodGet,
			path:   "/api/messages",
			mockSetup: func(f *routerFixture) {
				f.chat.EXPECT().History(gomock.Any(), gomock.Any()).
					Return([]prompts.Message{{Role: prompts.RoleAI, Content: "**Mundra** cleared"}}, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "<strong>Mundra</strong>",
		},
		{
			name:       "POST /api/index",
			method:     http.MethodPost,
			path:       "/api/index",
			wantStatus: http.StatusAccepted,
			wantBody:   `"accepted"`,
		},
		{
			name:   "GET /api/articles",
			method: http.MethodGet,
			path:   "/api/articles",
			mockSetup: func(f *routerFixture) {
				f.articles.EXPECT().List(gomock.Any()).Return(nil, nil)
			},
			wantStatus: http.StatusOK,
			wantBody:   "[]",
		},
		{
			name:       "GET missing article",
			method:     http.MethodGet,
			path:       "/articles/Missing.txt",
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "GET /metrics",
			method:     http.MethodGet,
			path:       "/metrics",
			wantStatus: http.StatusOK,
			wantBody:   "industryinsider_chat_requests_total",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			if tt.mockSetup != nil {
				tt.mockSetup(f)
			}

			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()

			f.router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("Router %s %s status = %v, want %v", tt.method, tt.path, w.Code, tt.wantStatus)
			}
			if tt.wantBody != "" && !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body missing %q: %s", tt.wantBody, w.Body.String())
			}
		})
	}
}

func TestRouter_SessionCookieScope(t *testing.T) {
	f := newRouterFixture(t)
	f.chat.EXPECT().History(gomock.Any(), gomock.Any()).Return(nil, nil)
	f.vectors.EXPECT().CollectionExists(gomock.Any(), "articles").Return(true, nil)
	f.vectors.EXPECT().GetCollectionInfo(gomock.Any(), "articles").Return(&vectorstore.CollectionInfo{}, nil)

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if len(w.Result().Cookies()) != 1 {
		t.Errorf("chat page should issue a session cookie, got %v", w.Result().Cookies())
	}

	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if len(w.Result().Cookies()) != 0 {
		t.Errorf("health check should not issue a session cookie, got %v", w.Result().Cookies())
	}
}
