package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/mock/gomock"

	"industryinsider/internal/vectorstore"
	"industryinsider/internal/vectorstore/mocks"
)

func TestHealthHandler_ServeHTTP(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		mockSetup  func(*mocks.MockVectorStore)
		wantStatus int
		wantHealth string
		wantCheck  string
		wantIndex  string
		wantPoints *int
	}{
		{
			name:   "collection present",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "articles").Return(true, nil)
				m.EXPECT().GetCollectionInfo(gomock.Any(), "articles").
					Return(&vectorstore.CollectionInfo{VectorSize: 768, PointsCount: 412, Status: "Green"}, nil)
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantCheck:  "ok",
			wantIndex:  "ok",
			wantPoints: intPtr(412),
		},
		{
			name:   "collection empty",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "articles").Return(true, nil)
				m.EXPECT().GetCollectionInfo(gomock.Any(), "articles").
					Return(&vectorstore.CollectionInfo{VectorSize: 768, Status: "Green"}, nil)
			},
			wantStatus: http.StatusOK,
			wantHealth: "healthy",
			wantCheck:  "ok",
			wantIndex:  "empty",
			wantPoints: intPtr(0),
		},
		{
			name:   "collection info unavailable",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "articles").Return(true, nil)
				m.EXPECT().GetCollectionInfo(gomock.Any(), "articles").Return(nil, errors.New("deadline exceeded"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantCheck:  "error",
		},
		{
			name:   "collection missing",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "articles").Return(false, nil)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantCheck:  "error",
		},
		{
			name:   "qdrant unreachable",
			method: http.MethodGet,
			mockSetup: func(m *mocks.MockVectorStore) {
				m.EXPECT().CollectionExists(gomock.Any(), "articles").Return(false, errors.New("connection refused"))
			},
			wantStatus: http.StatusServiceUnavailable,
			wantHealth: "unhealthy",
			wantCheck:  "error",
		},
		{
			name:       "method not allowed",
			method:     http.MethodPost,
			mockSetup:  func(m *mocks.MockVectorStore) {},
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			mockVectorStore := mocks.NewMockVectorStore(ctrl)
			tt.mockSetup(mockVectorStore)
			handler := NewHealthHandler(mockVectorStore, "articles")

			req := httptest.NewRequest(tt.method, "/api/health", nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantHealth == "" {
				return
			}

			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if resp.Status != tt.wantHealth {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantHealth)
			}
			if resp.Checks["vector_store"] != tt.wantCheck {
				t.Errorf("vector_store check = %q, want %q", resp.Checks["vector_store"], tt.wantCheck)
			}
			if resp.Checks["index"] != tt.wantIndex {
				t.Errorf("index check = %q, want %q", resp.Checks["index"], tt.wantIndex)
			}
			switch {
			case tt.wantPoints == nil && resp.Points != nil:
				t.Errorf("points = %d, want omitted", *resp.Points)
			case tt.wantPoints != nil && (resp.Points == nil || *resp.Points != *tt.wantPoints):
				t.Errorf("points = %v, want %d", resp.Points, *tt.wantPoints)
			}
			if resp.Timestamp == "" {
				t.Error("timestamp not set")
			}
		})
	}
}

func intPtr(v int) *int { return &v }
