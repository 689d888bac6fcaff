package rag

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/mock/gomock"

	"industryinsider/internal/storage"
	storage_mocks "industryinsider/internal/storage/mocks"
)

func newKeywordRetriever(t *testing.T, chunks []*storage.ChunkRecord) *KeywordRetriever {
	t.Helper()
	ctrl := gomock.NewController(t)
	store := storage_mocks.NewMockChunkStore(ctrl)
	store.EXPECT().ListAll(gomock.Any()).Return(chunks, nil)

	r := NewKeywordRetriever(5)
	n, err := r.Rebuild(context.Background(), store)
	if err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	if n != len(chunks) {
		t.Fatalf("Rebuild() indexed %d chunks, want %d", n, len(chunks))
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestKeywordRetriever_Retrieve(t *testing.T) {
	r := newKeywordRetriever(t, []*storage.ChunkRecord{
		{ID: "c1", Text: "India's steel exports rose sharply in May.", Title: "Steel", FileName: "Steel.md"},
		{ID: "c2", Text: "Cricket season opens with record ticket sales.", Title: "Cricket", FileName: "Cricket.md"},
		{ID: "c3", Text: "Crane makers report higher orders from steel mills.", Title: "Cranes", FileName: "Cranes.md", ChunkIndex: 2, SourceURL: "https://example.com/cranes"},
	})

	got, err := r.Retrieve(context.Background(), "steel exports")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Retrieve() returned %d documents, want 2", len(got))
	}
	if got[0].ID != "c1" || got[1].ID != "c3" {
		t.Errorf("Retrieve() order = [%s %s], want [c1 c3]", got[0].ID, got[1].ID)
	}
	if got[0].Score <= got[1].Score {
		t.Errorf("scores not descending: %v, %v", got[0].Score, got[1].Score)
	}

	src := got[1].Source()
	if src.Title != "Cranes" || src.FileName != "Cranes.md" || src.ChunkIndex != 2 || src.SourceURL != "https://example.com/cranes" {
		t.Errorf("Source() = %+v", src)
	}
}

func TestKeywordRetriever_StopwordOnlyQuery(t *testing.T) {
	r := newKeywordRetriever(t, []*storage.ChunkRecord{{ID: "c1", Text: "the state of the market"}})

	got, err := r.Retrieve(context.Background(), "the of")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Retrieve() = %v, want none", got)
	}
}

func TestKeywordRetriever_EmptyIndex(t *testing.T) {
	r := NewKeywordRetriever(0)

	got, err := r.Retrieve(context.Background(), "steel")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if got != nil {
		t.Errorf("Retrieve() before Rebuild = %v, want nil", got)
	}
}

func TestKeywordRetriever_RebuildReplacesIndex(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage_mocks.NewMockChunkStore(ctrl)
	gomock.InOrder(
		store.EXPECT().ListAll(gomock.Any()).Return([]*storage.ChunkRecord{{ID: "old", Text: "steel prices"}}, nil),
		store.EXPECT().ListAll(gomock.Any()).Return([]*storage.ChunkRecord{{ID: "new", Text: "steel output"}}, nil),
	)

	r := NewKeywordRetriever(5)
	defer func() { _ = r.Close() }()
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := r.Rebuild(ctx, store); err != nil {
			t.Fatalf("Rebuild() error = %v", err)
		}
	}

	got, err := r.Retrieve(ctx, "steel")
	if err != nil {
		t.Fatalf("Retrieve() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "new" {
		t.Errorf("Retrieve() = %+v, want only the rebuilt chunk", got)
	}
}

func TestKeywordRetriever_RebuildError(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := storage_mocks.NewMockChunkStore(ctrl)
	store.EXPECT().ListAll(gomock.Any()).Return(nil, errors.New("database is locked"))

	if _, err := NewKeywordRetriever(5).Rebuild(context.Background(), store); err == nil {
		t.Error("Rebuild() expected error")
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Steel-output, 2024!", []string{"steel", "output", "2024"}},
		{"", nil},
		{"  ...  ", nil},
	}
	for _, tt := range tests {
		if got := tokenize(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFilterStopwords(t *testing.T) {
	if got := filterStopwords([]string{"the", "steel", "of", "india"}); !reflect.DeepEqual(got, []string{"steel", "india"}) {
		t.Errorf("filterStopwords() = %q", got)
	}
	if got := filterStopwords([]string{"the", "and"}); got != nil {
		t.Errorf("filterStopwords() = %q, want nil", got)
	}
}
