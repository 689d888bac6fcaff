package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"industryinsider/internal/prompts"
)

func pair(q, a string) []prompts.Message {
	return []prompts.Message{
		{Role: prompts.RoleHuman, Content: q},
		{Role: prompts.RoleAI, Content: a},
	}
}

// exerciseStore runs the behaviour every Store implementation must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	msgs, err := s.History(ctx, "new-session")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Errorf("History() of new session = %v, want empty", msgs)
	}

	want := pair("What rose?", "Steel exports.")
	if err := s.Save(ctx, "new-session", want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := s.History(ctx, "new-session")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("History() = %+v, want %+v", got, want)
	}

	other, err := s.History(ctx, "other-session")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("sessions are not isolated: %+v", other)
	}

	if err := s.Clear(ctx, "new-session"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	got, err = s.History(ctx, "new-session")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("History() after Clear = %#v, want empty", got)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestMemoryStore_EmptyHistoryEncodesAsList(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	tests := []struct {
		name  string
		setup func()
	}{
		{name: "new session", setup: func() {}},
		{name: "cleared session", setup: func() {
			_ = s.Save(ctx, "id", pair("q", "a"))
			_ = s.Clear(ctx, "id")
		}},
		{name: "saved empty", setup: func() {
			_ = s.Save(ctx, "id", nil)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			msgs, err := s.History(ctx, "id")
			if err != nil {
				t.Fatalf("History() error = %v", err)
			}
			data, err := json.Marshal(msgs)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(data) != "[]" {
				t.Errorf("History() encodes as %s, want []", data)
			}
		})
	}
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_ = s.Save(ctx, "id", pair("q", "a"))
	got, _ := s.History(ctx, "id")
	got[0].Content = "mutated"

	again, _ := s.History(ctx, "id")
	if again[0].Content != "q" {
		t.Error("History() exposes internal state")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("s%d", i%4)
			msgs, _ := s.History(ctx, id)
			_ = s.Save(ctx, id, append(msgs, pair("q", "a")...))
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		msgs, _ := s.History(ctx, fmt.Sprintf("s%d", i))
		if len(msgs)%2 != 0 || len(msgs) == 0 {
			t.Errorf("session s%d has %d messages", i, len(msgs))
		}
	}
}
