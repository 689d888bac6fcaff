package indexer

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

// wordCounter counts whitespace-separated words as tokens.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

// runeCounter counts runes as tokens.
type runeCounter struct{}

func (runeCounter) Count(text string) int { return utf8.RuneCountInString(text) }

// topicEmbedder places texts by how often they mention each topic word.
type topicEmbedder struct {
	calls int
	err   error
}

func (e *topicEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		vecs[i] = []float32{
			float32(strings.Count(lower, "steel")),
			float32(strings.Count(lower, "cricket")),
			0.001,
		}
	}
	return vecs, nil
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "mixed punctuation",
			in:   "Hello world. How are you?  Fine!\nOk",
			want: []string{"Hello world.", "How are you?", "Fine!", "Ok"},
		},
		{
			name: "no whitespace after period",
			in:   "Output grew 3.5 percent.Exports fell.",
			want: []string{"Output grew 3.5 percent.Exports fell."},
		},
		{
			name: "trailing whitespace",
			in:   "One.  ",
			want: []string{"One."},
		},
		{
			name: "empty",
			in:   "   ",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSentences(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitSentences() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCombineSentences(t *testing.T) {
	got := combineSentences([]string{"a", "b", "c", "d"}, 1)
	want := []string{"a b", "a b c", "b c d", "c d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("combineSentences() = %q, want %q", got, want)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2}, []float32{1, 2}, 0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 1},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 2},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cosineDistance(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineDistance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPercentile(t *testing.T) {
	values := []float64{4, 1, 3, 2}
	tests := []struct {
		p    float64
		want float64
	}{
		{0, 1},
		{50, 2.5},
		{95, 3.85},
		{100, 4},
	}
	for _, tt := range tests {
		if got := percentile(values, tt.p); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("percentile(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
	if got := percentile(nil, 95); got != 0 {
		t.Errorf("percentile(nil) = %v, want 0", got)
	}
}

func TestSemanticChunker_Blocks(t *testing.T) {
	c := NewSemanticChunker(&topicEmbedder{}, wordCounter{}, 100)

	content := "# Title\n\nPara one line\ncontinues here\n\n- item a\n- item b\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"
	got := c.blocks([]byte(content))
	want := []string{"Title", "Para one line continues here", "item a", "item b", "a | b", "1 | 2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("blocks() = %q, want %q", got, want)
	}
}

func TestSemanticChunker_Split_BreaksOnTopicChange(t *testing.T) {
	c := NewSemanticChunker(&topicEmbedder{}, wordCounter{}, 100)

	text := "Steel prices rose. Steel mills expanded. Steel exports grew. " +
		"Cricket season opened. Cricket fans cheered. Cricket tickets sold out."
	got, err := c.Split(context.Background(), text)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{
		"Steel prices rose. Steel mills expanded. Steel exports grew.",
		"Cricket season opened. Cricket fans cheered. Cricket tickets sold out.",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Split() = %q, want %q", got, want)
	}
}

func TestSemanticChunker_Split_SingleSentenceSkipsEmbedding(t *testing.T) {
	emb := &topicEmbedder{}
	c := NewSemanticChunker(emb, wordCounter{}, 100)

	got, err := c.Split(context.Background(), "Only one sentence here")
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(got) != 1 || got[0] != "Only one sentence here" {
		t.Errorf("Split() = %q", got)
	}
	if emb.calls != 0 {
		t.Errorf("embedder called %d times, want 0", emb.calls)
	}
}

func TestSemanticChunker_Chunk_RespectsTokenLimit(t *testing.T) {
	const maxTokens = 10
	c := NewSemanticChunker(&topicEmbedder{}, wordCounter{}, maxTokens)

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		sb.WriteString("Steel demand from infrastructure projects stayed strong this quarter. ")
	}
	text := sb.String()

	chunks, err := c.Chunk(context.Background(), text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("Chunk() = %d chunks, want several", len(chunks))
	}

	var words []string
	for i, ch := range chunks {
		if ch.Index != i {
			t.Errorf("chunk %d has Index %d", i, ch.Index)
		}
		if ch.TokenCount > maxTokens {
			t.Errorf("chunk %d has %d tokens, limit %d", i, ch.TokenCount, maxTokens)
		}
		if ch.TokenCount != (wordCounter{}).Count(ch.Text) {
			t.Errorf("chunk %d TokenCount = %d, text has %d", i, ch.TokenCount, (wordCounter{}).Count(ch.Text))
		}
		words = append(words, strings.Fields(ch.Text)...)
	}
	if !reflect.DeepEqual(words, strings.Fields(text)) {
		t.Error("chunks do not preserve the original words in order")
	}
}

func TestSemanticChunker_Chunk_SplitsLongWords(t *testing.T) {
	c := NewSemanticChunker(&topicEmbedder{}, runeCounter{}, 4)

	chunks, err := c.Chunk(context.Background(), "abcdefghij")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}

	var got []string
	for _, ch := range chunks {
		got = append(got, ch.Text)
	}
	want := []string{"abcd", "efgh", "ij"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Chunk() = %q, want %q", got, want)
	}
}

func TestSemanticChunker_Chunk_Empty(t *testing.T) {
	c := NewSemanticChunker(&topicEmbedder{}, wordCounter{}, 10)

	chunks, err := c.Chunk(context.Background(), "")
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(chunks) != 0 {
		t.Errorf("Chunk(\"\") = %v, want none", chunks)
	}
}

func TestSemanticChunker_Chunk_EmbedderError(t *testing.T) {
	c := NewSemanticChunker(&topicEmbedder{err: errors.New("embedding service down")}, wordCounter{}, 10)

	if _, err := c.Chunk(context.Background(), "First sentence. Second sentence."); err == nil {
		t.Error("Chunk() expected error from embedder")
	}
}
