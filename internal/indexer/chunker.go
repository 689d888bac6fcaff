package indexer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"industryinsider/internal/tokens"
)

const (
	// ChunkerVersion identifies the chunking algorithm in the index version hash.
	// Update this when chunking logic changes significantly.
	ChunkerVersion = "semantic-v1"

	defaultBufferSize = 1
	defaultPercentile = 95.0
)

// SemanticChunker groups consecutive sentences whose embeddings are close and
// splits where the embedding distance jumps. Chunks that exceed the token
// limit are split again until every chunk fits.
type SemanticChunker struct {
	embedder   Embedder
	counter    tokens.Counter
	maxTokens  int
	bufferSize int
	percentile float64
	md         goldmark.Markdown
}

// NewSemanticChunker creates a chunker that keeps chunks at or below maxTokens.
func NewSemanticChunker(embedder Embedder, counter tokens.Counter, maxTokens int) *SemanticChunker {
	return &SemanticChunker{
		embedder:   embedder,
		counter:    counter,
		maxTokens:  maxTokens,
		bufferSize: defaultBufferSize,
		percentile: defaultPercentile,
		md: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Chunk splits text semantically, then re-splits any piece over the token
// limit. The returned chunks are indexed from 0.
func (c *SemanticChunker) Chunk(ctx context.Context, text string) ([]Chunk, error) {
	pieces, err := c.Split(ctx, text)
	if err != nil {
		return nil, err
	}

	var bounded []string
	for _, piece := range pieces {
		if bounded, err = c.bound(ctx, piece, bounded); err != nil {
			return nil, err
		}
	}

	chunks := make([]Chunk, 0, len(bounded))
	for _, t := range bounded {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       t,
			TokenCount: c.counter.Count(t),
		})
	}
	return chunks, nil
}

// Split performs one semantic pass over a markdown document. Block elements
// (paragraphs, headings, list items, table rows, code blocks) always end a sentence.
func (c *SemanticChunker) Split(ctx context.Context, text string) ([]string, error) {
	var sentences []string
	for _, block := range c.blocks([]byte(text)) {
		sentences = append(sentences, splitSentences(block)...)
	}
	return c.group(ctx, sentences)
}

// bound appends text to out if it fits, otherwise the pieces of a further split.
func (c *SemanticChunker) bound(ctx context.Context, text string, out []string) ([]string, error) {
	if c.counter.Count(text) <= c.maxTokens {
		return append(out, text), nil
	}

	sub, err := c.group(ctx, splitSentences(text))
	if err != nil {
		return nil, err
	}
	if len(sub) <= 1 {
		// No semantic breakpoint inside; split on size alone.
		return append(out, c.hardSplit(text)...), nil
	}

	for _, s := range sub {
		if out, err = c.bound(ctx, s, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// group embeds each sentence with its neighbours and cuts where the cosine
// distance to the next window exceeds the configured percentile.
func (c *SemanticChunker) group(ctx context.Context, sentences []string) ([]string, error) {
	if len(sentences) <= 1 {
		return sentences, nil
	}

	combined := combineSentences(sentences, c.bufferSize)
	vecs, err := c.embedder.EmbedTexts(ctx, combined)
	if err != nil {
		return nil, fmt.Errorf("failed to embed sentences: %w", err)
	}
	if len(vecs) != len(combined) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(combined), len(vecs))
	}

	distances := make([]float64, len(vecs)-1)
	for i := range distances {
		distances[i] = cosineDistance(vecs[i], vecs[i+1])
	}
	threshold := percentile(distances, c.percentile)

	var groups []string
	start := 0
	for i, d := range distances {
		if d > threshold {
			groups = append(groups, strings.Join(sentences[start:i+1], " "))
			start = i + 1
		}
	}
	if start < len(sentences) {
		groups = append(groups, strings.Join(sentences[start:], " "))
	}
	return groups, nil
}

// hardSplit packs sentences greedily under the token limit, falling back to
// words and then runes for units that are too long on their own.
func (c *SemanticChunker) hardSplit(text string) []string {
	return c.pack(splitSentences(text), " ", func(sentence string) []string {
		return c.pack(strings.Fields(sentence), " ", func(word string) []string {
			return c.pack(strings.Split(word, ""), "", nil)
		})
	})
}

func (c *SemanticChunker) pack(units []string, sep string, finer func(string) []string) []string {
	var out []string
	cur := ""
	flush := func() {
		if cur != "" {
			out = append(out, cur)
			cur = ""
		}
	}

	for _, u := range units {
		if finer != nil && c.counter.Count(u) > c.maxTokens {
			flush()
			out = append(out, finer(u)...)
			continue
		}
		candidate := u
		if cur != "" {
			candidate = cur + sep + u
		}
		if cur == "" || c.counter.Count(candidate) <= c.maxTokens {
			cur = candidate
			continue
		}
		flush()
		cur = u
	}
	flush()
	return out
}

// blocks returns the text of each leaf block of a markdown document in order.
func (c *SemanticChunker) blocks(content []byte) []string {
	doc := c.md.Parser().Parse(text.NewReader(content))

	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.TextBlock:
			add(inlineText(node, content))
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			var sb strings.Builder
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(content))
			}
			add(strings.Join(strings.Fields(sb.String()), " "))
			return ast.WalkSkipChildren, nil
		case *east.TableHeader, *east.TableRow:
			add(tableRowText(node, content))
			return ast.WalkSkipChildren, nil
		case *ast.HTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return out
}

// inlineText extracts the text of a block's inline children. Line breaks become spaces.
func inlineText(n ast.Node, content []byte) string {
	var sb strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := node.(type) {
		case *ast.Text:
			sb.Write(v.Segment.Value(content))
			if v.SoftLineBreak() || v.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}

// tableRowText joins the cells of a table row with pipe separators.
func tableRowText(row ast.Node, content []byte) string {
	var cells []string
	for cell := row.FirstChild(); cell != nil; cell = cell.NextSibling() {
		cells = append(cells, inlineText(cell, content))
	}
	return strings.Join(cells, " | ")
}

// splitSentences splits after '.', '?' or '!' wherever whitespace follows.
// The whitespace run is dropped and the punctuation stays with its sentence.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0

	for i := 0; i < len(runes); i++ {
		if !unicode.IsSpace(runes[i]) || i == 0 {
			continue
		}
		switch runes[i-1] {
		case '.', '?', '!':
		default:
			continue
		}

		end := i
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if sentence := strings.TrimSpace(string(runes[start:end])); sentence != "" {
			out = append(out, sentence)
		}
		start = i
		i--
	}

	if sentence := strings.TrimSpace(string(runes[start:])); sentence != "" {
		out = append(out, sentence)
	}
	return out
}

// combineSentences joins each sentence with up to buffer neighbours on each side.
func combineSentences(sentences []string, buffer int) []string {
	combined := make([]string, len(sentences))
	for i := range sentences {
		lo := max(i-buffer, 0)
		hi := min(i+buffer+1, len(sentences))
		combined[i] = strings.Join(sentences[lo:hi], " ")
	}
	return combined
}

// cosineDistance is 1 - cosine similarity. A zero vector is treated as orthogonal to everything.
func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := 0; i < len(a) && i < len(b); i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// percentile uses linear interpolation between the closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}
