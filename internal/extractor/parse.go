package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

// ErrNoContent is returned when neither the configured container nor the
// readability fallback yields article text.
var ErrNoContent = errors.New("no article content found")

var titleSelector = cascadia.MustCompile("title")

// Article is one scraped news article.
type Article struct {
	Title     string
	Body      string
	SourceURL string
}

// Content is the text written to disk: the title, a blank line, then the body.
func (a *Article) Content() string {
	return a.Title + "\n\n" + a.Body
}

// Parser pulls the title and body out of an article page.
type Parser struct {
	container cascadia.Selector
	excludes  []cascadia.Selector
	suffix    string
}

// NewParser compiles the selectors for the content container and the blocks removed from it.
// A class containing spaces must match the whole class attribute; otherwise it matches one class token.
func NewParser(contentClass string, excludeClasses []string, titleSuffix string) (*Parser, error) {
	container, err := classSelector(contentClass)
	if err != nil {
		return nil, err
	}

	p := &Parser{container: container, suffix: titleSuffix}
	for _, cls := range excludeClasses {
		sel, err := classSelector(cls)
		if err != nil {
			return nil, err
		}
		p.excludes = append(p.excludes, sel)
	}
	return p, nil
}

func classSelector(class string) (cascadia.Selector, error) {
	class = strings.TrimSpace(class)
	if class == "" {
		return nil, fmt.Errorf("empty class name")
	}

	query := "div." + class
	if strings.ContainsAny(class, " \t") {
		query = fmt.Sprintf("div[class=%q]", class)
	}
	sel, err := cascadia.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("invalid class %q: %w", class, err)
	}
	return sel, nil
}

// Parse extracts the article from page. pageURL is recorded as the source and
// used by the readability fallback to resolve relative links.
func (p *Parser) Parse(page, pageURL string) (*Article, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse article page: %w", err)
	}

	article := &Article{SourceURL: pageURL}
	if t := cascadia.Query(doc, titleSelector); t != nil {
		article.Title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(textContent(t)), strings.TrimSpace(p.suffix)))
	}

	if container := cascadia.Query(doc, p.container); container != nil {
		for _, sel := range p.excludes {
			for _, n := range cascadia.QueryAll(container, sel) {
				if n.Parent != nil {
					n.Parent.RemoveChild(n)
				}
			}
		}
		article.Body = strings.TrimSpace(textContent(container))
	}

	if article.Body == "" || article.Title == "" {
		if err := p.fallback(page, pageURL, article); err != nil {
			return nil, err
		}
	}

	return article, nil
}

// fallback fills whatever the selectors missed from go-readability's extraction.
func (p *Parser) fallback(page, pageURL string, article *Article) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		u = &url.URL{}
	}

	r, err := readability.FromReader(strings.NewReader(page), u)
	if err != nil {
		if article.Body == "" {
			return fmt.Errorf("%w: %v", ErrNoContent, err)
		}
		return nil
	}

	if article.Title == "" {
		article.Title = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(r.Title), strings.TrimSpace(p.suffix)))
	}
	if article.Body == "" {
		article.Body = strings.TrimSpace(r.TextContent)
	}
	if article.Body == "" {
		return ErrNoContent
	}
	if article.Title == "" {
		return fmt.Errorf("article at %s has no title", pageURL)
	}
	return nil
}

// textContent concatenates the text nodes below n, skipping scripts and styles.
func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			sb.WriteString(n.Data)
			return
		case html.ElementNode:
			if n.Data == "script" || n.Data == "style" {
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}
