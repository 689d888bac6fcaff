package extractor

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

var anchorSelector = cascadia.MustCompile("a[href]")

// ExtractLinks returns the article links found in a rendered listing page.
// Every href is resolved against urlPrefix; a link is kept when it starts with
// baseURL and the second-to-last segment of its path is "articleshow".
// The result is deduplicated in first-seen order.
func ExtractLinks(page, baseURL, urlPrefix string) ([]string, error) {
	prefix, err := url.Parse(urlPrefix)
	if err != nil {
		return nil, fmt.Errorf("invalid url prefix: %w", err)
	}

	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	seen := make(map[string]struct{})
	var links []string
	for _, a := range cascadia.QueryAll(doc, anchorSelector) {
		ref, err := url.Parse(strings.TrimSpace(attr(a, "href")))
		if err != nil {
			continue
		}
		abs := prefix.ResolveReference(ref)
		link := abs.String()

		if !strings.HasPrefix(link, baseURL) || !isArticlePath(abs.Path) {
			continue
		}
		if _, ok := seen[link]; ok {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}

	return links, nil
}

func isArticlePath(p string) bool {
	segments := strings.Split(p, "/")
	return len(segments) >= 2 && segments[len(segments)-2] == "articleshow"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
