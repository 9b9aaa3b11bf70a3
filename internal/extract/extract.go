// Package extract discovers downloadable documents linked from a page.
package extract

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// documentExtensions is the suffix allow-list that marks a link as a
// downloadable document. Matching is case-insensitive on the resolved
// URL.
var documentExtensions = []string{
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx", ".txt",
}

// Documents parses rawContent as HTML and returns every document link
// reachable from it, with relative hrefs resolved against baseURL.
//
// The result is deduplicated by resolved URL; when the same URL appears
// under several anchors the first-seen anchor text wins. Parsing is
// best effort: malformed markup yields whatever the tolerant parser
// recovered, never an error.
func Documents(rawContent []byte, baseURL string) []watch.DocumentRef {
	base, err := url.Parse(baseURL)
	if err != nil {
		base = nil
	}
	root, err := html.Parse(bytes.NewReader(rawContent))
	if err != nil {
		// html.Parse only fails on reader errors; a bytes.Reader never
		// produces one, but degrade to an empty set regardless.
		return nil
	}

	seen := make(map[string]struct{})
	var docs []watch.DocumentRef
	for node := range root.Descendants() {
		if node.Type != html.ElementNode || node.Data != "a" {
			continue
		}
		href, ok := attr(node, "href")
		if !ok {
			continue
		}
		resolved := resolve(base, href)
		if resolved == "" || !isDocumentURL(resolved) {
			continue
		}
		if _, dup := seen[resolved]; dup {
			continue
		}
		seen[resolved] = struct{}{}
		docs = append(docs, watch.DocumentRef{
			Name: documentName(node, resolved),
			URL:  resolved,
		})
	}
	return docs
}

func attr(node *html.Node, name string) (string, bool) {
	for _, a := range node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}

func isDocumentURL(resolved string) bool {
	lower := strings.ToLower(resolved)
	for _, ext := range documentExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// documentName prefers the trimmed anchor text; when the anchor is
// empty it falls back to the URL's last path segment with the
// extension stripped.
func documentName(anchor *html.Node, resolved string) string {
	if text := strings.TrimSpace(nodeText(anchor)); text != "" {
		return text
	}
	segment := resolved
	if u, err := url.Parse(resolved); err == nil {
		segment = u.Path
	}
	name := path.Base(segment)
	return strings.TrimSuffix(name, path.Ext(name))
}

func nodeText(node *html.Node) string {
	var sb strings.Builder
	for child := range node.Descendants() {
		if child.Type == html.TextNode {
			sb.WriteString(child.Data)
		}
	}
	return sb.String()
}
