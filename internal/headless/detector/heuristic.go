// Package detector decides when a page fetch should be promoted to a
// headless renderer.
package detector

import (
	"strings"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

// Heuristic promotes pages whose static HTML likely hides its links
// behind client-side rendering. Since document discovery reads anchors
// out of the markup, a scripted page that serves none statically is
// the strongest promotion signal; tiny script-heavy bodies and known
// SPA shell markers cover the rest.
type Heuristic struct {
	BodyLengthThreshold int
}

// NewHeuristic creates a new detector.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

var spaMarkers = []string{
	"__next",
	`id="root"`,
	`id="app"`,
	"data-reactroot",
}

const scriptDensityPct = 25

// ShouldPromote decides whether a headless re-fetch is required.
func (h *Heuristic) ShouldPromote(resp watch.FetchResponse) bool {
	if resp.StatusCode != 200 {
		return false
	}
	if len(resp.Body) == 0 {
		return true
	}
	body := strings.ToLower(string(resp.Body))
	scripted := scriptCoverage(body)

	// No anchors in the static HTML means nothing for the extractor to
	// find; when the page carries scripts, the links are presumably
	// injected client-side.
	if scripted > 0 && !hasAnchor(body) {
		return true
	}
	if len(body) < h.BodyLengthThreshold && scripted*100/len(body) >= scriptDensityPct {
		return true
	}
	for _, marker := range spaMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

// hasAnchor reports whether the (lowercased) markup contains an <a>
// tag. A bare "<a" prefix match would also hit <abbr>, <article> and
// friends, so the next byte must terminate the tag name.
func hasAnchor(body string) bool {
	for pos := 0; ; {
		idx := strings.Index(body[pos:], "<a")
		if idx == -1 {
			return false
		}
		next := pos + idx + 2
		if next >= len(body) {
			return false
		}
		switch body[next] {
		case ' ', '\t', '\n', '\r', '>', '/':
			return true
		}
		pos = next
	}
}

// scriptCoverage counts the bytes occupied by script tags and their
// contents in the (lowercased) markup.
func scriptCoverage(body string) int {
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	total := len(body)
	coverage := 0
	searchPos := 0

	for {
		relativeStart := strings.Index(body[searchPos:], openTag)
		if relativeStart == -1 {
			break
		}
		start := searchPos + relativeStart

		tagClose := strings.IndexByte(body[start:], '>')
		if tagClose == -1 {
			// Treat the rest of the document as part of the malformed script.
			coverage += total - start
			break
		}
		contentStart := start + tagClose + 1

		relativeEnd := strings.Index(body[contentStart:], closeTag)
		var nextSearch int
		if relativeEnd == -1 {
			// Script tag never closes; count the rest.
			nextSearch = total
		} else {
			nextSearch = contentStart + relativeEnd + len(closeTag)
		}

		coverage += nextSearch - start
		searchPos = nextSearch
	}
	return coverage
}
