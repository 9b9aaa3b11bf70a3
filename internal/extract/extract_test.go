package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pagewatch/internal/watch"
)

func TestDocumentsResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	page := []byte(`<html><body>
		<a href="/files/report.pdf">Quarterly Report</a>
		<a href="minutes.DOCX">Board Minutes</a>
		<a href="https://cdn.ex.com/budget.xlsx">Budget</a>
		<a href="/about.html">About us</a>
	</body></html>`)

	docs := Documents(page, "http://ex.com/news/")
	require.Len(t, docs, 3)
	assert.Equal(t, watch.DocumentRef{Name: "Quarterly Report", URL: "http://ex.com/files/report.pdf"}, docs[0])
	assert.Equal(t, watch.DocumentRef{Name: "Board Minutes", URL: "http://ex.com/news/minutes.DOCX"}, docs[1])
	assert.Equal(t, watch.DocumentRef{Name: "Budget", URL: "https://cdn.ex.com/budget.xlsx"}, docs[2])
}

func TestDocumentsNameFallsBackToFilename(t *testing.T) {
	t.Parallel()

	page := []byte(`<a href="http://ex.com/report.pdf"></a>`)
	docs := Documents(page, "http://ex.com/")
	require.Len(t, docs, 1)
	assert.Equal(t, "report", docs[0].Name)
	assert.Equal(t, "http://ex.com/report.pdf", docs[0].URL)
}

func TestDocumentsDeduplicatesByURLFirstSeenWins(t *testing.T) {
	t.Parallel()

	page := []byte(`
		<a href="/a.pdf">First label</a>
		<a href="/a.pdf">Second label</a>
		<a href="/A.pdf">Different case is a different URL</a>
	`)
	docs := Documents(page, "http://ex.com")
	require.Len(t, docs, 2)
	assert.Equal(t, "First label", docs[0].Name)
	assert.Equal(t, "http://ex.com/a.pdf", docs[0].URL)
	assert.Equal(t, "http://ex.com/A.pdf", docs[1].URL)
}

func TestDocumentsIgnoresNonDocumentLinks(t *testing.T) {
	t.Parallel()

	page := []byte(`
		<a href="/index.html">Home</a>
		<a href="mailto:who@ex.com">Mail</a>
		<a>No href at all</a>
		<a href="/archive.pdf?download=1">Query suffix defeats the match</a>
	`)
	assert.Empty(t, Documents(page, "http://ex.com"))
}

func TestDocumentsSurvivesMalformedMarkup(t *testing.T) {
	t.Parallel()

	page := []byte(`<div><a href="/ok.pdf">OK<table><a href="/also.txt"`)
	docs := Documents(page, "http://ex.com")
	require.NotEmpty(t, docs)
	assert.Equal(t, "http://ex.com/ok.pdf", docs[0].URL)
}

func TestDocumentsNestedAnchorText(t *testing.T) {
	t.Parallel()

	page := []byte(`<a href="/a.xls"><span> Spread </span><b>sheet</b></a>`)
	docs := Documents(page, "http://ex.com")
	require.Len(t, docs, 1)
	assert.Equal(t, "Spread sheet", docs[0].Name)
}
