package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffDocumentsByURLIdentity(t *testing.T) {
	t.Parallel()

	previous := []DocumentRef{
		{Name: "Annual Report", URL: "http://ex.com/report.pdf"},
		{Name: "Budget", URL: "http://ex.com/budget.xlsx"},
	}
	current := []DocumentRef{
		// Renamed but same URL: not new.
		{Name: "Annual Report 2025", URL: "http://ex.com/report.pdf"},
		{Name: "Budget", URL: "http://ex.com/budget.xlsx"},
		{Name: "Minutes", URL: "http://ex.com/minutes.docx"},
	}

	fresh := DiffDocuments(current, previous)
	assert.Equal(t, []DocumentRef{{Name: "Minutes", URL: "http://ex.com/minutes.docx"}}, fresh)
}

func TestDiffDocumentsEmptyCases(t *testing.T) {
	t.Parallel()

	assert.Nil(t, DiffDocuments(nil, []DocumentRef{{URL: "http://ex.com/a.pdf"}}))
	docs := []DocumentRef{{Name: "a", URL: "http://ex.com/a.pdf"}}
	assert.Equal(t, docs, DiffDocuments(docs, nil))
}

func TestCloneDocumentsDoesNotAlias(t *testing.T) {
	t.Parallel()

	src := []DocumentRef{{Name: "a", URL: "http://ex.com/a.pdf"}}
	dup := CloneDocuments(src)
	dup[0].Name = "b"
	assert.Equal(t, "a", src[0].Name)
	assert.Nil(t, CloneDocuments(nil))
}
