// ABOUTME: Tests for the static knowledge index
// ABOUTME: Covers ranking, limits, and markdown rendering

package knowledge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticIndex_Search_RanksByOverlap(t *testing.T) {
	idx := NewStaticIndex(DefaultArticles())

	hits, err := idx.Search(context.Background(), "how do I reset my password", 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, "kb-password-reset", hits[0].ID)
}

func TestStaticIndex_Search_RespectsLimit(t *testing.T) {
	idx := NewStaticIndex(DefaultArticles())

	hits, err := idx.Search(context.Background(), "how settings account billing data team", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(hits), 2)
}

func TestStaticIndex_Search_NoMatches(t *testing.T) {
	idx := NewStaticIndex(DefaultArticles())

	hits, err := idx.Search(context.Background(), "zzz qqq xxx", 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestStaticIndex_Add(t *testing.T) {
	idx := NewStaticIndex(nil)
	idx.Add(Article{ID: "kb-1", Title: "Webhook signatures", Body: "Verifying webhook payloads.", Tags: []string{"webhook"}})

	hits, err := idx.Search(context.Background(), "webhook signature verification", 3)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "kb-1", hits[0].ID)
}

func TestRenderHTML_ConvertsMarkdown(t *testing.T) {
	html, err := RenderHTML(Article{ID: "kb-x", Body: "## Heading\n\nSome **bold** text."})
	require.NoError(t, err)
	assert.Contains(t, html, "<h2>")
	assert.Contains(t, html, "<strong>bold</strong>")
}
