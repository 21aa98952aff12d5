// ABOUTME: Knowledge-base article search used for deflection candidates
// ABOUTME: Static token-overlap index; markdown bodies render to HTML via goldmark

package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
)

// Article is one knowledge-base entry. Body is markdown.
type Article struct {
	ID    string
	Title string
	Body  string
	Tags  []string
}

// Searcher finds deflection candidates for a query. Implementations may be
// backed by a real search index; StaticIndex is the in-process one.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Article, error)
}

// StaticIndex is an in-memory Searcher scoring articles by token overlap
// between the query and the article title, body, and tags.
type StaticIndex struct {
	mu       sync.RWMutex
	articles []Article
}

// NewStaticIndex creates an index over the given articles.
func NewStaticIndex(articles []Article) *StaticIndex {
	return &StaticIndex{articles: articles}
}

// Add appends an article to the index.
func (s *StaticIndex) Add(a Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles = append(s.articles, a)
}

// Search returns up to limit articles ranked by token overlap with the
// query. Articles with zero overlap are omitted.
func (s *StaticIndex) Search(ctx context.Context, query string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 3
	}
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		article Article
		score   int
	}
	var hits []scored
	for _, a := range s.articles {
		text := strings.ToLower(a.Title + " " + a.Body + " " + strings.Join(a.Tags, " "))
		score := 0
		for tok := range queryTokens {
			if strings.Contains(text, tok) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{article: a, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}

	out := make([]Article, len(hits))
	for i, h := range hits {
		out[i] = h.article
	}
	return out, nil
}

// tokenize lowercases and splits a query, dropping short stop-ish tokens.
func tokenize(s string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, f := range strings.Fields(strings.ToLower(s)) {
		f = strings.Trim(f, ".,!?:;\"'()")
		if len(f) < 3 {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// RenderHTML converts an article's markdown body to HTML for channels that
// accept rich content.
func RenderHTML(a Article) (string, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(a.Body), &buf); err != nil {
		return "", fmt.Errorf("rendering article %s: %w", a.ID, err)
	}
	return buf.String(), nil
}
