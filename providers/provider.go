// Package providers defines the contract every metadata source (ArXiv,
// Crossref, PubMed, Semantic Scholar) implements, plus the text cleaning
// shared by all of them.
package providers

import (
	"context"
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"paperdesk/models"
)

// ErrNotFound signals an upstream 404 or an empty result set for the
// requested identifier.
var ErrNotFound = errors.New("paper not found at source")

// UpstreamError carries a non-2xx status from a metadata source. It is
// surfaced to the caller untouched; there is no automatic retry.
type UpstreamError struct {
	Source string
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.Source, e.Status)
}

// Fetcher resolves one canonical identifier into a transient Paper.
type Fetcher interface {
	// Fetch makes the outbound call(s) for one identifier. Returns
	// ErrNotFound on upstream 404/empty result, *UpstreamError otherwise.
	Fetch(ctx context.Context, id string) (*models.Paper, error)

	// Name returns the source tag ("arxiv", "crossref", ...).
	Name() string
}

var (
	tagRegex        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

// CleanText strips HTML/XML markup, decodes entities and collapses all
// whitespace runs to single spaces. Every abstract leaves a fetcher in
// this form regardless of the source encoding.
func CleanText(s string) string {
	s = tagRegex.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// JoinAuthors renders a display list from individual author names,
// falling back to "Unknown Authors" when the source supplied none.
func JoinAuthors(names []string) string {
	var kept []string
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			kept = append(kept, n)
		}
	}
	if len(kept) == 0 {
		return "Unknown Authors"
	}
	return strings.Join(kept, ", ")
}

// Persisted field limits shared across sources.
const (
	MaxTitleLen    = 400
	MaxAuthorsLen  = 600
	MaxAbstractLen = 4000
)

// Clamp truncates s to max runes.
func Clamp(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}

// ClampPaper applies the persisted-form length limits in place.
func ClampPaper(p *models.Paper) {
	p.Title = Clamp(p.Title, MaxTitleLen)
	p.Authors = Clamp(p.Authors, MaxAuthorsLen)
	p.Abstract = Clamp(p.Abstract, MaxAbstractLen)
}
