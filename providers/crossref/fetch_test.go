package crossref

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paperdesk/config"
	"paperdesk/providers"
)

const workFixture = `{
  "status": "ok",
  "message": {
    "DOI": "10.1038/nature12373",
    "title": ["Nanometre-scale thermometry in a living cell"],
    "abstract": "<jats:p>Sensitive probing of temperature variations on nanometre scales.</jats:p>",
    "author": [
      {"given": "Georg", "family": "Kucsko"},
      {"given": "Peter", "family": "Maurer"},
      {"name": "The Sensing Consortium"}
    ],
    "container-title": ["Nature"],
    "published": {"date-parts": [[2013, 7, 31]]},
    "is-referenced-by-count": 1500,
    "link": [
      {"URL": "https://www.nature.com/articles/nature12373.pdf", "content-type": "application/pdf"}
    ]
  }
}`

func testFetcher(serverURL string) *Fetcher {
	return NewFetcher(&config.Config{
		CrossrefBaseURL: serverURL,
		ContactEmail:    "ops@example.org",
		UserAgent:       "paperdesk/1.0",
	}, zap.NewNop())
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/works/") {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("mailto"); got != "ops@example.org" {
			t.Errorf("mailto = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "mailto:ops@example.org") {
			t.Errorf("polite-pool user agent missing mailto: %q", ua)
		}
		w.Write([]byte(workFixture))
	}))
	defer server.Close()

	paper, err := testFetcher(server.URL).Fetch(context.Background(), "10.1038/nature12373")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if paper.SourceType != "crossref" {
		t.Errorf("source type = %q", paper.SourceType)
	}
	if paper.DOI != "10.1038/nature12373" {
		t.Errorf("doi = %q", paper.DOI)
	}
	if paper.Title != "Nanometre-scale thermometry in a living cell" {
		t.Errorf("title = %q", paper.Title)
	}
	if strings.Contains(paper.Abstract, "<") || strings.Contains(paper.Abstract, "jats") {
		t.Errorf("JATS markup not stripped: %q", paper.Abstract)
	}
	if paper.Authors != "Georg Kucsko, Peter Maurer, The Sensing Consortium" {
		t.Errorf("authors = %q", paper.Authors)
	}
	if paper.Journal != "Nature" {
		t.Errorf("journal = %q", paper.Journal)
	}
	if paper.Year == nil || *paper.Year != 2013 {
		t.Errorf("year = %v", paper.Year)
	}
	if paper.CitationCount != 1500 {
		t.Errorf("citation count = %d", paper.CitationCount)
	}
	if paper.PDFURL != "https://www.nature.com/articles/nature12373.pdf" {
		t.Errorf("pdf url = %q", paper.PDFURL)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).Fetch(context.Background(), "10.9999/無")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).Fetch(context.Background(), "10.1038/nature12373")
	var upstream *providers.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Source != "crossref" || upstream.Status != http.StatusTooManyRequests {
		t.Errorf("upstream = %+v", upstream)
	}
}
