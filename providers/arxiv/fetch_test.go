package arxiv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"paperdesk/config"
	"paperdesk/providers"
)

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All You Need</title>
    <summary>  The dominant sequence transduction models
are based on complex recurrent networks.  </summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam Shazeer</name></author>
    <journal_ref>NeurIPS 2017</journal_ref>
  </entry>
</feed>`

const emptyFeedFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"></feed>`

func testFetcher(serverURL string) *Fetcher {
	return NewFetcher(&config.Config{
		ArxivBaseURL: serverURL,
		UserAgent:    "paperdesk/1.0",
	}, zap.NewNop())
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id_list"); got != "1706.03762" {
			t.Errorf("id_list = %q", got)
		}
		if got := r.URL.Query().Get("max_results"); got != "1" {
			t.Errorf("max_results = %q", got)
		}
		w.Write([]byte(atomFixture))
	}))
	defer server.Close()

	paper, err := testFetcher(server.URL).Fetch(context.Background(), "1706.03762")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if paper.SourceType != "arxiv" {
		t.Errorf("source type = %q", paper.SourceType)
	}
	if paper.SourceIdentifier() != "1706.03762" {
		t.Errorf("source id = %q", paper.SourceIdentifier())
	}
	if paper.Title != "Attention Is All You Need" {
		t.Errorf("title = %q", paper.Title)
	}
	if paper.Authors != "Ashish Vaswani, Noam Shazeer" {
		t.Errorf("authors = %q", paper.Authors)
	}
	if paper.Abstract != "The dominant sequence transduction models are based on complex recurrent networks." {
		t.Errorf("abstract not cleaned: %q", paper.Abstract)
	}
	if paper.PDFURL != "https://arxiv.org/pdf/1706.03762.pdf" {
		t.Errorf("pdf url = %q", paper.PDFURL)
	}
	if paper.Year == nil || *paper.Year != 2017 {
		t.Errorf("year = %v", paper.Year)
	}
	if paper.Journal != "NeurIPS 2017" {
		t.Errorf("journal = %q", paper.Journal)
	}
}

func TestFetchUnknownID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(emptyFeedFixture))
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).Fetch(context.Background(), "9999.99999")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testFetcher(server.URL).Fetch(context.Background(), "1706.03762")
	var upstream *providers.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusServiceUnavailable {
		t.Errorf("status = %d", upstream.Status)
	}
}
