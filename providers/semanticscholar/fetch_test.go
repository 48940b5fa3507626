package semanticscholar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paperdesk/config"
	"paperdesk/models"
	"paperdesk/providers"
)

const s2PaperFixture = `{
  "paperId": "204e3073870fae3d05bcbc2f6a8e263d9b72e776",
  "title": "Attention Is All You Need",
  "abstract": "The dominant sequence transduction models are based on recurrent networks.",
  "venue": "NeurIPS",
  "year": 2017,
  "citationCount": 90000,
  "authors": [{"name": "Ashish Vaswani"}, {"name": "Noam Shazeer"}],
  "externalIds": {"ArXiv": "1706.03762", "DOI": "10.48550/arXiv.1706.03762"},
  "openAccessPdf": {"url": "https://arxiv.org/pdf/1706.03762"}
}`

func testClient(serverURL string) *Client {
	return NewClient(&config.Config{
		SemanticScholarBaseURL: serverURL + "/graph/v1",
		SemanticScholarAPIKey:  "test-key",
		UserAgent:              "paperdesk/1.0",
	}, zap.NewNop())
}

func TestFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if !strings.Contains(r.URL.RawQuery, "fields=") {
			t.Errorf("fields parameter missing: %q", r.URL.RawQuery)
		}
		w.Write([]byte(s2PaperFixture))
	}))
	defer server.Close()

	paper, err := testClient(server.URL).Fetch(context.Background(), "arXiv:1706.03762")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An ArXiv external id wins over the DOI when assigning the source.
	if paper.SourceType != models.SourceArxiv {
		t.Errorf("source type = %q", paper.SourceType)
	}
	if paper.SourceIdentifier() != "1706.03762" {
		t.Errorf("source id = %q", paper.SourceIdentifier())
	}
	if paper.DOI != "10.48550/arXiv.1706.03762" {
		t.Errorf("doi = %q", paper.DOI)
	}
	if paper.PDFURL == "" {
		t.Error("pdf url should be set")
	}
	if paper.CitationCount != 90000 {
		t.Errorf("citation count = %d", paper.CitationCount)
	}
	if paper.Year == nil || *paper.Year != 2017 {
		t.Errorf("year = %v", paper.Year)
	}
}

func TestFetchNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "Paper not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Fetch(context.Background(), "DOI:10.9999/missing")
	if !errors.Is(err, providers.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchPapers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("query"); got != "attention transformers" {
			t.Errorf("query = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("default limit = %q", got)
		}
		w.Write([]byte(`{"total": 1, "data": [` + s2PaperFixture + `]}`))
	}))
	defer server.Close()

	papers, err := testClient(server.URL).SearchPapers(context.Background(), "attention transformers", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(papers) != 1 {
		t.Fatalf("got %d papers", len(papers))
	}
	if papers[0].Title != "Attention Is All You Need" {
		t.Errorf("title = %q", papers[0].Title)
	}
}

func TestRelatedUsesRecommendationsAPI(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"recommendedPapers": [` + s2PaperFixture + `]}`))
	}))
	defer server.Close()

	papers, err := testClient(server.URL).Related(context.Background(), "arXiv:1706.03762", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(gotPath, "/recommendations/v1/papers/forpaper/") {
		t.Errorf("path = %q", gotPath)
	}
	if len(papers) != 1 {
		t.Errorf("got %d papers", len(papers))
	}
}

func TestLookupID(t *testing.T) {
	arxivID := "1706.03762"
	pmid := "31511870"
	tests := []struct {
		name  string
		paper models.Paper
		want  string
	}{
		{"arxiv", models.Paper{SourceType: models.SourceArxiv, SourceID: &arxivID}, "arXiv:1706.03762"},
		{"crossref", models.Paper{SourceType: models.SourceCrossref, DOI: "10.1038/nature12373"}, "DOI:10.1038/nature12373"},
		{"pubmed", models.Paper{SourceType: models.SourcePubMed, SourceID: &pmid}, "PMID:31511870"},
		{"pdf with doi", models.Paper{SourceType: models.SourcePDF, DOI: "10.1/x"}, "DOI:10.1/x"},
		{"nothing resolvable", models.Paper{SourceType: models.SourcePDF}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LookupID(&tt.paper); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
