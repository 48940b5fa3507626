package semanticscholar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperdesk/config"
	"paperdesk/models"
	"paperdesk/providers"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// paperFields is requested on every paper-shaped response.
const paperFields = "title,abstract,authors,year,venue,externalIds,citationCount,openAccessPdf"

// Client wraps the Graph API. All calls share the same header
// construction; the API key header is attached only when configured.
type Client struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewClient creates a new Semantic Scholar client.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{Config: cfg, Logger: logger}
}

// Name returns the source tag used in logs and discovery responses.
func (c *Client) Name() string {
	return "semanticscholar"
}

// Fetch retrieves one paper by any identifier the Graph API accepts:
// a raw S2 id, "arXiv:<id>", "DOI:<doi>" or "PMID:<pmid>".
func (c *Client) Fetch(ctx context.Context, id string) (*models.Paper, error) {
	reqURL := fmt.Sprintf("%s/paper/%s?fields=%s",
		c.Config.SemanticScholarBaseURL, url.PathEscape(id), paperFields)

	var result s2Paper
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	if result.Title == "" {
		return nil, providers.ErrNotFound
	}

	paper := mapPaperToModel(&result)
	providers.ClampPaper(paper)
	c.Logger.Info("Semantic Scholar paper fetched",
		zap.String("id", id), zap.String("title", paper.Title))
	return paper, nil
}

// LookupID derives the Graph API identifier for a stored paper, or ""
// when the paper carries nothing the API can resolve.
func LookupID(paper *models.Paper) string {
	switch paper.SourceType {
	case models.SourceArxiv:
		if id := paper.SourceIdentifier(); id != "" {
			return "arXiv:" + id
		}
	case models.SourceCrossref:
		if paper.DOI != "" {
			return "DOI:" + paper.DOI
		}
	case models.SourcePubMed:
		if id := paper.SourceIdentifier(); id != "" {
			return "PMID:" + id
		}
	}
	if paper.DOI != "" {
		return "DOI:" + paper.DOI
	}
	return ""
}

// CitationCount returns the current citation count for an identifier.
// Used by the nightly refresh job.
func (c *Client) CitationCount(ctx context.Context, id string) (int, error) {
	reqURL := fmt.Sprintf("%s/paper/%s?fields=citationCount",
		c.Config.SemanticScholarBaseURL, url.PathEscape(id))

	var result s2Paper
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return 0, err
	}
	return result.CitationCount, nil
}

// SearchPapers runs a relevance search and maps the hits.
func (c *Client) SearchPapers(ctx context.Context, query string, limit int) ([]*models.Paper, error) {
	if limit <= 0 {
		limit = 20
	}
	params := url.Values{
		"query":  {query},
		"limit":  {fmt.Sprintf("%d", limit)},
		"fields": {paperFields},
	}
	reqURL := fmt.Sprintf("%s/paper/search?%s", c.Config.SemanticScholarBaseURL, params.Encode())

	var result searchResponse
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	return mapPaperList(result.Data), nil
}

// Citations lists papers citing the given identifier.
func (c *Client) Citations(ctx context.Context, id string, limit int) ([]*models.Paper, error) {
	reqURL := fmt.Sprintf("%s/paper/%s/citations?fields=%s&limit=%d",
		c.Config.SemanticScholarBaseURL, url.PathEscape(id), paperFields, normalizeLimit(limit))

	var result citationsResponse
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	papers := make([]*models.Paper, 0, len(result.Data))
	for i := range result.Data {
		if p := result.Data[i].CitingPaper; p.Title != "" {
			papers = append(papers, clamped(mapPaperToModel(&p)))
		}
	}
	return papers, nil
}

// References lists papers the given identifier cites.
func (c *Client) References(ctx context.Context, id string, limit int) ([]*models.Paper, error) {
	reqURL := fmt.Sprintf("%s/paper/%s/references?fields=%s&limit=%d",
		c.Config.SemanticScholarBaseURL, url.PathEscape(id), paperFields, normalizeLimit(limit))

	var result referencesResponse
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	papers := make([]*models.Paper, 0, len(result.Data))
	for i := range result.Data {
		if p := result.Data[i].CitedPaper; p.Title != "" {
			papers = append(papers, clamped(mapPaperToModel(&p)))
		}
	}
	return papers, nil
}

// Related lists recommendations for the given identifier. The
// recommendations API lives beside the graph API under its own prefix.
func (c *Client) Related(ctx context.Context, id string, limit int) ([]*models.Paper, error) {
	base := strings.Replace(c.Config.SemanticScholarBaseURL, "/graph/v1", "/recommendations/v1", 1)
	reqURL := fmt.Sprintf("%s/papers/forpaper/%s?fields=%s&limit=%d",
		base, url.PathEscape(id), paperFields, normalizeLimit(limit))

	var result recommendationsResponse
	if err := c.getJSON(ctx, reqURL, &result); err != nil {
		return nil, err
	}
	return mapPaperList(result.RecommendedPapers), nil
}

// getJSON performs one GET with the shared headers and decodes into out.
func (c *Client) getJSON(ctx context.Context, reqURL string, out any) error {
	c.Logger.Debug("Calling Semantic Scholar API", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", c.Config.UserAgent)
	if c.Config.SemanticScholarAPIKey != "" {
		req.Header.Set("x-api-key", c.Config.SemanticScholarAPIKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("semantic scholar request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return &providers.UpstreamError{Source: "semanticscholar", Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing semantic scholar response: %w", err)
	}
	return nil
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 25
	}
	return limit
}

// mapPaperToModel converts a Graph API paper into the canonical shape.
// The source tag follows the strongest external identifier so downstream
// code treats the record exactly like a directly fetched one.
func mapPaperToModel(p *s2Paper) *models.Paper {
	paper := &models.Paper{
		Title:         providers.CleanText(p.Title),
		Abstract:      providers.CleanText(p.Abstract),
		Journal:       p.Venue,
		CitationCount: p.CitationCount,
		DOI:           p.ExternalIDs.DOI,
		PDFURL:        p.OpenAccessPDF.URL,
	}

	var names []string
	for _, a := range p.Authors {
		names = append(names, a.Name)
	}
	paper.Authors = providers.JoinAuthors(names)

	if p.Year > 0 {
		y := p.Year
		paper.Year = &y
	}

	switch {
	case p.ExternalIDs.ArXiv != "":
		id := p.ExternalIDs.ArXiv
		paper.SourceType = models.SourceArxiv
		paper.SourceID = &id
		if paper.PDFURL == "" {
			paper.PDFURL = fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id)
		}
	case p.ExternalIDs.DOI != "":
		id := p.ExternalIDs.DOI
		paper.SourceType = models.SourceCrossref
		paper.SourceID = &id
	case p.ExternalIDs.PubMed != "":
		id := p.ExternalIDs.PubMed
		paper.SourceType = models.SourcePubMed
		paper.SourceID = &id
	default:
		id := p.PaperID
		paper.SourceType = models.SourceManual
		paper.SourceID = &id
	}

	return paper
}

func mapPaperList(in []s2Paper) []*models.Paper {
	papers := make([]*models.Paper, 0, len(in))
	for i := range in {
		if in[i].Title == "" {
			continue
		}
		papers = append(papers, clamped(mapPaperToModel(&in[i])))
	}
	return papers
}

func clamped(p *models.Paper) *models.Paper {
	providers.ClampPaper(p)
	return p
}
