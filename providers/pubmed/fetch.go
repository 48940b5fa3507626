package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"paperdesk/config"
	"paperdesk/models"
	"paperdesk/providers"
)

var (
	httpClient = &http.Client{Timeout: 30 * time.Second}
	yearRegex  = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

// Fetcher resolves PMIDs against the E-utilities. Two sequential calls
// per paper: esummary for metadata, efetch for the abstract.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new PubMed fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name returns the source tag.
func (f *Fetcher) Name() string {
	return models.SourcePubMed
}

// Fetch retrieves metadata and abstract for one PMID.
func (f *Fetcher) Fetch(ctx context.Context, pmid string) (*models.Paper, error) {
	log := f.Logger.With(zap.String("pmid", pmid))

	summary, err := f.fetchSummary(ctx, pmid)
	if err != nil {
		return nil, err
	}

	paper := mapSummaryToModel(summary, pmid)

	abstract, err := f.fetchAbstract(ctx, pmid)
	if err != nil {
		return nil, err
	}
	paper.Abstract = abstract

	providers.ClampPaper(paper)
	log.Info("PubMed paper fetched", zap.String("title", paper.Title))
	return paper, nil
}

// fetchSummary runs the esummary call.
func (f *Fetcher) fetchSummary(ctx context.Context, pmid string) (*DocSummary, error) {
	reqURL := f.buildURL("esummary.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"json"},
	})
	f.Logger.Debug("Calling esummary", zap.String("url", reqURL))

	resp, err := f.get(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.UpstreamError{Source: "pubmed", Status: resp.StatusCode}
	}

	var envelope ESummaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("parsing esummary response: %w", err)
	}

	raw, ok := envelope.Result[pmid]
	if !ok {
		return nil, providers.ErrNotFound
	}
	var doc DocSummary
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing esummary document: %w", err)
	}
	if doc.Error != "" || doc.Title == "" {
		return nil, providers.ErrNotFound
	}
	return &doc, nil
}

// fetchAbstract runs the efetch call and extracts the abstract text.
func (f *Fetcher) fetchAbstract(ctx context.Context, pmid string) (string, error) {
	reqURL := f.buildURL("efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {pmid},
		"retmode": {"xml"},
	})
	f.Logger.Debug("Calling efetch", zap.String("url", reqURL))

	resp, err := f.get(ctx, reqURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", &providers.UpstreamError{Source: "pubmed", Status: resp.StatusCode}
	}

	var set ArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&set); err != nil {
		return "", fmt.Errorf("parsing efetch response: %w", err)
	}
	if len(set.Articles) == 0 {
		return "", nil // metadata exists, abstract may simply be absent
	}

	joined := strings.Join(set.Articles[0].MedlineCitation.Article.Abstract.Text, " ")
	return providers.CleanText(joined), nil
}

func (f *Fetcher) get(ctx context.Context, reqURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.Config.UserAgent)
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed request failed: %w", err)
	}
	return resp, nil
}

// buildURL assembles an E-utilities URL with the tool/email registration
// parameters and the optional API key.
func (f *Fetcher) buildURL(endpoint string, params url.Values) string {
	params.Set("tool", f.Config.PubMedTool)
	if f.Config.ContactEmail != "" {
		params.Set("email", f.Config.ContactEmail)
	}
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}
	return fmt.Sprintf("%s/%s?%s", f.Config.PubMedBaseURL, endpoint, params.Encode())
}

// mapSummaryToModel converts an esummary document into the canonical
// Paper shape. The abstract is filled in by the second call.
func mapSummaryToModel(doc *DocSummary, pmid string) *models.Paper {
	sourceID := pmid
	p := &models.Paper{
		SourceType: models.SourcePubMed,
		SourceID:   &sourceID,
		DOI:        doc.DOI(),
		Title:      providers.CleanText(doc.Title),
		Journal:    doc.FullJournalName,
	}

	var names []string
	for _, a := range doc.Authors {
		names = append(names, a.Name)
	}
	p.Authors = providers.JoinAuthors(names)

	// pubdate arrives as free text like "2013 Jul 11" or "2013".
	if m := yearRegex.FindString(doc.PubDate); m != "" {
		if y, err := strconv.Atoi(m); err == nil {
			p.Year = &y
		}
	}

	return p
}

// DOI returns the DOI recorded among the document's alternate ids, if any.
func (d *DocSummary) DOI() string {
	for _, id := range d.ArticleIDs {
		if strings.EqualFold(id.IDType, "doi") {
			return id.Value
		}
	}
	return ""
}
