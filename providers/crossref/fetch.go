package crossref

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

// Fetcher resolves DOIs against api.crossref.org. Requests carry the
// configured contact email as a polite-pool mailto parameter.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new Crossref fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name returns the source tag.
func (f *Fetcher) Name() string {
	return models.SourceCrossref
}

// Fetch retrieves metadata for one DOI, e.g. "10.1038/nature12373".
func (f *Fetcher) Fetch(ctx context.Context, doi string) (*models.Paper, error) {
	log := f.Logger.With(zap.String("doi", doi))

	reqURL := fmt.Sprintf("%s/works/%s?mailto=%s",
		f.Config.CrossrefBaseURL, url.PathEscape(doi), url.QueryEscape(f.Config.ContactEmail))
	log.Debug("Calling Crossref works API", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", fmt.Sprintf("%s (mailto:%s)", f.Config.UserAgent, f.Config.ContactEmail))

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crossref request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.UpstreamError{Source: "crossref", Status: resp.StatusCode}
	}

	var result worksResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing crossref response: %w", err)
	}

	paper := mapWorkToModel(&result.Message, doi)
	providers.ClampPaper(paper)
	log.Info("Crossref paper fetched", zap.String("title", paper.Title))
	return paper, nil
}

// mapWorkToModel converts a Crossref work into the canonical Paper shape.
func mapWorkToModel(w *work, doi string) *models.Paper {
	sourceID := doi
	p := &models.Paper{
		SourceType:    models.SourceCrossref,
		SourceID:      &sourceID,
		DOI:           doi,
		Abstract:      providers.CleanText(w.Abstract), // JATS markup stripped
		CitationCount: w.ReferencedBy,
	}

	if len(w.Title) > 0 {
		p.Title = providers.CleanText(w.Title[0])
	}
	if len(w.ContainerTitle) > 0 {
		p.Journal = w.ContainerTitle[0]
	}

	var names []string
	for _, a := range w.Author {
		switch {
		case a.Given != "" || a.Family != "":
			names = append(names, strings.TrimSpace(a.Given+" "+a.Family))
		case a.Name != "":
			names = append(names, a.Name)
		}
	}
	p.Authors = providers.JoinAuthors(names)

	if y := w.Published.year(); y > 0 {
		p.Year = &y
	} else if y := w.Issued.year(); y > 0 {
		p.Year = &y
	}

	for _, l := range w.Links {
		if strings.Contains(strings.ToLower(l.ContentType), "pdf") && l.URL != "" {
			p.PDFURL = l.URL
			break
		}
	}

	return p
}
