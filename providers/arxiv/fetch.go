package arxiv

import (
	"context"
	"encoding/xml"
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

// Fetcher resolves ArXiv ids against the Atom query API.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new ArXiv fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// Name returns the source tag.
func (f *Fetcher) Name() string {
	return models.SourceArxiv
}

// Fetch retrieves metadata for one ArXiv id, e.g. "2301.00234".
func (f *Fetcher) Fetch(ctx context.Context, id string) (*models.Paper, error) {
	log := f.Logger.With(zap.String("arxiv_id", id))

	reqURL := fmt.Sprintf("%s?id_list=%s&max_results=1", f.Config.ArxivBaseURL, url.QueryEscape(id))
	log.Debug("Calling ArXiv query API", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.Config.UserAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("arxiv request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, providers.ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &providers.UpstreamError{Source: "arxiv", Status: resp.StatusCode}
	}

	var result feed
	if err := xml.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("parsing arxiv response: %w", err)
	}

	// Unknown ids come back as an empty feed or an error stub without an
	// abs link.
	if len(result.Entries) == 0 {
		return nil, providers.ErrNotFound
	}
	e := result.Entries[0]
	if !strings.Contains(e.ID, "/abs/") {
		return nil, providers.ErrNotFound
	}

	paper := mapEntryToModel(&e, id)
	providers.ClampPaper(paper)
	log.Info("ArXiv paper fetched", zap.String("title", paper.Title))
	return paper, nil
}

// mapEntryToModel converts an Atom entry into the canonical Paper shape.
func mapEntryToModel(e *entry, id string) *models.Paper {
	sourceID := id
	p := &models.Paper{
		SourceType: models.SourceArxiv,
		SourceID:   &sourceID,
		Title:      providers.CleanText(e.Title),
		Abstract:   providers.CleanText(e.Summary),
		Journal:    strings.TrimSpace(e.JournalRef),
		PDFURL:     fmt.Sprintf("https://arxiv.org/pdf/%s.pdf", id),
	}

	var names []string
	for _, a := range e.Authors {
		names = append(names, a.Name)
	}
	p.Authors = providers.JoinAuthors(names)

	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		y := t.Year()
		p.Year = &y
	}

	return p
}
