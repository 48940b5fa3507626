// Package unpaywall locates open-access PDF links for DOI papers whose
// primary source did not supply one.
package unpaywall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"paperdesk/config"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Response is the JSON shape of the Unpaywall API.
type Response struct {
	BestOALocation struct {
		URLForPDF string `json:"url_for_pdf"`
	} `json:"best_oa_location"`
}

// Fetcher wraps the Unpaywall lookup.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
}

// NewFetcher creates a new Unpaywall fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{Config: cfg, Logger: logger}
}

// GetPDFLink looks up a free PDF link for a DOI. Returns "" without
// error when none is known.
func (f *Fetcher) GetPDFLink(ctx context.Context, doi string) (string, error) {
	if f.Config.ContactEmail == "" {
		return "", fmt.Errorf("contact email is not configured")
	}

	reqURL := fmt.Sprintf("%s/%s?email=%s",
		f.Config.UnpaywallBaseURL, url.PathEscape(doi), url.QueryEscape(f.Config.ContactEmail))
	log := f.Logger.With(zap.String("doi", doi))
	log.Debug("Calling Unpaywall API", zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", f.Config.UserAgent)

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unpaywall request failed with status: %d", resp.StatusCode)
	}

	var ur Response
	if err := json.NewDecoder(resp.Body).Decode(&ur); err != nil {
		return "", err
	}

	if ur.BestOALocation.URLForPDF != "" {
		log.Info("PDF link found via Unpaywall")
		return ur.BestOALocation.URLForPDF, nil
	}

	log.Debug("No PDF link in Unpaywall response")
	return "", nil
}
