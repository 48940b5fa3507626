// Package semanticscholar talks to the Semantic Scholar Graph API for
// paper lookup, search, citation/reference listings and recommendations.
package semanticscholar

// s2Paper carries the subset of Graph API paper fields we request.
type s2Paper struct {
	PaperID       string        `json:"paperId"`
	Title         string        `json:"title"`
	Abstract      string        `json:"abstract"`
	Venue         string        `json:"venue"`
	Year          int           `json:"year"`
	CitationCount int           `json:"citationCount"`
	Authors       []s2Author    `json:"authors"`
	ExternalIDs   s2ExternalIDs `json:"externalIds"`
	OpenAccessPDF s2OpenAccess  `json:"openAccessPdf"`
}

type s2Author struct {
	Name string `json:"name"`
}

type s2ExternalIDs struct {
	ArXiv  string `json:"ArXiv"`
	DOI    string `json:"DOI"`
	PubMed string `json:"PubMed"`
}

type s2OpenAccess struct {
	URL string `json:"url"`
}

// searchResponse is the envelope of /paper/search.
type searchResponse struct {
	Total int       `json:"total"`
	Data  []s2Paper `json:"data"`
}

// citationsResponse is the envelope of /paper/{id}/citations.
type citationsResponse struct {
	Data []struct {
		CitingPaper s2Paper `json:"citingPaper"`
	} `json:"data"`
}

// referencesResponse is the envelope of /paper/{id}/references.
type referencesResponse struct {
	Data []struct {
		CitedPaper s2Paper `json:"citedPaper"`
	} `json:"data"`
}

// recommendationsResponse is the envelope of the recommendations API.
type recommendationsResponse struct {
	RecommendedPapers []s2Paper `json:"recommendedPapers"`
}
