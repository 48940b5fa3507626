// Package crossref resolves DOIs via the Crossref REST API.
package crossref

// worksResponse is the envelope of /works/{doi}.
type worksResponse struct {
	Status  string `json:"status"`
	Message work   `json:"message"`
}

// work carries the subset of Crossref work fields we map.
type work struct {
	DOI            string       `json:"DOI"`
	Title          []string     `json:"title"`
	Abstract       string       `json:"abstract"`
	Author         []workAuthor `json:"author"`
	ContainerTitle []string     `json:"container-title"`
	Issued         dateParts    `json:"issued"`
	Published      dateParts    `json:"published"`
	ReferencedBy   int          `json:"is-referenced-by-count"`
	Links          []workLink   `json:"link"`
	URL            string       `json:"URL"`
}

type workAuthor struct {
	Given  string `json:"given"`
	Family string `json:"family"`
	Name   string `json:"name"` // organizations
}

type dateParts struct {
	DateParts [][]int `json:"date-parts"`
}

type workLink struct {
	URL         string `json:"URL"`
	ContentType string `json:"content-type"`
}

// year returns the leading year component or 0.
func (d dateParts) year() int {
	if len(d.DateParts) > 0 && len(d.DateParts[0]) > 0 {
		return d.DateParts[0][0]
	}
	return 0
}
