// Package arxiv fetches paper metadata from the ArXiv Atom query API.
package arxiv

import "encoding/xml"

// feed is the Atom envelope returned by the query endpoint.
type feed struct {
	XMLName xml.Name `xml:"feed"`
	Entries []entry  `xml:"entry"`
}

// entry is a single result in the Atom feed.
type entry struct {
	ID         string   `xml:"id"`
	Title      string   `xml:"title"`
	Summary    string   `xml:"summary"`
	Published  string   `xml:"published"`
	Authors    []author `xml:"author"`
	JournalRef string   `xml:"journal_ref"`
	Links      []link   `xml:"link"`
}

type author struct {
	Name string `xml:"name"`
}

type link struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}
