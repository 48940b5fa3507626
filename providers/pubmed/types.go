// Package pubmed fetches paper metadata from the NCBI E-utilities.
package pubmed

import (
	"encoding/json"
	"encoding/xml"
)

// ESummaryResponse is the JSON envelope of esummary. Each document lives
// under its own uid key, so the result map is decoded lazily.
type ESummaryResponse struct {
	Result map[string]json.RawMessage `json:"result"`
}

// DocSummary is one esummary document.
type DocSummary struct {
	UID             string      `json:"uid"`
	Title           string      `json:"title"`
	FullJournalName string      `json:"fulljournalname"`
	PubDate         string      `json:"pubdate"`
	Authors         []DocAuthor `json:"authors"`
	ArticleIDs      []ArticleID `json:"articleids"`
	Error           string      `json:"error"`
}

// DocAuthor is a single author entry in esummary.
type DocAuthor struct {
	Name string `json:"name"`
}

// ArticleID is an alternate identifier (doi, pmc, ...) in esummary.
type ArticleID struct {
	IDType string `json:"idtype"`
	Value  string `json:"value"`
}

// ArticleSet is the XML document returned by efetch.
type ArticleSet struct {
	XMLName  xml.Name  `xml:"PubmedArticleSet"`
	Articles []Article `xml:"PubmedArticle"`
}

// Article is a single article in the efetch response.
type Article struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Abstract struct {
				Text []string `xml:"AbstractText"`
			} `xml:"Abstract"`
		} `xml:"Article"`
	} `xml:"MedlineCitation"`
}
