package models

import (
	"time"
)

// Source types a Paper can originate from.
const (
	SourceArxiv    = "arxiv"
	SourceCrossref = "crossref"
	SourcePubMed   = "pubmed"
	SourcePDF      = "pdf"
	SourceManual   = "manual"
)

// Paper is the canonical record every component consumes and produces.
// A transient Paper (no ID, no UserID) is what the fetchers and the PDF
// extractor return; the library layer persists it per user.
type Paper struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `json:"-" gorm:"index;uniqueIndex:idx_papers_user_source"`

	// Exactly one of {arxiv id, DOI, PMID} is carried in SourceID for
	// non-manual, non-PDF sources. NULL for PDF uploads so the composite
	// unique index does not collide across uploads.
	SourceType string  `json:"source_type" gorm:"size:16;index;uniqueIndex:idx_papers_user_source"`
	SourceID   *string `json:"source_id,omitempty" gorm:"size:512;uniqueIndex:idx_papers_user_source"`

	// DOI is kept alongside SourceID because PubMed papers are keyed by
	// PMID but still resolve a DOI, used for open-access PDF lookup and
	// export.
	DOI string `json:"doi,omitempty" gorm:"size:512;index"`

	Title    string `json:"title" gorm:"size:400"`
	Authors  string `json:"authors" gorm:"size:600"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`

	PDFURL        string `json:"pdf_url,omitempty"`
	Year          *int   `json:"year,omitempty"`
	Journal       string `json:"journal,omitempty"`
	CitationCount int    `json:"citation_count" gorm:"default:0"`

	Summary      string `json:"summary,omitempty" gorm:"type:text"`
	SummaryStyle string `json:"summary_style,omitempty" gorm:"size:16"`

	// Object-storage key of the uploaded file, set for PDF papers only.
	S3Key  string `json:"-"`
	S3Link string `json:"s3_link,omitempty"`

	Tags []Tag `json:"tags,omitempty" gorm:"many2many:paper_tags;"`
}

// TableName gives GORM the explicit table name.
func (Paper) TableName() string {
	return "papers"
}

// SourceIdentifier returns the stored source id or "" when unset.
func (p *Paper) SourceIdentifier() string {
	if p.SourceID == nil {
		return ""
	}
	return *p.SourceID
}
