package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperdesk/models"
)

func exportFixture() []models.Paper {
	year := 2017
	arxivID := "1706.03762"
	return []models.Paper{
		{
			ID:            1,
			SourceType:    models.SourceArxiv,
			SourceID:      &arxivID,
			DOI:           "10.48550/arXiv.1706.03762",
			Title:         "Attention Is All You Need",
			Authors:       "Ashish Vaswani, Noam Shazeer",
			Abstract:      "We propose the Transformer.",
			Year:          &year,
			Journal:       "NeurIPS",
			CitationCount: 90000,
			PDFURL:        "https://arxiv.org/pdf/1706.03762.pdf",
		},
		{
			ID:         2,
			SourceType: models.SourcePDF,
			Title:      "An Unpublished Draft",
		},
	}
}

func TestExportBibTeX(t *testing.T) {
	out, err := ExportPapers(exportFixture(), FormatBibTeX)
	require.NoError(t, err)

	assert.Contains(t, out, "@article{vaswani2017_1,")
	assert.Contains(t, out, "title = {Attention Is All You Need}")
	assert.Contains(t, out, "author = {Ashish Vaswani and Noam Shazeer}")
	assert.Contains(t, out, "doi = {10.48550/arXiv.1706.03762}")
	assert.Contains(t, out, "@article{anonnd_2,")
	assert.Equal(t, 2, strings.Count(out, "@article{"))
}

func TestExportRIS(t *testing.T) {
	out, err := ExportPapers(exportFixture(), FormatRIS)
	require.NoError(t, err)

	assert.Contains(t, out, "TY  - JOUR")
	assert.Contains(t, out, "TI  - Attention Is All You Need")
	assert.Contains(t, out, "AU  - Ashish Vaswani")
	assert.Contains(t, out, "AU  - Noam Shazeer")
	assert.Contains(t, out, "PY  - 2017")
	assert.Equal(t, 2, strings.Count(out, "ER  - "))
}

func TestExportCSV(t *testing.T) {
	out, err := ExportPapers(exportFixture(), FormatCSV)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "title,authors,year,journal,doi,source_type,source_id,citation_count,pdf_url", lines[0])
	assert.Contains(t, lines[1], "Attention Is All You Need")
	assert.Contains(t, lines[1], "1706.03762")
	// Empty fields still hold their columns.
	assert.Contains(t, lines[2], "An Unpublished Draft")
}

func TestExportMarkdown(t *testing.T) {
	out, err := ExportPapers(exportFixture(), FormatMarkdown)
	require.NoError(t, err)

	assert.Contains(t, out, "**Attention Is All You Need**")
	assert.Contains(t, out, "[doi:10.48550/arXiv.1706.03762]")
	assert.Contains(t, out, "Unknown Authors (n.d.). **An Unpublished Draft**.")
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := ExportPapers(exportFixture(), "docx")
	require.Error(t, err)
	assert.False(t, ValidExportFormat("docx"))
	assert.True(t, ValidExportFormat(FormatRIS))
}
