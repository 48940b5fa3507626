package services

import (
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"paperdesk/models"
)

// Export format names accepted by the export endpoint.
const (
	FormatBibTeX   = "bibtex"
	FormatRIS      = "ris"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
)

// ValidExportFormat reports whether the name is a supported format.
func ValidExportFormat(format string) bool {
	switch format {
	case FormatBibTeX, FormatRIS, FormatCSV, FormatMarkdown:
		return true
	}
	return false
}

// ContentType returns the MIME type to serve an export as.
func ContentType(format string) string {
	switch format {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

// ExportPapers renders the papers into the requested citation format.
func ExportPapers(papers []models.Paper, format string) (string, error) {
	switch format {
	case FormatBibTeX:
		return exportBibTeX(papers), nil
	case FormatRIS:
		return exportRIS(papers), nil
	case FormatCSV:
		return exportCSV(papers)
	case FormatMarkdown:
		return exportMarkdown(papers), nil
	}
	return "", fmt.Errorf("unsupported export format %q", format)
}

var citeKeyCleanRegex = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// citeKey derives a stable BibTeX key from the first author's surname
// and the year, with the paper id as a uniqueness suffix.
func citeKey(p models.Paper) string {
	name := "anon"
	if p.Authors != "" {
		first := strings.Split(p.Authors, ",")[0]
		fields := strings.Fields(first)
		if len(fields) > 0 {
			name = strings.ToLower(citeKeyCleanRegex.ReplaceAllString(fields[len(fields)-1], ""))
		}
	}
	year := "nd"
	if p.Year != nil {
		year = fmt.Sprintf("%d", *p.Year)
	}
	return fmt.Sprintf("%s%s_%d", name, year, p.ID)
}

func bibtexEscape(s string) string {
	return strings.NewReplacer("{", "\\{", "}", "\\}", "&", "\\&", "%", "\\%").Replace(s)
}

func exportBibTeX(papers []models.Paper) string {
	var b strings.Builder
	for _, p := range papers {
		b.WriteString(fmt.Sprintf("@article{%s,\n", citeKey(p)))
		b.WriteString(fmt.Sprintf("  title = {%s},\n", bibtexEscape(p.Title)))
		if p.Authors != "" {
			// BibTeX wants " and "-separated authors.
			authors := strings.Join(splitAuthors(p.Authors), " and ")
			b.WriteString(fmt.Sprintf("  author = {%s},\n", bibtexEscape(authors)))
		}
		if p.Year != nil {
			b.WriteString(fmt.Sprintf("  year = {%d},\n", *p.Year))
		}
		if p.Journal != "" {
			b.WriteString(fmt.Sprintf("  journal = {%s},\n", bibtexEscape(p.Journal)))
		}
		if p.DOI != "" {
			b.WriteString(fmt.Sprintf("  doi = {%s},\n", p.DOI))
		}
		if p.PDFURL != "" {
			b.WriteString(fmt.Sprintf("  url = {%s},\n", p.PDFURL))
		}
		if p.Abstract != "" {
			b.WriteString(fmt.Sprintf("  abstract = {%s},\n", bibtexEscape(p.Abstract)))
		}
		b.WriteString("}\n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func exportRIS(papers []models.Paper) string {
	var b strings.Builder
	for _, p := range papers {
		b.WriteString("TY  - JOUR\n")
		b.WriteString("TI  - " + p.Title + "\n")
		for _, a := range splitAuthors(p.Authors) {
			b.WriteString("AU  - " + a + "\n")
		}
		if p.Year != nil {
			b.WriteString(fmt.Sprintf("PY  - %d\n", *p.Year))
		}
		if p.Journal != "" {
			b.WriteString("JO  - " + p.Journal + "\n")
		}
		if p.DOI != "" {
			b.WriteString("DO  - " + p.DOI + "\n")
		}
		if p.PDFURL != "" {
			b.WriteString("UR  - " + p.PDFURL + "\n")
		}
		if p.Abstract != "" {
			b.WriteString("AB  - " + p.Abstract + "\n")
		}
		b.WriteString("ER  - \n\n")
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func exportCSV(papers []models.Paper) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"title", "authors", "year", "journal", "doi", "source_type", "source_id", "citation_count", "pdf_url"}); err != nil {
		return "", err
	}
	for _, p := range papers {
		year := ""
		if p.Year != nil {
			year = fmt.Sprintf("%d", *p.Year)
		}
		row := []string{
			p.Title, p.Authors, year, p.Journal, p.DOI,
			p.SourceType, p.SourceIdentifier(),
			fmt.Sprintf("%d", p.CitationCount), p.PDFURL,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func exportMarkdown(papers []models.Paper) string {
	var b strings.Builder
	b.WriteString("# Library Export\n\n")
	for _, p := range papers {
		authors := p.Authors
		if authors == "" {
			authors = "Unknown Authors"
		}
		year := "n.d."
		if p.Year != nil {
			year = fmt.Sprintf("%d", *p.Year)
		}
		b.WriteString(fmt.Sprintf("- %s (%s). **%s**.", authors, year, p.Title))
		if p.Journal != "" {
			b.WriteString(" " + p.Journal + ".")
		}
		if p.DOI != "" {
			b.WriteString(fmt.Sprintf(" [doi:%s](https://doi.org/%s)", p.DOI, p.DOI))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// splitAuthors breaks the stored comma-joined author string back into
// individual names.
func splitAuthors(authors string) []string {
	var out []string
	for _, a := range strings.Split(authors, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
