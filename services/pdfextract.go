package services

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"paperdesk/llm"
	"paperdesk/models"
	"paperdesk/providers"
)

const (
	// minReadableChars is the floor below which an extraction is treated
	// as a scan or an empty file.
	minReadableChars = 200
	// llmExtractWindow bounds how much of the document the labeled
	// extraction prompt sees.
	llmExtractWindow = 28000
	// pseudoAbstractChars is the slice of body text used when no
	// abstract heading can be located.
	pseudoAbstractChars = 1800
)

// PDFExtractor turns an uploaded PDF into paper metadata: text layer
// first, then an LLM labeled extraction, with line heuristics as the
// safety net.
type PDFExtractor struct {
	client llm.Client
	logger *zap.Logger
}

func NewPDFExtractor(client llm.Client, logger *zap.Logger) *PDFExtractor {
	return &PDFExtractor{client: client, logger: logger}
}

// Extract parses the PDF bytes and returns the metadata plus whether
// the heuristic fallback produced any field. Files without a usable
// text layer yield ErrUnreadablePDF before any model call.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (*models.Paper, bool, error) {
	text, err := extractPlainText(data)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnreadablePDF, err)
	}
	text = cleanExtractedText(text)
	if len([]rune(text)) < minReadableChars {
		return nil, false, ErrUnreadablePDF
	}

	paper := &models.Paper{SourceType: models.SourcePDF}

	title, authors, abstract := e.labeledExtraction(ctx, text)

	usedFallback := false
	if title == "" {
		title = heuristicTitle(text)
		usedFallback = true
	}
	if authors == "" {
		authors = heuristicAuthors(text)
		usedFallback = true
	}
	if abstract == "" {
		abstract = heuristicAbstract(text)
		usedFallback = true
	}

	paper.Title = title
	paper.Authors = authors
	paper.Abstract = providers.CleanText(abstract)
	providers.ClampPaper(paper)
	return paper, usedFallback, nil
}

// extractPlainText pulls the text layer out of the PDF, page by page.
func extractPlainText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(content)
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

var hyphenBreakRegex = regexp.MustCompile(`(?m)([\p{L}\p{N}])-(?:\r?\n)([\p{Ll}])`)

var ligatureReplacer = strings.NewReplacer(
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬀ", "ff",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬆ", "st",
)

// cleanExtractedText repairs the usual PDF text-layer damage: ligature
// glyphs, end-of-line hyphenation, non-breaking spaces and runaway
// whitespace. Output is NFC-normalized.
func cleanExtractedText(s string) string {
	s = ligatureReplacer.Replace(s)
	s, _, _ = transform.String(norm.NFC, s)
	s = hyphenBreakRegex.ReplaceAllString(s, "$1$2")

	s = regexp.MustCompile("[\t\f\v ]+").ReplaceAllString(s, " ")
	s = regexp.MustCompile(` {2,}`).ReplaceAllString(s, " ")
	s = regexp.MustCompile(`\n{3,}`).ReplaceAllString(s, "\n\n")

	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i := range lines {
		lines[i] = strings.TrimRightFunc(lines[i], unicode.IsSpace)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

var (
	labelLineRegex = regexp.MustCompile(`(?m)^\s*(TITLE|AUTHORS|ABSTRACT)\s*:\s*`)
	noneRegex      = regexp.MustCompile(`(?i)^(none|n/a|unknown|not found)\.?$`)
)

// labeledExtraction asks the model for TITLE:/AUTHORS:/ABSTRACT: lines
// over the document head. Every failure mode returns empty fields so
// the heuristics take over.
func (e *PDFExtractor) labeledExtraction(ctx context.Context, text string) (title, authors, abstract string) {
	window := text
	if runes := []rune(window); len(runes) > llmExtractWindow {
		window = string(runes[:llmExtractWindow])
	}

	out, err := e.client.Complete(ctx, llm.Request{
		System: "You extract bibliographic metadata from the raw text of research papers.",
		User: "Extract the metadata from this paper text. Respond with exactly three lines:\n" +
			"TITLE: <the paper title>\n" +
			"AUTHORS: <comma-separated author names>\n" +
			"ABSTRACT: <the abstract text on a single line>\n" +
			"Use NONE for any field you cannot find.\n\n" + window,
		Temperature: 0.2,
		MaxTokens:   700,
	})
	if err != nil {
		e.logger.Warn("Metadata extraction call failed, falling back to heuristics", zap.Error(err))
		return "", "", ""
	}
	return parseLabeledOutput(out)
}

// parseLabeledOutput splits the model response on its label markers.
// Label order is not assumed and continuation lines belong to the
// preceding label.
func parseLabeledOutput(out string) (title, authors, abstract string) {
	locs := labelLineRegex.FindAllStringSubmatchIndex(out, -1)
	for i, loc := range locs {
		label := out[loc[2]:loc[3]]
		end := len(out)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		value := strings.TrimSpace(out[loc[1]:end])
		value = strings.Join(strings.Fields(value), " ")
		if noneRegex.MatchString(value) {
			continue
		}
		switch label {
		case "TITLE":
			title = value
		case "AUTHORS":
			authors = value
		case "ABSTRACT":
			abstract = value
		}
	}
	return title, authors, abstract
}

var hasLetterRegex = regexp.MustCompile(`\p{L}`)

// heuristicTitle takes the first line that looks like a title: between
// 10 and 180 characters with at least one letter.
func heuristicTitle(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		n := len([]rune(line))
		if n >= 10 && n <= 180 && hasLetterRegex.MatchString(line) {
			return line
		}
	}
	return "Untitled Document"
}

// abstractHeadingRegex matches "Abstract" both as a bare heading and as
// an inline "Abstract: <text>" label; the submatch carries the inline
// remainder.
var abstractHeadingRegex = regexp.MustCompile(`(?i)^[\s\d.]*abstract\b\s*(?:[.:—-]\s*(.*))?$`)

// heuristicAuthors picks the first line after the title that reads like
// an author list: a comma, an " and ", or a leading capitalized word.
// The abstract heading ends the search.
func heuristicAuthors(text string) string {
	lines := strings.Split(text, "\n")
	titleIdx := -1
	for i, line := range lines {
		line = strings.TrimSpace(line)
		n := len([]rune(line))
		if n >= 10 && n <= 180 && hasLetterRegex.MatchString(line) {
			titleIdx = i
			break
		}
	}
	if titleIdx < 0 {
		return ""
	}

	for _, line := range lines[titleIdx+1:] {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if abstractHeadingRegex.MatchString(line) || strings.HasPrefix(strings.ToLower(line), "abstract") {
			break
		}
		if !hasLetterRegex.MatchString(line) || len([]rune(line)) > 200 {
			continue
		}
		if strings.Contains(line, ",") || strings.Contains(line, " and ") || unicode.IsUpper([]rune(line)[0]) {
			return line
		}
	}
	return ""
}

// abstractEndRegex matches the headings that commonly follow an
// abstract, including numbered section heads like "1 Introduction".
var abstractEndRegex = regexp.MustCompile(`(?i)^[\s]*(?:(?:[0-9IVX]+[.)]?\s+)?introduction\b|keywords?\b|index\s+terms\b|contents\b|[0-9]+[.)]\s+\p{L})`)

// heuristicAbstract collects the text between an "Abstract" heading and
// the next section heading. Text trailing an inline "Abstract:" label
// counts as the first collected line. Without a heading it falls back
// to a pseudo-abstract sliced from the top of the body.
func heuristicAbstract(text string) string {
	lines := strings.Split(text, "\n")
	start := -1
	var collected []string
	for i, line := range lines {
		if m := abstractHeadingRegex.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			start = i + 1
			if rest := strings.TrimSpace(m[1]); rest != "" {
				collected = append(collected, rest)
			}
			break
		}
	}
	if start >= 0 {
		for _, line := range lines[start:] {
			trimmed := strings.TrimSpace(line)
			if abstractEndRegex.MatchString(trimmed) {
				break
			}
			if trimmed != "" {
				collected = append(collected, trimmed)
			} else if len(collected) > 0 {
				break
			}
		}
		if joined := strings.Join(collected, " "); joined != "" {
			return joined
		}
	}

	// Pseudo-abstract: the opening slice of the body, enough to seed
	// summarization even for papers without a marked abstract.
	flat := strings.Join(strings.Fields(text), " ")
	if runes := []rune(flat); len(runes) > pseudoAbstractChars {
		flat = string(runes[:pseudoAbstractChars])
	}
	return flat
}
