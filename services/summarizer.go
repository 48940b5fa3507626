package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"paperdesk/llm"
	"paperdesk/models"
)

var summariesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "summaries_generated_total",
		Help: "Total number of summaries generated by style.",
	},
	[]string{"style"},
)

func init() {
	prometheus.MustRegister(summariesTotal)
}

// KeyTermsHeading is the canonical section heading downstream renderers
// split the summary on. Whatever the model emits is normalized to this
// exact form.
const KeyTermsHeading = "**Key Terms:**"

// Style configures one summary flavor: prompt, tone and token budget.
type Style struct {
	Name        string
	Description string
	MaxTokens   int
	System      string
	Template    string // rendered with {title} and {abstract}
	NoKeyTerms  bool   // tldr skips the key-terms section entirely
}

const keyTermsInstruction = "End with a section headed exactly \"**Key Terms:**\" listing 3-6 terms as \"• **Term**: Definition\" bullet lines."

// DefaultStyles returns the built-in style table. The map is treated as
// immutable; the summarizer takes it at construction so tests can swap
// in their own.
func DefaultStyles() map[string]Style {
	return map[string]Style{
		"simple": {
			Name:        "simple",
			Description: "Plain-language overview for non-experts",
			MaxTokens:   1000,
			System:      "You are a science communicator. Explain research papers in plain language a curious layperson can follow. Avoid jargon.",
			Template: "Summarize this paper for a general audience.\n\n" +
				"Title: {title}\n\nAbstract: {abstract}\n\n" +
				"Structure the summary as markdown sections headed \"**The Problem:**\", \"**The Method:**\" and \"**The Conclusion:**\". " +
				keyTermsInstruction,
		},
		"detailed": {
			Name:        "detailed",
			Description: "Thorough summary covering methods and limitations",
			MaxTokens:   1500,
			System:      "You are a research assistant preparing literature notes for a graduate student. Be thorough and precise.",
			Template: "Write a detailed summary of this paper.\n\n" +
				"Title: {title}\n\nAbstract: {abstract}\n\n" +
				"Structure the summary as markdown sections headed \"**Background:**\", \"**Methods:**\", \"**Results:**\", \"**Limitations:**\" and \"**Significance:**\". " +
				keyTermsInstruction,
		},
		"technical": {
			Name:        "technical",
			Description: "Technical summary for domain experts",
			MaxTokens:   1200,
			System:      "You are a domain expert writing for peers. Keep the field's terminology; do not simplify.",
			Template: "Summarize this paper for an expert reader.\n\n" +
				"Title: {title}\n\nAbstract: {abstract}\n\n" +
				"Structure the summary as markdown sections headed \"**Problem Setting:**\", \"**Approach:**\", \"**Evaluation:**\" and \"**Contributions:**\". " +
				keyTermsInstruction,
		},
		"tldr": {
			Name:        "tldr",
			Description: "Two to three sentences, no sections",
			MaxTokens:   200,
			System:      "You write one-breath paper summaries. No headings, no lists.",
			Template: "Summarize this paper in at most three sentences.\n\n" +
				"Title: {title}\n\nAbstract: {abstract}",
			NoKeyTerms: true,
		},
	}
}

// keyTermsLineRegex matches the "key terms" heading in any casing and
// markdown decoration, both on a line of its own and as an inline
// "**Key Terms:** ..." label. The inline form requires the colon so
// prose that merely starts with "key terms" is left alone.
var keyTermsLineRegex = regexp.MustCompile(`(?mi)^[ \t#>]*\**[ \t]*key[ \t]*terms[ \t]*(?:\**[ \t]*:?[ \t]*\**[ \t]*:?[ \t]*$|\**[ \t]*:\**[ \t]*)`)

// Summarizer drives the style-templated summarization pipeline: one
// primary call, heading normalization, and a conditional repair call.
type Summarizer struct {
	client llm.Client
	styles map[string]Style
	logger *zap.Logger
}

// NewSummarizer builds a Summarizer over the given style table.
func NewSummarizer(client llm.Client, styles map[string]Style, logger *zap.Logger) *Summarizer {
	return &Summarizer{client: client, styles: styles, logger: logger}
}

// ResolveStyle maps a requested style name onto the table, falling back
// to "simple" for anything unknown.
func (s *Summarizer) ResolveStyle(name string) Style {
	if st, ok := s.styles[name]; ok {
		return st
	}
	return s.styles["simple"]
}

// Summarize produces a summary for the paper in the requested style.
// Any failure of the primary LLM call fails the whole operation; a
// failed repair call is logged and swallowed.
func (s *Summarizer) Summarize(ctx context.Context, paper *models.Paper, styleName string) (string, error) {
	style := s.ResolveStyle(styleName)
	log := s.logger.With(zap.String("style", style.Name), zap.String("title", paper.Title))

	out, err := s.client.Complete(ctx, llm.Request{
		System:      style.System,
		User:        renderTemplate(style.Template, paper),
		Temperature: 0.7,
		MaxTokens:   style.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	summary, found := normalizeKeyTerms(out)

	if !style.NoKeyTerms && !found {
		log.Info("Summary missing key terms section, issuing repair call")
		summary = s.repairKeyTerms(ctx, paper, summary, log)
	}

	summariesTotal.WithLabelValues(style.Name).Inc()
	return strings.TrimSpace(summary), nil
}

// repairKeyTerms asks the model for only the key-terms block and appends
// it. Repair failure leaves the summary without key terms.
func (s *Summarizer) repairKeyTerms(ctx context.Context, paper *models.Paper, summary string, log *zap.Logger) string {
	out, err := s.client.Complete(ctx, llm.Request{
		System: "You extract glossaries from research abstracts.",
		User: "List the 3-6 most important technical terms of this paper as \"• **Term**: Definition\" bullet lines. " +
			"Output ONLY the bullet lines, nothing else.\n\n" +
			renderTemplate("Title: {title}\n\nAbstract: {abstract}", paper),
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		log.Warn("Key terms repair call failed, returning summary without key terms", zap.Error(err))
		return summary
	}

	// The model may restate the heading despite the instruction; strip
	// it so exactly one canonical heading remains.
	block := keyTermsLineRegex.ReplaceAllString(out, "")
	return strings.TrimSpace(summary) + "\n\n" + KeyTermsHeading + "\n" + strings.TrimSpace(block)
}

// normalizeKeyTerms rewrites the first heading variant the model emitted
// ("Key Terms", "### KEY TERMS:", ...) to the canonical form and reports
// whether one was present.
func normalizeKeyTerms(text string) (string, bool) {
	loc := keyTermsLineRegex.FindStringIndex(text)
	if loc == nil {
		return text, false
	}
	rest := text[loc[1]:]
	// An inline heading carries its bullets on the same line; push them
	// onto the next one so the heading stands alone.
	if rest != "" && !strings.HasPrefix(rest, "\n") {
		rest = "\n" + strings.TrimLeft(rest, " \t")
	}
	// Drop any further heading variants so the split point is unique.
	rest = keyTermsLineRegex.ReplaceAllString(rest, "")
	return text[:loc[0]] + KeyTermsHeading + rest, true
}

// renderTemplate substitutes the paper fields into a prompt template.
func renderTemplate(tmpl string, paper *models.Paper) string {
	abstract := paper.Abstract
	if abstract == "" {
		abstract = "(no abstract available)"
	}
	return strings.NewReplacer(
		"{title}", paper.Title,
		"{abstract}", abstract,
	).Replace(tmpl)
}
