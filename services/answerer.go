package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"paperdesk/llm"
	"paperdesk/models"
)

// Source is one evidence snippet backing an answer.
type Source struct {
	Label string `json:"label"` // "Abstract" or "Summary"
	Text  string `json:"text"`
}

// QAResult bundles the model's answer with lexical evidence fished out
// of the paper's stored text.
type QAResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Answerer answers free-form questions about a single paper using only
// the stored abstract and summary as context.
type Answerer struct {
	client llm.Client
	logger *zap.Logger
}

func NewAnswerer(client llm.Client, logger *zap.Logger) *Answerer {
	return &Answerer{client: client, logger: logger}
}

// Answer runs the Q&A call and attaches the top evidence snippets. The
// snippet selection is purely lexical and never fails; only the LLM
// call can error.
func (a *Answerer) Answer(ctx context.Context, question string, paper *models.Paper) (*QAResult, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Title: %s\n\n", paper.Title)
	fmt.Fprintf(&b, "Authors: %s\n\n", paper.Authors)
	if paper.Abstract != "" {
		fmt.Fprintf(&b, "Abstract: %s\n\n", paper.Abstract)
	}
	if paper.Summary != "" {
		fmt.Fprintf(&b, "Summary:\n%s\n\n", paper.Summary)
	}
	fmt.Fprintf(&b, "Question: %s", question)

	answer, err := a.client.Complete(ctx, llm.Request{
		System: "You answer questions about a research paper using only the provided abstract and summary. " +
			"If the provided text does not contain the answer, say so instead of guessing.",
		User:        b.String(),
		Temperature: 0.2,
		MaxTokens:   400,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnswerFailed, err)
	}

	return &QAResult{
		Answer:  strings.TrimSpace(answer),
		Sources: selectSnippets(question, paper),
	}, nil
}

const (
	maxSnippets    = 3
	snippetMaxLen  = 220
	minLengthNorm  = 8.0
	minTokenLength = 3
)

var wordRegex = regexp.MustCompile(`[a-z0-9-]+`)

// tokenize lowercases the text and keeps alphanumeric runs of at least
// three characters.
func tokenize(text string) []string {
	all := wordRegex.FindAllString(strings.ToLower(text), -1)
	tokens := all[:0]
	for _, t := range all {
		if len(t) >= minTokenLength {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

type candidate struct {
	label string
	text  string
	score float64
}

// selectSnippets scores every candidate passage against the question
// tokens and returns the top three, deduplicated.
func selectSnippets(question string, paper *models.Paper) []Source {
	qTokens := tokenize(question)
	if len(qTokens) == 0 {
		return nil
	}
	qSet := make(map[string]struct{}, len(qTokens))
	for _, t := range qTokens {
		qSet[t] = struct{}{}
	}

	var cands []candidate
	if paper.Abstract != "" {
		cands = append(cands, candidate{label: "Abstract", text: paper.Abstract})
	}
	for _, passage := range splitPassages(paper.Summary) {
		cands = append(cands, candidate{label: "Summary", text: passage})
	}

	scored := cands[:0]
	for _, c := range cands {
		tokens := tokenize(c.text)
		if len(tokens) == 0 {
			continue
		}
		overlap := 0
		for _, t := range tokens {
			if _, ok := qSet[t]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		// Longer passages match more words by accident; dampen by the
		// square root of their length, floored so tiny passages do not
		// dominate.
		c.score = float64(overlap) / math.Max(minLengthNorm, math.Sqrt(float64(len(tokens))))
		scored = append(scored, c)
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })

	seen := make(map[string]struct{})
	var out []Source
	for _, c := range scored {
		key := strings.Join(strings.Fields(strings.ToLower(c.text)), " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, Source{Label: c.label, Text: truncateSnippet(c.text)})
		if len(out) == maxSnippets {
			break
		}
	}
	return out
}

// splitPassages breaks the summary on blank lines, then splits long
// paragraphs into sentences.
func splitPassages(summary string) []string {
	var out []string
	for _, para := range strings.Split(summary, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		out = append(out, para)
		out = append(out, splitSentences(para)...)
	}
	return out
}

var sentenceEndRegex = regexp.MustCompile(`([.!?])\s+`)

func splitSentences(text string) []string {
	parts := sentenceEndRegex.Split(text, -1)
	ends := sentenceEndRegex.FindAllStringSubmatch(text, -1)
	var out []string
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if i < len(ends) {
			p += ends[i][1]
		}
		out = append(out, p)
	}
	if len(out) <= 1 {
		return nil
	}
	return out
}

func truncateSnippet(text string) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if len(runes) <= snippetMaxLen {
		return text
	}
	return strings.TrimSpace(string(runes[:snippetMaxLen])) + "…"
}
