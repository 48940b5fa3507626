package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paperdesk/llm"
	"paperdesk/models"
)

// fakeLLM plays back canned responses and records every request.
type fakeLLM struct {
	responses []string
	errs      []error
	requests  []llm.Request
}

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.requests = append(f.requests, req)
	i := len(f.requests) - 1
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	var resp string
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	return resp, err
}

func testPaper() *models.Paper {
	return &models.Paper{
		Title:    "Attention Is All You Need",
		Abstract: "We propose the Transformer, a model architecture based solely on attention mechanisms.",
	}
}

func TestSummarizeNormalizesKeyTermsHeading(t *testing.T) {
	variants := []string{
		"Key Terms:",
		"**Key Terms**:",
		"### KEY TERMS",
		"key terms:",
	}
	for _, variant := range variants {
		t.Run(variant, func(t *testing.T) {
			fake := &fakeLLM{responses: []string{
				"**The Problem:** Recurrence is slow.\n\n" + variant + "\n• **Attention**: weighting mechanism",
			}}
			s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

			out, err := s.Summarize(context.Background(), testPaper(), "simple")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(out, KeyTermsHeading) {
				t.Errorf("heading not normalized: %q", out)
			}
			if strings.Count(out, KeyTermsHeading) != 1 {
				t.Errorf("expected exactly one canonical heading: %q", out)
			}
			if len(fake.requests) != 1 {
				t.Errorf("heading present, no repair call expected, got %d requests", len(fake.requests))
			}
		})
	}
}

func TestSummarizeInlineKeyTermsHeading(t *testing.T) {
	fake := &fakeLLM{responses: []string{
		"**The Problem:** Recurrence is slow.\n\n**Key Terms:** • **Attention**: weighting mechanism • **Transformer**: the architecture",
	}}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	out, err := s.Summarize(context.Background(), testPaper(), "simple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.requests) != 1 {
		t.Errorf("inline heading counts as present, no repair call expected, got %d requests", len(fake.requests))
	}
	if strings.Count(out, KeyTermsHeading) != 1 {
		t.Errorf("expected exactly one canonical heading: %q", out)
	}
	if !strings.Contains(out, KeyTermsHeading+"\n• **Attention**") {
		t.Errorf("inline bullets must move below the heading: %q", out)
	}
}

func TestSummarizeRepairsMissingKeyTerms(t *testing.T) {
	fake := &fakeLLM{responses: []string{
		"**The Problem:** Recurrence is slow.\n\n**The Method:** Self-attention.\n\n**The Conclusion:** It works.",
		"• **Attention**: a weighting mechanism\n• **Transformer**: the proposed architecture",
	}}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	out, err := s.Summarize(context.Background(), testPaper(), "simple")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.requests) != 2 {
		t.Fatalf("expected a repair call, got %d requests", len(fake.requests))
	}

	repair := fake.requests[1]
	if repair.Temperature != 0.2 {
		t.Errorf("repair temperature = %v, want 0.2", repair.Temperature)
	}
	if repair.MaxTokens != 300 {
		t.Errorf("repair max tokens = %d, want 300", repair.MaxTokens)
	}
	if !strings.Contains(out, KeyTermsHeading) {
		t.Errorf("repaired summary missing canonical heading: %q", out)
	}
	if !strings.Contains(out, "**Transformer**") {
		t.Errorf("repaired summary missing appended terms: %q", out)
	}
}

func TestSummarizeRepairFailureIsNonFatal(t *testing.T) {
	fake := &fakeLLM{
		responses: []string{"**The Problem:** No key terms here."},
		errs:      []error{nil, errors.New("rate limited")},
	}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	out, err := s.Summarize(context.Background(), testPaper(), "simple")
	if err != nil {
		t.Fatalf("repair failure must not fail the summary: %v", err)
	}
	if !strings.Contains(out, "The Problem") {
		t.Errorf("summary content lost: %q", out)
	}
}

func TestSummarizeTldrSkipsRepair(t *testing.T) {
	fake := &fakeLLM{responses: []string{"The Transformer replaces recurrence with attention and wins at translation."}}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	out, err := s.Summarize(context.Background(), testPaper(), "tldr")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.requests) != 1 {
		t.Errorf("tldr must never issue a repair call, got %d requests", len(fake.requests))
	}
	if strings.Contains(out, KeyTermsHeading) {
		t.Errorf("tldr must not grow a key terms section: %q", out)
	}
	if fake.requests[0].MaxTokens != 200 {
		t.Errorf("tldr max tokens = %d, want 200", fake.requests[0].MaxTokens)
	}
}

func TestSummarizeUnknownStyleFallsBackToSimple(t *testing.T) {
	fake := &fakeLLM{responses: []string{"text\n\n**Key Terms:**\n• **X**: y"}}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	if _, err := s.Summarize(context.Background(), testPaper(), "poetic"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	req := fake.requests[0]
	if req.MaxTokens != 1000 {
		t.Errorf("fallback max tokens = %d, want simple's 1000", req.MaxTokens)
	}
	if req.Temperature != 0.7 {
		t.Errorf("temperature = %v, want 0.7", req.Temperature)
	}
	if !strings.Contains(req.User, "Attention Is All You Need") {
		t.Errorf("prompt missing title: %q", req.User)
	}
}

func TestSummarizePrimaryFailure(t *testing.T) {
	fake := &fakeLLM{errs: []error{errors.New("boom")}}
	s := NewSummarizer(fake, DefaultStyles(), zap.NewNop())

	_, err := s.Summarize(context.Background(), testPaper(), "detailed")
	if !errors.Is(err, ErrSummarizationFailed) {
		t.Fatalf("expected ErrSummarizationFailed, got %v", err)
	}
	if len(fake.requests) != 1 {
		t.Errorf("no repair after a failed primary call, got %d requests", len(fake.requests))
	}
}

func TestSimpleStylePromptRequestsSections(t *testing.T) {
	tmpl := DefaultStyles()["simple"].Template
	for _, section := range []string{"The Problem:", "The Method:", "The Conclusion:", "Key Terms:"} {
		if !strings.Contains(tmpl, section) {
			t.Errorf("simple template does not request section %q", section)
		}
	}
}
