package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"paperdesk/models"
)

func TestTokenize(t *testing.T) {
	got := tokenize("What is the Transformer's self-attention, really? AI 42")
	want := []string{"what", "the", "transformer", "self-attention", "really"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSelectSnippetsRanksOverlap(t *testing.T) {
	paper := &models.Paper{
		Abstract: "We propose the Transformer, based solely on attention mechanisms.",
		Summary: "**The Method:** The model uses multi-head attention instead of recurrence.\n\n" +
			"**The Conclusion:** Translation quality improves while training cost drops.",
	}
	sources := selectSnippets("How does attention replace recurrence?", paper)
	if len(sources) == 0 {
		t.Fatal("expected at least one snippet")
	}
	if len(sources) > 3 {
		t.Fatalf("expected at most 3 snippets, got %d", len(sources))
	}
	found := false
	for _, s := range sources {
		if strings.Contains(strings.ToLower(s.Text), "attention") {
			found = true
		}
		if s.Label != "Abstract" && s.Label != "Summary" {
			t.Errorf("unexpected label %q", s.Label)
		}
	}
	if !found {
		t.Errorf("no snippet mentions the query terms: %+v", sources)
	}
}

func TestSelectSnippetsDeduplicates(t *testing.T) {
	paper := &models.Paper{
		Abstract: "Attention networks for translation.",
		Summary:  "Attention   networks for translation.",
	}
	sources := selectSnippets("attention networks", paper)
	if len(sources) != 1 {
		t.Fatalf("whitespace-variant duplicates must collapse, got %d snippets", len(sources))
	}
}

func TestSelectSnippetsNoOverlap(t *testing.T) {
	paper := &models.Paper{Abstract: "Quantum chromodynamics on the lattice."}
	if got := selectSnippets("birdwatching in patagonia", paper); got != nil {
		t.Errorf("expected no snippets, got %+v", got)
	}
}

func TestTruncateSnippet(t *testing.T) {
	long := strings.Repeat("attention is useful ", 30)
	got := truncateSnippet(long)
	if len([]rune(got)) > snippetMaxLen+1 {
		t.Errorf("snippet too long: %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated snippet should end with an ellipsis: %q", got)
	}
	short := "short passage"
	if truncateSnippet(short) != short {
		t.Errorf("short passages must pass through unchanged")
	}
}

func TestAnswer(t *testing.T) {
	fake := &fakeLLM{responses: []string{"The model replaces recurrence with self-attention."}}
	a := NewAnswerer(fake, zap.NewNop())

	paper := &models.Paper{
		Title:    "Attention Is All You Need",
		Authors:  "Ashish Vaswani, Noam Shazeer",
		Abstract: "We propose the Transformer, based solely on attention mechanisms.",
		Summary:  "**The Method:** Multi-head attention replaces recurrence.",
	}
	result, err := a.Answer(context.Background(), "What replaces recurrence?", paper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Answer == "" {
		t.Error("empty answer")
	}
	if len(result.Sources) == 0 {
		t.Error("expected evidence snippets")
	}

	req := fake.requests[0]
	if req.Temperature != 0.2 || req.MaxTokens != 400 {
		t.Errorf("Q&A call parameters = (%v, %d), want (0.2, 400)", req.Temperature, req.MaxTokens)
	}
	if !strings.Contains(req.User, paper.Abstract) {
		t.Error("prompt must carry the abstract")
	}
	if !strings.Contains(req.User, "Authors: Ashish Vaswani, Noam Shazeer") {
		t.Error("prompt must carry the author list")
	}
}

func TestAnswerNoAuthors(t *testing.T) {
	fake := &fakeLLM{responses: []string{"Unknown."}}
	a := NewAnswerer(fake, zap.NewNop())

	_, err := a.Answer(context.Background(), "Who wrote this?", &models.Paper{Title: "T"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(fake.requests[0].User, "Authors: \n") {
		t.Error("authors line must be present even when empty")
	}
}

func TestAnswerLLMFailure(t *testing.T) {
	fake := &fakeLLM{errs: []error{errors.New("timeout")}}
	a := NewAnswerer(fake, zap.NewNop())

	_, err := a.Answer(context.Background(), "anything", &models.Paper{Title: "T"})
	if !errors.Is(err, ErrAnswerFailed) {
		t.Fatalf("expected ErrAnswerFailed, got %v", err)
	}
}
