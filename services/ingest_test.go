package services

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestUpsertColumnsOmitSummaryWithoutOne(t *testing.T) {
	for _, col := range upsertColumns(false) {
		if col == "summary" || col == "summary_style" {
			t.Fatalf("summary columns must not be overwritten without a fresh summary, got %v", upsertColumns(false))
		}
	}

	withSummary := upsertColumns(true)
	found := 0
	for _, col := range withSummary {
		if col == "summary" || col == "summary_style" {
			found++
		}
	}
	if found != 2 {
		t.Errorf("summary columns missing from the with-summary list: %v", withSummary)
	}
}

func TestSummarizeIntoReportsOutcome(t *testing.T) {
	paper := testPaper()
	failing := &IngestService{
		Logger:     zap.NewNop(),
		Summarizer: NewSummarizer(&fakeLLM{errs: []error{errors.New("rate limited")}}, DefaultStyles(), zap.NewNop()),
	}
	if failing.summarizeInto(context.Background(), paper, "simple", zap.NewNop()) {
		t.Error("a failed summarization must report false")
	}
	if paper.Summary != "" {
		t.Errorf("failed summarization must leave the summary empty, got %q", paper.Summary)
	}

	working := &IngestService{
		Logger:     zap.NewNop(),
		Summarizer: NewSummarizer(&fakeLLM{responses: []string{"text\n\n**Key Terms:**\n• **X**: y"}}, DefaultStyles(), zap.NewNop()),
	}
	if !working.summarizeInto(context.Background(), paper, "simple", zap.NewNop()) {
		t.Error("a successful summarization must report true")
	}
	if paper.Summary == "" || paper.SummaryStyle != "simple" {
		t.Errorf("summary not stored on the paper: %q / %q", paper.Summary, paper.SummaryStyle)
	}
}
