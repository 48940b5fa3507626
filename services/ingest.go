package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paperdesk/config"
	"paperdesk/models"
	"paperdesk/providers"
	"paperdesk/providers/unpaywall"
	"paperdesk/storage"
)

var papersIngested = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "papers_ingested_total",
		Help: "Total number of papers ingested by source.",
	},
	[]string{"source"},
)

func init() {
	prometheus.MustRegister(papersIngested)
}

// IngestService orchestrates the full ingest path: identifier
// normalization, metadata fetch, open-access PDF lookup, summarization
// and the per-user upsert.
type IngestService struct {
	Config     *config.Config
	DB         *gorm.DB
	S3Client   *s3.Client
	Logger     *zap.Logger
	Fetchers   map[string]providers.Fetcher
	Unpaywall  *unpaywall.Fetcher
	Summarizer *Summarizer
	Extractor  *PDFExtractor
}

// NewIngestService wires the ingest pipeline together. Fetchers are
// keyed by source type.
func NewIngestService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger, fetchers map[string]providers.Fetcher, summarizer *Summarizer, extractor *PDFExtractor) *IngestService {
	return &IngestService{
		Config:     cfg,
		DB:         db,
		S3Client:   s3Client,
		Logger:     logger,
		Fetchers:   fetchers,
		Unpaywall:  unpaywall.NewFetcher(cfg, logger),
		Summarizer: summarizer,
		Extractor:  extractor,
	}
}

// NormalizeIdentifier dispatches the raw user input to the extractor
// for the named source. Unknown sources are invalid input, not a
// server error.
func NormalizeIdentifier(source, raw string) (string, error) {
	switch source {
	case models.SourceArxiv:
		return ExtractArxivID(raw)
	case models.SourceCrossref:
		return ExtractDOI(raw)
	case models.SourcePubMed:
		return ExtractPMID(raw)
	default:
		return "", ErrInvalidIdentifier
	}
}

// IngestByIdentifier resolves the identifier, fetches the metadata and
// stores the paper in the user's library. A summarization failure does
// not fail the ingest; the paper is saved without a summary.
func (s *IngestService) IngestByIdentifier(ctx context.Context, userID uint, source, raw, style string) (*models.Paper, error) {
	id, err := NormalizeIdentifier(source, raw)
	if err != nil {
		return nil, err
	}

	fetcher, ok := s.Fetchers[source]
	if !ok {
		return nil, ErrInvalidIdentifier
	}

	log := s.Logger.With(zap.String("source", source), zap.String("id", id), zap.Uint("user_id", userID))

	paper, err := fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	paper.UserID = userID

	// Open-access fallback when the provider did not carry a PDF link.
	if paper.PDFURL == "" && paper.DOI != "" {
		link, uerr := s.Unpaywall.GetPDFLink(ctx, paper.DOI)
		if uerr != nil {
			log.Warn("Open-access PDF lookup failed", zap.Error(uerr))
		} else if link != "" {
			paper.PDFURL = link
		}
	}

	summarized := s.summarizeInto(ctx, paper, style, log)

	if err := s.upsert(paper, summarized); err != nil {
		log.Error("Failed to store paper", zap.Error(err))
		return nil, err
	}
	papersIngested.WithLabelValues(source).Inc()
	log.Info("Paper ingested", zap.String("title", paper.Title))
	return paper, nil
}

// IngestUpload extracts metadata from an uploaded PDF, archives the
// file in object storage and stores the paper. Upload failure to S3 is
// logged but does not lose the paper.
func (s *IngestService) IngestUpload(ctx context.Context, userID uint, filename string, data []byte, style string) (*models.Paper, error) {
	log := s.Logger.With(zap.String("filename", filename), zap.Uint("user_id", userID))

	paper, usedFallback, err := s.Extractor.Extract(ctx, data)
	if err != nil {
		return nil, err
	}
	if usedFallback {
		log.Info("Metadata extraction fell back to heuristics", zap.String("title", paper.Title))
	}
	paper.UserID = userID

	if s.S3Client != nil {
		key := fmt.Sprintf("uploads/%s.pdf", uuid.NewString())
		link, uerr := storage.UploadFile(ctx, s.S3Client, s.Config.S3Bucket, key, data, s.Config)
		if uerr != nil {
			log.Error("Object storage upload failed", zap.Error(uerr))
		} else {
			paper.S3Key = key
			paper.S3Link = link
		}
	}

	s.summarizeInto(ctx, paper, style, log)

	if err := s.DB.Create(paper).Error; err != nil {
		log.Error("Failed to store paper", zap.Error(err))
		return nil, err
	}
	papersIngested.WithLabelValues(models.SourcePDF).Inc()
	log.Info("Uploaded paper ingested", zap.String("title", paper.Title))
	return paper, nil
}

// SummarizePaper regenerates the summary in the given style and saves
// it. Unlike at ingest time, a failure here is surfaced to the caller.
func (s *IngestService) SummarizePaper(ctx context.Context, paper *models.Paper, style string) error {
	summary, err := s.Summarizer.Summarize(ctx, paper, style)
	if err != nil {
		return err
	}
	paper.Summary = summary
	paper.SummaryStyle = s.Summarizer.ResolveStyle(style).Name
	return s.DB.Model(paper).Updates(map[string]any{
		"summary":       paper.Summary,
		"summary_style": paper.SummaryStyle,
	}).Error
}

func (s *IngestService) summarizeInto(ctx context.Context, paper *models.Paper, style string, log *zap.Logger) bool {
	summary, err := s.Summarizer.Summarize(ctx, paper, style)
	if err != nil {
		log.Warn("Summarization failed, storing paper without summary", zap.Error(err))
		return false
	}
	paper.Summary = summary
	paper.SummaryStyle = s.Summarizer.ResolveStyle(style).Name
	return true
}

// upsertColumns lists the columns a re-ingest overwrites. The summary
// columns are only included when a fresh summary exists, so a failed
// summarization never erases a stored one.
func upsertColumns(withSummary bool) []string {
	columns := []string{
		"doi", "title", "authors", "abstract", "pdf_url",
		"year", "journal", "citation_count", "updated_at",
	}
	if withSummary {
		columns = append(columns, "summary", "summary_style")
	}
	return columns
}

// upsert writes the paper keyed on (user, source type, source id) so a
// re-ingest refreshes the stored metadata instead of duplicating it.
func (s *IngestService) upsert(paper *models.Paper, withSummary bool) error {
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "source_type"}, {Name: "source_id"}},
		DoUpdates: clause.AssignmentColumns(upsertColumns(withSummary)),
	}).Create(paper).Error
	if err != nil {
		return err
	}
	// OnConflict updates do not backfill the struct's primary key; load
	// the stored row so callers see the persisted state.
	var stored models.Paper
	if ferr := s.DB.Where("user_id = ? AND source_type = ? AND source_id = ?",
		paper.UserID, paper.SourceType, paper.SourceIdentifier()).First(&stored).Error; ferr == nil {
		*paper = stored
	} else if !errors.Is(ferr, gorm.ErrRecordNotFound) {
		return ferr
	}
	return nil
}
