package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters read from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Contact email sent to polite-pool metadata APIs (Crossref mailto,
	// PubMed tool registration).
	ContactEmail string `envconfig:"CONTACT_EMAIL" required:"true"`
	UserAgent    string `envconfig:"USER_AGENT" default:"paperdesk/1.0"`

	ArxivBaseURL string `envconfig:"ARXIV_BASE_URL" default:"https://export.arxiv.org/api/query"`

	CrossrefBaseURL string `envconfig:"CROSSREF_BASE_URL" default:"https://api.crossref.org"`

	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`
	PubMedTool    string `envconfig:"PUBMED_TOOL" default:"paperdesk"`

	SemanticScholarBaseURL string `envconfig:"S2_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string `envconfig:"S2_API_KEY"`

	// Unpaywall fallback used to locate an open-access PDF for DOI papers.
	UnpaywallBaseURL string `envconfig:"UNPAYWALL_BASE_URL" default:"https://api.unpaywall.org/v2"`

	LLMBaseURL     string  `envconfig:"LLM_BASE_URL" default:"https://api.openai.com/v1"`
	LLMAPIKey      string  `envconfig:"LLM_API_KEY" required:"true"`
	LLMModel       string  `envconfig:"LLM_MODEL" default:"gpt-4o-mini"`
	LLMRateLimit   float64 `envconfig:"LLM_RATE_LIMIT" default:"3"`
	LLMTimeoutSecs int     `envconfig:"LLM_TIMEOUT_SECS" default:"90"`

	// Session cookie settings
	SessionCookieName string `envconfig:"SESSION_COOKIE_NAME" default:"paperdesk_session"`
	SessionTTLDays    int    `envconfig:"SESSION_TTL_DAYS" default:"30"`
	SecureCookies     bool   `envconfig:"SECURE_COOKIES" default:"false"`

	// Daily maintenance: citation-count refresh, expired session reaping.
	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	S3Key    string `envconfig:"S3_KEY" required:"true"`
	S3Secret string `envconfig:"S3_SECRET" required:"true"`
	S3URL    string `envconfig:"S3_URL" required:"true"`
	S3Region string `envconfig:"S3_REGION" required:"true"`
	S3Bucket string `envconfig:"S3_BUCKET" required:"true"`

	// Maximum accepted size for uploaded PDFs, in megabytes.
	MaxUploadMB int `envconfig:"MAX_UPLOAD_MB" default:"25"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
