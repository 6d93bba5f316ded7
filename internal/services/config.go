package services

import (
	"fmt"

	"github.com/Lllllllleong/salespackflow/internal/blank"
	"github.com/Lllllllleong/salespackflow/internal/gcp"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// Config is the environment shared by the sales-pack functions. Each
// constructor checks the fields it needs.
type Config struct {
	ProjectID           string
	VertexRegion        string
	ClassifierModel     string
	ClassifyConcurrency int
	DocumentsBucket     string
	SessionsCollection  string
	DocumentsCollection string
	WorkflowID          string
	WorkflowLocation    string
	BlankMinText        int
	TaxonomyFile        string
}

func LoadConfig() (Config, error) {
	projectID := gcp.GetEnv("PROJECT_ID", "")
	if projectID == "" {
		return Config{}, fmt.Errorf("PROJECT_ID environment variable must be set")
	}
	config := Config{
		ProjectID:           projectID,
		VertexRegion:        gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		ClassifierModel:     gcp.GetEnv("CLASSIFIER_MODEL", gcp.DefaultClassifierModel),
		ClassifyConcurrency: gcp.GetEnvInt("CLASSIFY_CONCURRENCY", gcp.DefaultClassifierConcurrency),
		DocumentsBucket:     gcp.GetEnv("DOCUMENTS_BUCKET", ""),
		SessionsCollection:  gcp.GetEnv("SESSIONS_COLLECTION", "salesPackSessions"),
		DocumentsCollection: gcp.GetEnv("DOCUMENTS_COLLECTION", "customerDocuments"),
		WorkflowID:          gcp.GetEnv("WORKFLOW_ID", ""),
		WorkflowLocation:    gcp.GetEnv("WORKFLOW_LOCATION", "us-central1"),
		BlankMinText:        gcp.GetEnvInt("BLANK_MIN_TEXT", blank.DefaultMinTextLength),
		TaxonomyFile:        gcp.GetEnv("TAXONOMY_FILE", ""),
	}
	if config.ClassifyConcurrency < 1 {
		return Config{}, fmt.Errorf("CLASSIFY_CONCURRENCY must be at least 1, got %d", config.ClassifyConcurrency)
	}
	if config.BlankMinText < 0 {
		return Config{}, fmt.Errorf("BLANK_MIN_TEXT cannot be negative, got %d", config.BlankMinText)
	}
	return config, nil
}

// Taxonomy loads the configured taxonomy file, or the default set when none
// is configured.
func (c Config) Taxonomy() (taxonomy.Taxonomy, error) {
	if c.TaxonomyFile == "" {
		return taxonomy.Default(), nil
	}
	tax, err := taxonomy.Load(c.TaxonomyFile)
	if err != nil {
		return taxonomy.Taxonomy{}, fmt.Errorf("failed to load taxonomy: %w", err)
	}
	return tax, nil
}
