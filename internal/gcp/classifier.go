package gcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/salespackflow/internal/classify"
	"github.com/Lllllllleong/salespackflow/internal/models"
	"github.com/Lllllllleong/salespackflow/internal/pdfsplit"
	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

const (
	DefaultClassifierModel       = "gemini-2.5-flash"
	DefaultClassifierConcurrency = 4
)

// contentGenerator is the slice of *genai.GenerativeModel the classifier uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// pageVerdict is the JSON object the classifier model returns per page.
type pageVerdict struct {
	DocumentType      string  `json:"documentType"`
	Confidence        float64 `json:"confidence"`
	Text              *string `json:"text"`
	CustomerName      string  `json:"customerName"`
	StartsNewDocument bool    `json:"startsNewDocument"`
}

// VertexClassifier classifies sales pack pages with a Gemini model, one
// request per page.
type VertexClassifier struct {
	model       contentGenerator
	concurrency int
	logger      *slog.Logger
}

// NewVertexClassifier returns a classifier over the client's classifier model.
func NewVertexClassifier(vc *VertexClient, concurrency int, logger *slog.Logger) *VertexClassifier {
	return newVertexClassifier(vc.ClassifierModel, concurrency, logger)
}

func newVertexClassifier(model contentGenerator, concurrency int, logger *slog.Logger) *VertexClassifier {
	if concurrency < 1 {
		concurrency = DefaultClassifierConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &VertexClassifier{model: model, concurrency: concurrency, logger: logger}
}

// Classify splits data into single-page PDFs and classifies them with at most
// c.concurrency requests in flight. Results are assembled in page order.
func (c *VertexClassifier) Classify(ctx context.Context, data []byte, tax taxonomy.Taxonomy) (*models.ClassificationResult, error) {
	pdfCtx, err := pdfsplit.Open(data)
	if err != nil {
		return nil, err
	}
	pageCount := pdfCtx.PageCount
	pages := make([][]byte, pageCount)
	for nr := 1; nr <= pageCount; nr++ {
		r, err := api.ExtractPage(pdfCtx, nr)
		if err != nil {
			return nil, fmt.Errorf("failed to extract page %d: %w", nr, err)
		}
		if pages[nr-1], err = io.ReadAll(r); err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", nr, err)
		}
	}
	c.logger.Info("Classifying pages.", "pageCount", pageCount, "concurrency", c.concurrency)

	prompt := genai.Text(fmt.Sprintf(ClassifierUserPrompt, taxonomyBullets(tax)))
	verdicts := make([]pageVerdict, pageCount)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)
	for i := range pages {
		pageNumber := i + 1
		eg.Go(func() error {
			v, err := c.classifyPage(gctx, pages[pageNumber-1], prompt)
			if err != nil {
				return fmt.Errorf("page %d: %w", pageNumber, err)
			}
			verdicts[pageNumber-1] = v
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		c.logger.Error("Page classification failed", "error", err)
		return nil, fmt.Errorf("%w: %w", classify.ErrClassification, err)
	}

	result := &models.ClassificationResult{Pages: make([]models.PageClassification, pageCount)}
	names := make([]string, pageCount)
	startsNew := make([]bool, pageCount)
	for i, v := range verdicts {
		pc := models.PageClassification{
			PageNumber:   i + 1,
			DocumentType: strings.TrimSpace(v.DocumentType),
			Confidence:   int(math.Round(v.Confidence)),
		}
		if v.Text != nil {
			pc.RawText, pc.HasText = *v.Text, true
		}
		result.Pages[i] = pc
		names[i] = strings.TrimSpace(v.CustomerName)
		startsNew[i] = v.StartsNewDocument
	}
	result.CustomerName = classify.MajorityName(names)
	result.Groups = classify.GroupRuns(result.Pages, startsNew)
	return result, nil
}

func (c *VertexClassifier) classifyPage(ctx context.Context, page []byte, prompt genai.Text) (pageVerdict, error) {
	filePart := genai.Blob{
		MIMEType: "application/pdf",
		Data:     page,
	}
	resp, err := c.model.GenerateContent(ctx, filePart, prompt)
	if err != nil {
		return pageVerdict{}, fmt.Errorf("failed to generate classification from gemini: %w", err)
	}
	jsonString := extractJSONContent(resp)
	if jsonString == "" {
		return pageVerdict{}, fmt.Errorf("gemini returned an empty response instead of JSON")
	}
	var v pageVerdict
	if err := json.Unmarshal([]byte(jsonString), &v); err != nil {
		return pageVerdict{}, fmt.Errorf("failed to parse JSON from model: %w", err)
	}
	if strings.TrimSpace(v.DocumentType) == "" {
		return pageVerdict{}, fmt.Errorf("model returned no documentType")
	}
	return v, nil
}

// extractJSONContent gets the raw text content from the model response.
func extractJSONContent(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return ""
	}
	// The model is configured to return JSON, so we expect a single text part.
	if txt, ok := resp.Candidates[0].Content.Parts[0].(genai.Text); ok {
		cleanJSON := strings.TrimSpace(string(txt))
		cleanJSON = strings.TrimPrefix(cleanJSON, "```json")
		cleanJSON = strings.TrimSuffix(cleanJSON, "```")
		return strings.TrimSpace(cleanJSON)
	}
	return ""
}

func taxonomyBullets(tax taxonomy.Taxonomy) string {
	var b strings.Builder
	for _, dt := range tax.Types {
		fmt.Fprintf(&b, "    - %q (%s)\n", dt.Value, dt.Label)
	}
	return strings.TrimRight(b.String(), "\n")
}
