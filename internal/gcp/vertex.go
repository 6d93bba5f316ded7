package gcp

import (
	"context"
	"fmt"

	"cloud.google.com/go/vertexai/genai"

	"github.com/Lllllllleong/salespackflow/internal/taxonomy"
)

// --- Classifier Model Prompts ---
const ClassifierSystemPrompt = "You are a document classification tool for a car dealership. You receive one scanned page of a customer's sales pack at a time and must identify which legal or identity document the page belongs to. You must output your response as a single valid JSON object."

// ClassifierUserPrompt takes the bullet list of allowed document types.
const ClassifierUserPrompt = `Classify the provided PDF page.

Follow these rules precisely:
1.  "documentType" must be exactly one of the following values:
%s
    Use "other" when the page matches none of them.
2.  "confidence" is an integer from 0 to 100 expressing how sure you are of "documentType".
3.  "text" is the full text you can read on the page, in reading order. Use an empty string for a page with no text at all (for example a blank filler page).
4.  "customerName" is the full name of the customer if it is printed on the page, otherwise an empty string.
5.  "startsNewDocument" is true when this page is the first page of a document (for example a title, a new form header or the front of a card) and false when it continues the previous page's document.

Return ONLY the JSON object. Do not include any text before or after it.`

// classifierSchema constrains the classifier output, with documentType
// limited to the taxonomy values. "text" is optional so a missing field can be
// told apart from an empty page.
func classifierSchema(tax taxonomy.Taxonomy) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"documentType":      {Type: genai.TypeString, Format: "enum", Enum: tax.Values()},
			"confidence":        {Type: genai.TypeInteger},
			"text":              {Type: genai.TypeString},
			"customerName":      {Type: genai.TypeString},
			"startsNewDocument": {Type: genai.TypeBoolean},
		},
		Required: []string{"documentType", "confidence", "customerName", "startsNewDocument"},
	}
}

// VertexClient holds the pre-configured generative models for the app.
type VertexClient struct {
	ClassifierModel *genai.GenerativeModel
	baseClient      *genai.Client
}

// NewVertexClient creates a new client holding the classifier model. Its
// response schema only admits the document types of tax.
func NewVertexClient(ctx context.Context, projectID, region, modelName string, tax taxonomy.Taxonomy) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultClassifierModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	classifierModel := baseClient.GenerativeModel(modelName)
	classifierModel.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(ClassifierSystemPrompt)},
	}
	classifierModel.GenerationConfig = genai.GenerationConfig{
		// Force JSON output so every page yields one parseable verdict.
		ResponseMIMEType: "application/json",
		ResponseSchema:   classifierSchema(tax),
		Temperature:      genai.Ptr[float32](0.0),
	}
	// Identity documents trip the default filters on personal data.
	classifierModel.SafetySettings = []*genai.SafetySetting{
		{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockNone},
		{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockNone},
	}

	return &VertexClient{
		ClassifierModel: classifierModel,
		baseClient:      baseClient,
	}, nil
}

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
