// Package gemini calls Google Gemini to describe meme templates and their
// caption regions with structured JSON output.
package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	defaultModel       = "gemini-2.5-pro"
	defaultTemperature = 0.4
)

// RegionDescription is the service's description of one caption region,
// addressed by its 0-based index.
type RegionDescription struct {
	Index       int    `json:"index"`
	Description string `json:"description"`
}

// Analysis is the structured result of one template analysis.
type Analysis struct {
	ImageDescription string              `json:"image_description"`
	TextDescriptions []RegionDescription `json:"text_descriptions"`
}

// Analyzer is a content-understanding provider backed by Gemini.
type Analyzer struct {
	Model       string
	Temperature float32
}

// New returns an analyzer using the default model.
func New() *Analyzer {
	return &Analyzer{
		Model:       defaultModel,
		Temperature: defaultTemperature,
	}
}

const analysisPrompt = `You are an expert meme analyst. Describe the provided meme image in detail.

The image already contains red rectangular boxes drawn on top of it.
Each box is labeled with a white numeric index (e.g., 0, 1, 2).

For the image:
- Explain what is happening, who or what is depicted, and any pop culture reference very briefly.
- Describe the characters and how they're commonly referred to.
- Explain the situation and how this meme is typically used culturally.
- Write the description as natural, expressive text (embedding-ready).
- Share only what is relevant to the cultural and meme usage of the image.
- Keep it concise (3-4 sentences)

For each labeled text region:
- Read the visible index number inside the red box and use it as "index".
- Describe what kind of text typically goes there and why; mention spatial/contextual cues if helpful.
- Explain the text's relevance to the meme
- Ensure you return exactly one entry for each expected index provided.
- Output all results in a single structured JSON following the schema.`

var analysisSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"image_description": {Type: genai.TypeString},
		"text_descriptions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"index":       {Type: genai.TypeInteger},
					"description": {Type: genai.TypeString},
				},
				Required: []string{"index", "description"},
			},
		},
	},
	Required: []string{"image_description", "text_descriptions"},
}

func apiKey() (string, error) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		return key, nil
	}
	if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("GEMINI_API_KEY environment variable not set")
}

// Analyze runs one structured analysis call for a template image. The image
// dimensions and expected region indices are passed alongside the image so
// the model can be held to exactly one entry per region.
func (a *Analyzer) Analyze(ctx context.Context, imageData []byte, mimeType string, width, height int, expectedIndices []int) (*Analysis, error) {
	key, err := apiKey()
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(a.Model)
	model.SetTemperature(a.Temperature)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = analysisSchema

	requestContext, err := json.Marshal(map[string]any{
		"image_size": map[string]int{
			"width":  width,
			"height": height,
		},
		"expected_indices": expectedIndices,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request context: %w", err)
	}

	resp, err := model.GenerateContent(ctx,
		genai.Text(analysisPrompt),
		genai.Blob{MIMEType: mimeType, Data: imageData},
		genai.Text(requestContext),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates returned from Gemini")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return nil, fmt.Errorf("empty content returned from Gemini")
	}

	txt, ok := candidate.Content.Parts[0].(genai.Text)
	if !ok {
		return nil, fmt.Errorf("unexpected response format from Gemini")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(txt), &analysis); err != nil {
		return nil, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}
	return &analysis, nil
}
