package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperfocal/veridoc/internal/models"
)

// GeminiClient generates answers through the Gemini generateContent REST API.
type GeminiClient struct {
	baseURL         string
	model           string
	apiKey          string
	maxOutputTokens int
	client          *http.Client
}

// NewGeminiClient creates a client for the given API endpoint. timeout bounds
// every request; a hung upstream call becomes an ErrUpstream failure instead
// of blocking the caller indefinitely.
func NewGeminiClient(baseURL, model, apiKey string, timeout time.Duration, maxOutputTokens int) *GeminiClient {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if model == "" {
		model = "models/gemini-2.5-flash"
	}
	// The REST endpoint is /v1beta/models/<model>:generateContent; accept a
	// bare model name and qualify it.
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxOutputTokens <= 0 {
		maxOutputTokens = 512
	}
	return &GeminiClient{
		baseURL:         strings.TrimSuffix(baseURL, "/"),
		model:           model,
		apiKey:          apiKey,
		maxOutputTokens: maxOutputTokens,
		client:          &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate asks the model to answer question strictly from chunks, at
// temperature zero with bounded output. Any transport, status, parse, or
// empty-output failure is returned wrapped in ErrUpstream.
func (g *GeminiClient) Generate(ctx context.Context, chunks []models.ContextChunk, question string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(chunks, question)}},
		}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0,
			MaxOutputTokens: g.maxOutputTokens,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var out geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: response contains no candidates", ErrUpstream)
	}
	answer := strings.TrimSpace(out.Candidates[0].Content.Parts[0].Text)
	if answer == "" {
		return "", fmt.Errorf("%w: empty answer text", ErrUpstream)
	}
	return answer, nil
}

// buildPrompt combines the strict context-only instruction, the cited context,
// and the user question into one prompt.
func buildPrompt(chunks []models.ContextChunk, question string) string {
	var b strings.Builder
	b.WriteString("You are a helpful, professional assistant.\n\n")
	b.WriteString("STRICT RULES:\n")
	b.WriteString("- Use ONLY the information provided in the context below.\n")
	b.WriteString("- Do NOT guess, assume, or use outside knowledge.\n")
	b.WriteString("- If the answer is not explicitly stated, politely say it is not available.\n")
	b.WriteString("- Keep the tone natural and conversational.\n")
	b.WriteString("- Cite relevant source IDs (e.g., [Source 1]) when answering.\n\n")
	b.WriteString("Context:\n")
	for _, chunk := range chunks {
		fmt.Fprintf(&b, "\n[%s]\n%s\n", chunk.ID, strings.TrimSpace(chunk.Text))
	}
	b.WriteString("\nUser question:\n")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:\n")
	return b.String()
}
