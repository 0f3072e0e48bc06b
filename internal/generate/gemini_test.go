package generate

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hyperfocal/veridoc/internal/config"
	"github.com/hyperfocal/veridoc/internal/models"
)

var testChunks = []models.ContextChunk{
	{ID: "Source 1", Text: "The capital of France is Paris."},
	{ID: "Source 2", Text: "Paris has been the capital since 987."},
}

func geminiOK(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := geminiResponse{}
		resp.Candidates = append(resp.Candidates, struct {
			Content geminiContent `json:"content"`
		}{Content: geminiContent{Parts: []geminiPart{{Text: text}}}})
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func TestGeminiClient_Generate(t *testing.T) {
	var gotPath string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		geminiOK("Paris is the capital [Source 1].").ServeHTTP(w, r)
	}))
	defer srv.Close()

	g := NewGeminiClient(srv.URL, "models/test", "key", time.Second, 128)
	answer, err := g.Generate(context.Background(), testChunks, "What is the capital of France?")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(answer, "Paris") {
		t.Errorf("answer: %q", answer)
	}
	if gotPath != "/models/test:generateContent" {
		t.Errorf("path: %q", gotPath)
	}
	if gotReq.GenerationConfig.Temperature != 0 {
		t.Error("temperature must be zero")
	}
	if gotReq.GenerationConfig.MaxOutputTokens != 128 {
		t.Errorf("maxOutputTokens: %d", gotReq.GenerationConfig.MaxOutputTokens)
	}
	prompt := gotReq.Contents[0].Parts[0].Text
	for _, want := range []string{"ONLY the information", "[Source 1]", "The capital of France is Paris.", "What is the capital of France?"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

// The default config carries the model name the way the REST endpoint wants
// it under /models/; a bare name must be qualified the same way so default
// deployments reach the API instead of a 404.
func TestGeminiClient_DefaultConfigModelPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		geminiOK("ok").ServeHTTP(w, r)
	}))
	defer srv.Close()

	cfg := config.Default()
	g := NewGeminiClient(srv.URL, cfg.Generation.Model, "key",
		time.Duration(cfg.Generation.TimeoutSeconds)*time.Second, cfg.Generation.MaxOutputTokens)
	if _, err := g.Generate(context.Background(), testChunks, "q"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("path: %q, want /models/gemini-2.5-flash:generateContent", gotPath)
	}

	gotPath = ""
	bare := NewGeminiClient(srv.URL, "gemini-2.5-flash", "key", time.Second, 128)
	if _, err := bare.Generate(context.Background(), testChunks, "q"); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/models/gemini-2.5-flash:generateContent" {
		t.Errorf("bare model path: %q, want /models/gemini-2.5-flash:generateContent", gotPath)
	}
}

func TestGeminiClient_UpstreamFailures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"non-200", func(w http.ResponseWriter, _ *http.Request) { http.Error(w, "quota", http.StatusTooManyRequests) }},
		{"malformed body", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("{not json")) }},
		{"no candidates", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte(`{"candidates":[]}`)) }},
		{"empty text", geminiOK("   ")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()
			g := NewGeminiClient(srv.URL, "models/test", "key", time.Second, 64)
			_, err := g.Generate(context.Background(), testChunks, "q")
			if !errors.Is(err, ErrUpstream) {
				t.Errorf("got %v, want ErrUpstream", err)
			}
		})
	}
}

func TestGeminiClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	g := NewGeminiClient(srv.URL, "models/test", "key", 50*time.Millisecond, 64)
	_, err := g.Generate(context.Background(), testChunks, "q")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("timeout should be an upstream failure, got %v", err)
	}
}

func TestFallbackAnswer(t *testing.T) {
	answer := FallbackAnswer(testChunks, "What is the capital of France?")
	for _, want := range []string{"Source 1", "Source 2", "The capital of France is Paris.", "What is the capital of France?"} {
		if !strings.Contains(answer, want) {
			t.Errorf("fallback missing %q", want)
		}
	}
	if again := FallbackAnswer(testChunks, "What is the capital of France?"); again != answer {
		t.Error("fallback must be deterministic")
	}
}
