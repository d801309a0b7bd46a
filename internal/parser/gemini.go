package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider is the fast primary adapter. It talks to the Gemini
// generateContent endpoint directly over HTTP.
type GeminiProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// GeminiConfig holds the Gemini adapter configuration.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewGemini creates the fast LLM adapter. An empty API key makes it
// permanently unavailable rather than failing at parse time.
func NewGemini(cfg GeminiConfig) *GeminiProvider {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash-lite"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = geminiAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &GeminiProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (g *GeminiProvider) Name() string { return "gemini" }

func (g *GeminiProvider) Available() bool { return g.apiKey != "" }

// Parse sends the extraction prompt to Gemini and decodes the strict-JSON
// reply. All errors are folded into the envelope with metadata preserved.
func (g *GeminiProvider) Parse(ctx context.Context, text string, pctx *ParseContext) *Response {
	meta := Metadata{Provider: g.Name(), Model: g.model}

	payload := geminiRequest{
		Contents: []geminiContent{
			{
				Role:  "user",
				Parts: []geminiPart{{Text: buildExtractionPrompt(text, pctx)}},
			},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.2,
			TopP:            0.8,
			MaxOutputTokens: 768,
		},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return failureResponse(meta, fmt.Errorf("marshal payload: %w", err))
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return failureResponse(meta, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	meta.Latency = time.Since(start)
	if err != nil {
		return failureResponse(meta, fmt.Errorf("gemini http: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return failureResponse(meta, fmt.Errorf("read body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return failureResponse(meta, errQuotaExceeded)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return failureResponse(meta, errUnauthorised)
	case resp.StatusCode != http.StatusOK:
		if strings.Contains(string(body), "RESOURCE_EXHAUSTED") {
			return failureResponse(meta, errQuotaExceeded)
		}
		return failureResponse(meta, fmt.Errorf("gemini request failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 200)))
	}

	var decoded geminiResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return failureResponse(meta, fmt.Errorf("decode gemini response: %w", err))
	}
	meta.Tokens = decoded.UsageMetadata.TotalTokenCount

	raw := decoded.candidateText()
	if raw == "" {
		return failureResponse(meta, fmt.Errorf("no candidate text found"))
	}

	result, err := decodeParsed(raw)
	if err != nil {
		return failureResponse(meta, err)
	}
	return &Response{Success: true, Result: result, Meta: meta}
}

type geminiRequest struct {
	Contents         []geminiContent  `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	TopP            float64 `json:"topP,omitempty"`
	MaxOutputTokens int32   `json:"maxOutputTokens,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Role  string       `json:"role"`
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		TotalTokenCount int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func (r geminiResponse) candidateText() string {
	for _, cand := range r.Candidates {
		for _, part := range cand.Content.Parts {
			if part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
