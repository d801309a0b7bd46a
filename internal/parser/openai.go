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

const openAIAPIBase = "https://api.openai.com/v1"

// OpenAIProvider is the accurate primary adapter, second in the try order.
// It uses the chat-completions endpoint with a JSON response format.
type OpenAIProvider struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// OpenAIConfig holds the OpenAI adapter configuration.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// NewOpenAI creates the accurate LLM adapter. An empty API key makes it
// permanently unavailable.
func NewOpenAI(cfg OpenAIConfig) *OpenAIProvider {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIAPIBase
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		model:      cfg.Model,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (o *OpenAIProvider) Name() string { return "openai" }

func (o *OpenAIProvider) Available() bool { return o.apiKey != "" }

// Parse sends the extraction prompt via chat completions and decodes the
// strict-JSON reply, folding errors into the envelope.
func (o *OpenAIProvider) Parse(ctx context.Context, text string, pctx *ParseContext) *Response {
	meta := Metadata{Provider: o.Name(), Model: o.model}

	payload := chatCompletionRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: "Bạn là bộ trích xuất giao dịch. Chỉ trả lời JSON hợp lệ."},
			{Role: "user", Content: buildExtractionPrompt(text, pctx)},
		},
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return failureResponse(meta, fmt.Errorf("marshal payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return failureResponse(meta, fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.httpClient.Do(req)
	meta.Latency = time.Since(start)
	if err != nil {
		return failureResponse(meta, fmt.Errorf("openai http: %w", err))
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
		if strings.Contains(string(body), "insufficient_quota") {
			return failureResponse(meta, errQuotaExceeded)
		}
		return failureResponse(meta, fmt.Errorf("openai request failed: status=%d body=%s", resp.StatusCode, truncate(string(body), 200)))
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return failureResponse(meta, fmt.Errorf("decode openai response: %w", err))
	}
	meta.Tokens = decoded.Usage.TotalTokens

	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return failureResponse(meta, fmt.Errorf("no completion choices returned"))
	}

	result, err := decodeParsed(decoded.Choices[0].Message.Content)
	if err != nil {
		return failureResponse(meta, err)
	}
	return &Response{Success: true, Result: result, Meta: meta}
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}
