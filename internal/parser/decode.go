package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	errQuotaExceeded = errors.New("provider quota exceeded")
	errUnauthorised  = errors.New("provider unauthorised")
)

// normaliseJSON strips code fences and stray prose a model may wrap around
// its JSON, and balances truncated braces so a best-effort decode can run.
func normaliseJSON(text string) string {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSpace(s)
		if strings.HasPrefix(strings.ToLower(s), "json") {
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = s[idx+1:]
			} else {
				s = ""
			}
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		if start := strings.Index(s, "{"); start >= 0 {
			if end := strings.LastIndex(s, "}"); end >= start {
				s = s[start : end+1]
			}
		}
	}
	if strings.HasSuffix(s, "\"") && !strings.HasSuffix(s, "}") {
		s = s + "\"}"
	}
	openBraces := strings.Count(s, "{")
	closeBraces := strings.Count(s, "}")
	if openBraces > closeBraces {
		s = s + strings.Repeat("}", openBraces-closeBraces)
	}
	return strings.TrimSpace(s)
}

// decodeParsed turns raw model output into a validated ParsedTransaction.
func decodeParsed(raw string) (*ParsedTransaction, error) {
	clean := normaliseJSON(raw)

	var result ParsedTransaction
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		snippet := raw
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return nil, fmt.Errorf("decode model json: %w (snippet=%q)", err, snippet)
	}

	if !ValidIntent(string(result.Intent)) {
		return nil, fmt.Errorf("model returned unknown intent %q", result.Intent)
	}
	if result.Amount != nil && *result.Amount <= 0 {
		return nil, fmt.Errorf("model returned non-positive amount %d", *result.Amount)
	}
	if result.People == nil {
		result.People = []string{}
	}
	return &result, nil
}

// failureResponse folds a provider error into the uniform envelope, keeping
// whatever call metadata was already collected.
func failureResponse(meta Metadata, err error) *Response {
	msg := err.Error()
	if errors.Is(err, errQuotaExceeded) {
		msg = "quota exceeded"
	}
	return &Response{Success: false, Error: msg, Meta: meta}
}
