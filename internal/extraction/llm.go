package extraction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/openwelfare/sahayak/internal/domain"
)

const systemPrompt = `You convert government scheme documents into a compact eligibility rules JSON.
Return only valid JSON. No explanations.`

const userPromptTemplate = `You are an expert at extracting government scheme eligibility rules from policy documents.

TASK: Convert the following government scheme document into structured JSON eligibility rules.

DOCUMENT TEXT:
%s

INSTRUCTIONS:
1. Identify the scheme name and create a simple scheme_id (lowercase, underscores)
2. Extract ALL eligibility criteria (age, income, occupation, caste, gender, location, etc.)
3. Convert criteria into structured conditions with operators
4. List required documents mentioned in the text
5. Summarize benefits and application process

OUTPUT FORMAT (JSON only, no explanations):
{
  "scheme_id": "scheme_name_simplified",
  "scheme_name": "Official Scheme Name from Document",
  "eligibility": {
    "all": [
      {"attribute": "age", "op": ">=", "value": 18, "reason_if_fail": "Must be 18 or older"}
    ],
    "any": [
      {"attribute": "caste", "op": "in", "value": ["SC", "ST", "OBC"], "reason_if_fail": "Must belong to reserved category"}
    ],
    "disqualifiers": [
      {"attribute": "has_government_job", "op": "==", "value": true, "reason": "Government employees not eligible"}
    ]
  },
  "required_inputs": ["age", "gender", "occupation", "income", "caste", "state"],
  "required_documents": ["aadhaar_card", "income_certificate"],
  "benefit_outline": "Brief description of benefits provided",
  "next_steps": "How to apply for this scheme"
}

OPERATORS: ==, !=, >, >=, <, <=, truthy, falsy, in, not_in, between

Extract rules even if document is unclear - make reasonable assumptions based on context.`

// LLMExtractor calls an OpenAI-compatible chat completion endpoint to
// author the rules document.
type LLMExtractor struct {
	endpoint   string
	model      string
	apiKey     string
	maxRetries int
	client     *http.Client
	logger     *slog.Logger
}

// NewLLMExtractor builds the LLM client from config. Returns nil when no
// endpoint is configured, which makes the pipeline fall straight through
// to the regex extractor.
func NewLLMExtractor(cfg domain.ExtractionConfig, logger *slog.Logger) *LLMExtractor {
	if cfg.LLMEndpoint == "" {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LLMExtractor{
		endpoint:   strings.TrimRight(cfg.LLMEndpoint, "/"),
		model:      cfg.LLMModel,
		apiKey:     cfg.LLMAPIKey,
		maxRetries: cfg.MaxRetries,
		client:     &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (e *LLMExtractor) Name() string { return "llm" }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Extract sends the document text to the model and parses the JSON reply.
// Transient failures are retried with a short backoff.
func (e *LLMExtractor) Extract(ctx context.Context, text, schemeID string) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * time.Second):
			}
		}
		doc, err := e.once(ctx, text)
		if err == nil {
			return doc, nil
		}
		lastErr = err
		e.logger.Warn("llm extraction attempt failed",
			"schemeId", schemeID, "attempt", attempt+1, "error", err)
	}
	return nil, lastErr
}

func (e *LLMExtractor) once(ctx context.Context, text string) (map[string]any, error) {
	body, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: fmt.Sprintf(userPromptTemplate, text)},
		},
		Temperature: 0.1,
		MaxTokens:   4000,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call llm endpoint: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("llm endpoint returned %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("no choices in llm response")
	}

	content := stripCodeFences(parsed.Choices[0].Message.Content)
	var doc map[string]any
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse rules json: %w", err)
	}
	return doc, nil
}

// stripCodeFences removes markdown fencing some models wrap around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
