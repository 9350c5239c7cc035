package extraction

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openwelfare/sahayak/internal/domain"
)

func llmServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}

		w.WriteHeader(status)
		resp := map[string]any{
			"choices": []any{
				map[string]any{"message": map[string]any{"content": content}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
}

func testLLM(t *testing.T, srv *httptest.Server, retries int) *LLMExtractor {
	t.Helper()
	e := NewLLMExtractor(domain.ExtractionConfig{
		LLMEndpoint: srv.URL,
		LLMModel:    "test-model",
		LLMAPIKey:   "test-key",
		TimeoutSec:  5,
		MaxRetries:  retries,
	}, nil)
	if e == nil {
		t.Fatal("extractor not constructed")
	}
	return e
}

func TestLLMExtract(t *testing.T) {
	doc := `{"scheme_id": "pm_kisan", "scheme_name": "PM Kisan", "eligibility": {"all": []}}`
	srv := llmServer(t, http.StatusOK, doc)
	defer srv.Close()

	got, err := testLLM(t, srv, 0).Extract(context.Background(), "some scheme text", "pm_kisan")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got["scheme_id"] != "pm_kisan" {
		t.Errorf("scheme_id = %v", got["scheme_id"])
	}
}

func TestLLMExtractStripsCodeFences(t *testing.T) {
	doc := "```json\n{\"scheme_id\": \"x\", \"scheme_name\": \"X\", \"eligibility\": {}}\n```"
	srv := llmServer(t, http.StatusOK, doc)
	defer srv.Close()

	got, err := testLLM(t, srv, 0).Extract(context.Background(), "text", "x")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got["scheme_id"] != "x" {
		t.Errorf("scheme_id = %v", got["scheme_id"])
	}
}

func TestLLMExtractServerError(t *testing.T) {
	srv := llmServer(t, http.StatusBadGateway, "")
	defer srv.Close()

	_, err := testLLM(t, srv, 0).Extract(context.Background(), "text", "x")
	if err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestLLMExtractBadJSON(t *testing.T) {
	srv := llmServer(t, http.StatusOK, "sorry, I cannot help with that")
	defer srv.Close()

	_, err := testLLM(t, srv, 0).Extract(context.Background(), "text", "x")
	if err == nil {
		t.Fatal("expected error on unparseable content")
	}
}

func TestNewLLMExtractorUnconfigured(t *testing.T) {
	if e := NewLLMExtractor(domain.ExtractionConfig{}, nil); e != nil {
		t.Error("expected nil extractor without endpoint")
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a": 1}`, `{"a": 1}`},
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n{\"a\": 1}\n```", `{"a": 1}`},
		{"  {\"a\": 1}  ", `{"a": 1}`},
	}
	for _, tt := range tests {
		if got := stripCodeFences(tt.in); got != tt.want {
			t.Errorf("stripCodeFences(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
