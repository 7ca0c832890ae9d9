package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func completionResponse(text string) map[string]interface{} {
	return map[string]interface{}{
		"candidates": []map[string]interface{}{
			{
				"content": map[string]interface{}{
					"parts": []map[string]interface{}{{"text": text}},
				},
				"finishReason": "STOP",
			},
		},
	}
}

func newTestClient(t *testing.T, serverURL string, rpm int) *GeminiClient {
	t.Helper()
	cfg := DefaultConfig("test-key")
	cfg.BaseURL = serverURL
	cfg.RequestsPerMinute = rpm
	client, err := NewGeminiClient(cfg)
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestCompleteSuccess(t *testing.T) {
	var gotBody geminiRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "gemini-1.5-flash:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(completionResponse("과실 비율은 30:70으로 판단됩니다."))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	got, err := client.Complete(context.Background(), "당신은 교통사고 전문가입니다.", "좌회전 사고 과실은?")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !strings.Contains(got, "30:70") {
		t.Errorf("unexpected completion: %q", got)
	}

	if gotBody.GenerationConfig.Temperature != 0.2 {
		t.Errorf("temperature = %f, want 0.2", gotBody.GenerationConfig.Temperature)
	}
	if gotBody.GenerationConfig.MaxOutputTokens != 1000 {
		t.Errorf("maxOutputTokens = %d, want 1000", gotBody.GenerationConfig.MaxOutputTokens)
	}
	if gotBody.SystemInstruction == nil {
		t.Error("system instruction missing from request")
	}
}

func TestCompleteRetriesRateLimit(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(completionResponse("답변"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	got, err := client.Complete(context.Background(), "", "질문")
	if err != nil {
		t.Fatalf("Complete should succeed after retry: %v", err)
	}
	if got != "답변" {
		t.Errorf("completion = %q", got)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestCompleteEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	_, err := client.Complete(context.Background(), "", "질문")
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("expected ErrEmptyCompletion, got %v", err)
	}
}

func TestCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid request", http.StatusBadRequest)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 0)
	if _, err := client.Complete(context.Background(), "", "질문"); err == nil {
		t.Fatal("expected error for 400 response")
	}
}

func TestCompletePacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(completionResponse("ok"))
	}))
	defer server.Close()

	// 1200 requests per minute = one per 50ms.
	client := newTestClient(t, server.URL, 1200)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if _, err := client.Complete(context.Background(), "", "질문"); err != nil {
			t.Fatal(err)
		}
	}
	// Three calls need at least two full intervals between them.
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("three calls finished in %v, pacing not applied", elapsed)
	}
}

func TestNewGeminiClientRequiresKey(t *testing.T) {
	if _, err := NewGeminiClient(Config{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
