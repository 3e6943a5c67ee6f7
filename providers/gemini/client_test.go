package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quailyquaily/slackbard/llm"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(srv.Client(), srv.URL, "test-key", "gemini-1.5-pro-latest")
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return client
}

func simpleRequest(text string) llm.Request {
	return llm.Request{
		Contents: []llm.Content{{Role: llm.RoleUser, Text: text}},
		Params:   llm.DefaultParams(),
	}
}

func TestCompleteReturnsGeneratedText(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{{"text": "4"}}},
				"finishReason": "STOP",
			}},
		})
	})

	res, err := client.Complete(context.Background(), simpleRequest("what is 2+2"))
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if res.Text != "4" {
		t.Fatalf("Text = %q, want %q", res.Text, "4")
	}
	if gotPath != "/models/gemini-1.5-pro-latest:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.GenerationConfig.MaxOutputTokens != 8192 {
		t.Fatalf("maxOutputTokens = %d, want 8192", gotBody.GenerationConfig.MaxOutputTokens)
	}
	if len(gotBody.SafetySettings) != 4 {
		t.Fatalf("len(safetySettings) = %d, want 4", len(gotBody.SafetySettings))
	}
	for _, s := range gotBody.SafetySettings {
		if s.Threshold != "HARM_BLOCK_THRESHOLD_UNSPECIFIED" {
			t.Fatalf("threshold for %s = %q, want unspecified", s.Category, s.Threshold)
		}
	}
}

func TestCompleteClassifiesPromptBlock(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
		})
	})

	_, err := client.Complete(context.Background(), simpleRequest("nope"))
	if !llm.IsBlocked(err) {
		t.Fatalf("Complete() error = %v, want llm.ErrBlocked", err)
	}
}

func TestCompleteClassifiesSafetyFinishReason(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content":      map[string]any{"role": "model", "parts": []map[string]any{}},
				"finishReason": "SAFETY",
			}},
		})
	})

	_, err := client.Complete(context.Background(), simpleRequest("nope"))
	if !llm.IsBlocked(err) {
		t.Fatalf("Complete() error = %v, want llm.ErrBlocked", err)
	}
}

func TestCompleteServiceErrorIsNotBlocked(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 429, "status": "RESOURCE_EXHAUSTED", "message": "quota exceeded"},
		})
	})

	_, err := client.Complete(context.Background(), simpleRequest("hello"))
	if err == nil {
		t.Fatalf("Complete() error = nil, want service error")
	}
	if llm.IsBlocked(err) {
		t.Fatalf("Complete() error classified as blocked: %v", err)
	}
	if !strings.Contains(err.Error(), "quota exceeded") {
		t.Fatalf("Complete() error = %v, want quota message surfaced", err)
	}
}

func TestHarmThresholdMapping(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"low":         "BLOCK_LOW_AND_ABOVE",
		"medium":      "BLOCK_MEDIUM_AND_ABOVE",
		"high":        "BLOCK_ONLY_HIGH",
		"none":        "BLOCK_NONE",
		"unspecified": "HARM_BLOCK_THRESHOLD_UNSPECIFIED",
		"bogus":       "HARM_BLOCK_THRESHOLD_UNSPECIFIED",
	}
	for in, want := range cases {
		if got := harmThreshold(in); got != want {
			t.Fatalf("harmThreshold(%q) = %q, want %q", in, got, want)
		}
	}
}
