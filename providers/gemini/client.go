// Package gemini implements llm.Client against the Google Gemini REST API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/quailyquaily/slackbard/llm"
)

const DefaultModel = "gemini-1.5-pro-latest"

type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewClient(httpClient *http.Client, baseURL, apiKey, model string) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	baseURL = strings.TrimSpace(strings.TrimRight(baseURL, "/"))
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}, nil
}

type generatePart struct {
	Text string `json:"text"`
}

type generateContent struct {
	Role  string         `json:"role,omitempty"`
	Parts []generatePart `json:"parts"`
}

type generationConfig struct {
	CandidateCount  int     `json:"candidateCount,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type safetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type generateRequest struct {
	Contents         []generateContent `json:"contents"`
	GenerationConfig generationConfig  `json:"generationConfig"`
	SafetySettings   []safetySetting   `json:"safetySettings,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      generateContent `json:"content"`
		FinishReason string          `json:"finishReason,omitempty"`
	} `json:"candidates,omitempty"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
	Error *struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// Complete sends the transcript plus generation parameters and returns the
// generated text. Content-policy refusals wrap llm.ErrBlocked; every other
// failure is terminal with no retry.
func (c *Client) Complete(ctx context.Context, req llm.Request) (llm.Result, error) {
	if c == nil || c.http == nil {
		return llm.Result{}, fmt.Errorf("gemini client is not initialized")
	}
	if len(req.Contents) == 0 {
		return llm.Result{}, fmt.Errorf("contents are required")
	}

	payload := generateRequest{
		Contents: make([]generateContent, 0, len(req.Contents)),
		GenerationConfig: generationConfig{
			CandidateCount:  req.Params.CandidateCount,
			MaxOutputTokens: req.Params.MaxOutputTokens,
			Temperature:     req.Params.Temperature,
		},
		SafetySettings: safetySettings(req.Params.Safety),
	}
	for _, content := range req.Contents {
		payload.Contents = append(payload.Contents, generateContent{
			Role:  content.Role,
			Parts: []generatePart{{Text: content.Text}},
		})
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return llm.Result{}, err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return llm.Result{}, fmt.Errorf("gemini generateContent: %w", err)
	}
	body, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return llm.Result{}, readErr
	}

	var out generateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return llm.Result{}, fmt.Errorf("gemini generateContent: invalid response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Error != nil && strings.TrimSpace(out.Error.Message) != "" {
			return llm.Result{}, fmt.Errorf("gemini generateContent http %d: %s", resp.StatusCode, strings.TrimSpace(out.Error.Message))
		}
		return llm.Result{}, fmt.Errorf("gemini generateContent http %d", resp.StatusCode)
	}
	if out.PromptFeedback != nil && strings.TrimSpace(out.PromptFeedback.BlockReason) != "" {
		return llm.Result{}, fmt.Errorf("%w: prompt blocked: %s", llm.ErrBlocked, strings.TrimSpace(out.PromptFeedback.BlockReason))
	}
	if len(out.Candidates) == 0 {
		return llm.Result{}, fmt.Errorf("gemini generateContent returned no candidates")
	}

	candidate := out.Candidates[0]
	if isBlockedFinishReason(candidate.FinishReason) {
		return llm.Result{}, fmt.Errorf("%w: finish reason: %s", llm.ErrBlocked, candidate.FinishReason)
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return llm.Result{}, fmt.Errorf("gemini generateContent returned empty text")
	}
	return llm.Result{Text: text}, nil
}

func isBlockedFinishReason(reason string) bool {
	switch strings.ToUpper(strings.TrimSpace(reason)) {
	case "SAFETY", "PROHIBITED_CONTENT", "BLOCKLIST":
		return true
	default:
		return false
	}
}

func safetySettings(s llm.Safety) []safetySetting {
	return []safetySetting{
		{Category: "HARM_CATEGORY_HARASSMENT", Threshold: harmThreshold(s.Harassment)},
		{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: harmThreshold(s.Hate)},
		{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: harmThreshold(s.Sexual)},
		{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: harmThreshold(s.Dangerous)},
	}
}

func harmThreshold(level string) string {
	switch llm.NormalizeThreshold(level) {
	case "low":
		return "BLOCK_LOW_AND_ABOVE"
	case "medium":
		return "BLOCK_MEDIUM_AND_ABOVE"
	case "high":
		return "BLOCK_ONLY_HIGH"
	case "none":
		return "BLOCK_NONE"
	default:
		return "HARM_BLOCK_THRESHOLD_UNSPECIFIED"
	}
}
