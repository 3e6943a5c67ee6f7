// Package llm defines the completion client abstraction used by the bot.
package llm

import (
	"context"
	"errors"
	"strings"
)

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// ErrBlocked marks a completion the provider refused for content-safety
// reasons. Callers should surface a "blocked" reply and must not persist
// the turn.
var ErrBlocked = errors.New("completion blocked by content policy")

// Content is one entry of a conversation transcript.
type Content struct {
	Role string
	Text string
}

// Safety holds the four content-filter thresholds. Recognized values:
// "unspecified", "low", "medium", "high", "none".
type Safety struct {
	Harassment string
	Hate       string
	Sexual     string
	Dangerous  string
}

// Params are the generation parameters applied to every request.
type Params struct {
	CandidateCount  int
	MaxOutputTokens int
	Temperature     float64
	Safety          Safety
}

// DefaultParams mirrors the documented configuration defaults.
func DefaultParams() Params {
	return Params{
		CandidateCount:  1,
		MaxOutputTokens: 8192,
		Temperature:     0.9,
		Safety: Safety{
			Harassment: "unspecified",
			Hate:       "unspecified",
			Sexual:     "unspecified",
			Dangerous:  "unspecified",
		},
	}
}

type Request struct {
	Contents []Content
	Params   Params
}

type Result struct {
	Text string
}

// Client is a stateless completion service. Implementations perform no
// retries; every failure is terminal for the request.
type Client interface {
	Complete(ctx context.Context, req Request) (Result, error)
}

// IsBlocked reports whether err classifies as a content-policy refusal.
func IsBlocked(err error) bool {
	return errors.Is(err, ErrBlocked)
}

// NormalizeThreshold maps a configured threshold name to its canonical
// lowercase form, defaulting unknown values to "unspecified".
func NormalizeThreshold(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return "low"
	case "medium":
		return "medium"
	case "high":
		return "high"
	case "none":
		return "none"
	default:
		return "unspecified"
	}
}
