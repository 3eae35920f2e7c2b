package mcp

import (
	"fmt"
	"strings"

	"flowlens/internal/stats"

	"github.com/goccy/go-json"
)

// Response is the envelope every tool answers with.
type Response struct {
	Data        any      `json:"data"`
	Diagnostics []string `json:"diagnostics,omitempty"`
	Guidance    []string `json:"guidance,omitempty"`
}

// WrapResponse packs data with optional diagnostics and guidance for the caller.
func WrapResponse(data any, diagnostics, guidance []string) Response {
	return Response{Data: data, Diagnostics: diagnostics, Guidance: guidance}
}

func formatResult(data any) (string, error) {
	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tool result: %w", err)
	}
	return string(out), nil
}

// resolveRange overrides either end of the default range.
func resolveRange(defaults stats.DateRange, from, to string) (stats.DateRange, error) {
	rng := defaults
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if rng.Start, err = stats.ParseDate(from); err != nil {
			return stats.DateRange{}, fmt.Errorf("invalid from date: %w", err)
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if rng.End, err = stats.ParseDate(to); err != nil {
			return stats.DateRange{}, fmt.Errorf("invalid to date: %w", err)
		}
	}
	if rng.Len() == 0 {
		return stats.DateRange{}, fmt.Errorf("from %s is after to %s", rng.Start, rng.End)
	}
	return rng, nil
}
