package jira

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ParseID converts a Jira numeric id ("10001") into an int. Empty or non-numeric ids yield 0.
func ParseID(s string) int {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return id
}

// ProjectKey extracts the project key portion from an issue key (e.g., "PROJ" from "PROJ-123").
func ProjectKey(key string) string {
	if idx := strings.Index(key, "-"); idx > 0 {
		return key[:idx]
	}
	return key
}

// CommentBody flattens a comment body into text. API v3 returns an Atlassian document,
// in which case the text nodes are concatenated.
func CommentBody(body any) string {
	switch v := body.(type) {
	case nil:
		return ""
	case string:
		return v
	case map[string]any:
		var sb strings.Builder
		collectText(v, &sb)
		return strings.TrimSpace(sb.String())
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}

func collectText(node map[string]any, sb *strings.Builder) {
	if text, ok := node["text"].(string); ok {
		sb.WriteString(text)
	}
	content, _ := node["content"].([]any)
	for _, child := range content {
		if m, ok := child.(map[string]any); ok {
			collectText(m, sb)
		}
	}
	if node["type"] == "paragraph" {
		sb.WriteString("\n")
	}
}
