package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

type ListIssuesInput struct {
	State  string `json:"state,omitempty" jsonschema:"only return issues currently in this state: active, blocked or stalled"`
	Column string `json:"column,omitempty" jsonschema:"only return issues currently in this board column"`
}

type IssueFlowInput struct {
	Key    string   `json:"key" jsonschema:"the issue key, for example PROJ-123"`
	From   string   `json:"from,omitempty" jsonschema:"first day of the reporting range as YYYY-MM-DD"`
	To     string   `json:"to,omitempty" jsonschema:"last day of the reporting range as YYYY-MM-DD"`
	Fields []string `json:"fields,omitempty" jsonschema:"issue fields to include, see list_issue_fields"`
}

type AgingInput struct {
	Percentiles []int `json:"percentiles,omitempty" jsonschema:"percentiles between 0 and 100, default 50 and 85"`
}

type RangeInput struct {
	From string `json:"from,omitempty" jsonschema:"first day of the range as YYYY-MM-DD"`
	To   string `json:"to,omitempty" jsonschema:"last day of the range as YYYY-MM-DD"`
}

type NoInput struct{}

func (s *Server) registerTools(server *mcp.Server) error {
	return errors.Join(
		addTool(server, "list_issues",
			"List the top-level issues of the board with their current column, blocked/stalled state and age. "+
				"Use it to find candidates before calling 'issue_flow'.",
			s.handleListIssues),
		addTool(server, "issue_flow",
			"Get the full flow history of one issue: cycle time start and stop, age, every blocked/stalled interval "+
				"with its reasons, the state of each day in the range, and a forecast of the remaining days.",
			s.handleIssueFlow),
		addTool(server, "aging_by_column",
			"Get the age (in days) that completed issues had when they left each visible board column, "+
				"at the requested percentiles. This is the background of an aging work-in-progress chart.",
			s.handleAgingByColumn),
		addTool(server, "wip_run_chart",
			"Get the number of in-progress issues at the end of every day in the range, with the keys counted.",
			s.handleWIPRunChart),
		addTool(server, "flow_summary",
			"Get the board level aggregates for a range: daily WIP and throughput, median cycle time, "+
				"statuses not mapped to any column and data quality warnings.",
			s.handleFlowSummary),
		addTool(server, "list_issue_fields",
			"List the issue field names accepted by the 'fields' argument of 'issue_flow'.",
			s.handleListIssueFields),
	)
}

// addTool registers a handler whose result is sent back as indented JSON text.
func addTool[In any](server *mcp.Server, name, description string, handle func(context.Context, In) (any, error)) error {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return fmt.Errorf("failed to build input schema for %s: %w", name, err)
	}

	tool := &mcp.Tool{Name: name, Description: description, InputSchema: schema}
	mcp.AddTool(server, tool, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		data, err := handle(ctx, in)
		if err != nil {
			log.Warn().Err(err).Str("tool", name).Msg("Tool call failed")
			return nil, nil, err
		}
		text, err := formatResult(data)
		if err != nil {
			return nil, nil, err
		}
		log.Debug().Str("tool", name).Int("bytes", len(text)).Msg("Tool call answered")
		return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}, nil, nil
	})
	return nil
}
