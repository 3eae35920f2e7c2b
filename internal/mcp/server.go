package mcp

import (
	"context"
	"fmt"
	"time"

	"flowlens/internal/eventlog"
	"flowlens/internal/report"
	"flowlens/internal/stats"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

// Server answers flow questions about one loaded board over MCP.
type Server struct {
	analyzer *report.Analyzer
	store    *eventlog.IssueStore
	defaults report.Options
	version  string
}

// NewServer creates a server over an already loaded issue store.
// defaults supplies the date range, fields and percentiles used when a tool call omits them.
func NewServer(analyzer *report.Analyzer, store *eventlog.IssueStore, defaults report.Options, version string) *Server {
	return &Server{
		analyzer: analyzer,
		store:    store,
		defaults: defaults,
		version:  version,
	}
}

// MCPServer builds the protocol server with every tool registered.
func (s *Server) MCPServer() (*mcp.Server, error) {
	server := mcp.NewServer(&mcp.Implementation{Name: "flowlens", Version: s.version}, nil)
	if err := s.registerTools(server); err != nil {
		return nil, err
	}
	return server, nil
}

// Run serves over stdio until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server, err := s.MCPServer()
	if err != nil {
		return err
	}

	log.Info().
		Int("issues", s.store.Count()).
		Str("from", s.defaults.Range.Start.String()).
		Str("to", s.defaults.Range.End.String()).
		Msg("MCP server listening on stdio")

	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("mcp server stopped: %w", err)
	}
	return nil
}

// options merges per-call overrides into the defaults.
func (s *Server) options(from, to string, fields []string) (report.Options, error) {
	opts := s.defaults
	rng, err := resolveRange(s.defaults.Range, from, to)
	if err != nil {
		return report.Options{}, err
	}
	if rng != s.defaults.Range {
		opts.Range = rng
		opts.EndTime = endOfRange(rng, s.analyzer.CycleTime.Location, s.defaults.EndTime)
	}
	if len(fields) > 0 {
		opts.Fields = fields
	}
	return opts, nil
}

// endOfRange is the last instant of the range, never later than limit.
func endOfRange(rng stats.DateRange, loc *time.Location, limit time.Time) time.Time {
	end := rng.End.AddDays(1).Time(loc).Add(-time.Nanosecond)
	if !limit.IsZero() && end.After(limit) {
		return limit
	}
	return end
}
