package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomlab/loom/pkg/oplog"
)

func (s *Server) registerLogTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"log_get_recent",
		mcp.WithDescription("Get recent operation log entries, newest first."),
		mcp.WithNumber("count", mcp.Description("Maximum entries to return (default 100)")),
		mcp.WithString("level", mcp.Description("Only entries at this level: debug, info, warn, or error")),
		mcp.WithString("workflow_id", mcp.Description("Only entries for this workflow")),
	), s.handleLogGetRecent)

	s.mcpServer.AddTool(mcp.NewTool(
		"log_get_stats",
		mcp.WithDescription("Get operation log statistics: totals by level and by operation."),
	), s.handleLogGetStats)

	s.mcpServer.AddTool(mcp.NewTool(
		"log_clear",
		mcp.WithDescription("Clear the in-memory operation log ring."),
	), s.handleLogClear)
}

func (s *Server) handleLogGetRecent(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	count := int(mcp.ParseInt64(request, "count", 100))
	level := mcp.ParseString(request, "level", "")
	workflowID := mcp.ParseString(request, "workflow_id", "")

	switch level {
	case "", "debug", "info", "warn", "error":
	default:
		return s.failure("log_get_recent", workflowID, fmt.Errorf("unknown log level %q", level))
	}

	entries := s.log.Ring().Recent(count, oplog.Level(level), workflowID)
	return s.success("log_get_recent", map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

func (s *Server) handleLogGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.success("log_get_stats", s.log.Ring().Stats())
}

func (s *Server) handleLogClear(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	removed := s.log.Ring().Clear()
	s.log.Info("log_clear", "", fmt.Sprintf("cleared %d log entries", removed), nil)
	return s.success("log_clear", map[string]any{
		"status":  "cleared",
		"removed": removed,
	})
}
