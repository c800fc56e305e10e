// Package mcp adapts the workflow session to the Model Context Protocol.
// Every graph operation is exposed as a tool over stdio so that agents can
// build and edit workflows conversationally; the catalog and the session
// listing are published as resources.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/metrics"
	"github.com/loomlab/loom/pkg/oplog"
	"github.com/loomlab/loom/pkg/session"
	"github.com/loomlab/loom/pkg/workflow"
)

// Server bridges MCP clients to one in-process workflow session.
type Server struct {
	mcpServer *server.MCPServer
	manager   *session.Manager
	log       *oplog.Log
}

// NewServer creates a new MCP server instance around the session manager.
func NewServer(mgr *session.Manager) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"loom",
			"1.0.0",
		),
		manager: mgr,
		log:     mgr.Log(),
	}
	s.registerResources()
	s.registerWorkflowTools()
	s.registerCatalogTools()
	s.registerLogTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// loom://catalog
	s.mcpServer.AddResource(mcp.NewResource(
		"loom://catalog",
		"Node Type Catalog",
		mcp.WithResourceDescription("Every registered node type with its ports and default parameters"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadCatalog)

	// loom://workflows
	s.mcpServer.AddResource(mcp.NewResource(
		"loom://workflows",
		"Session Workflows",
		mcp.WithResourceDescription("All workflows in the current session with node and link counts"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadWorkflows)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"loom-aware",
		mcp.WithPromptDescription("Provides context about workflow collaboration (graphs, nodes, links, the active workflow)"),
	), s.handleGetPrompt)
}

// --- Resource handlers ---

func (s *Server) handleReadCatalog(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	cat := s.manager.Catalog()
	types := make([]catalog.NodeType, 0, cat.Len())
	for _, name := range cat.Types() {
		t, err := cat.Describe(name)
		if err != nil {
			continue
		}
		types = append(types, t)
	}

	data, err := json.MarshalIndent(types, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleReadWorkflows(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.manager.List(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal workflows: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "loom-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are collaborating on workflow graphs managed by loom.

Concepts:
- Workflow: a named graph of typed nodes connected by links. The session can
  hold several; one is "active" and is the default target of every tool.
- Node: an instance of a catalog node type. It has an integer id, a canvas
  position, and named parameters seeded from the type's defaults.
- Link: a typed connection from a node's output slot to another node's input
  slot. An input slot holds at most one link; connecting over an occupied
  slot replaces the old link.
- Catalog: the registry of node types. Use 'catalog_list_node_types' and
  'catalog_describe_node_type' to discover what you can build with.

Typical flow: 'workflow_create' (or 'workflow_load'), then 'workflow_add_node'
and 'workflow_connect_nodes' to shape the graph, 'workflow_validate' to check
it, and 'workflow_save' or 'workflow_get_json' to hand the result to the
execution engine. 'workflow_get_summary' is the cheapest way to re-orient.
`

	return mcp.NewGetPromptResult(
		"loom-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

// --- Shared handler plumbing ---

// resolve returns the tool's target workflow: the one named by the optional
// workflow_id argument, or the active one when the argument is absent.
func (s *Server) resolve(request mcp.CallToolRequest) (*workflow.Graph, error) {
	return s.manager.Resolve(mcp.ParseString(request, "workflow_id", ""))
}

// success counts the operation and renders v as an indented JSON text result.
func (s *Server) success(op string, v any) (*mcp.CallToolResult, error) {
	metrics.OperationsTotal.WithLabelValues(op, "ok").Inc()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s result: %w", op, err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// failure counts the operation, records it in the operation log, and maps
// the domain error to a tool error result. Domain errors never become
// transport errors; the agent sees them and can react.
func (s *Server) failure(op, workflowID string, err error) (*mcp.CallToolResult, error) {
	metrics.OperationsTotal.WithLabelValues(op, "error").Inc()
	s.log.Error(op, workflowID, err.Error(), nil)
	return mcp.NewToolResultError(err.Error()), nil
}
