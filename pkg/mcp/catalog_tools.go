package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerCatalogTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"catalog_list_node_types",
		mcp.WithDescription("List the node type names available in the catalog."),
	), s.handleCatalogListNodeTypes)

	s.mcpServer.AddTool(mcp.NewTool(
		"catalog_describe_node_type",
		mcp.WithDescription("Describe a node type: input ports, output ports, and parameter defaults."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Node type name (e.g. 'LoaderNode')")),
	), s.handleCatalogDescribeNodeType)
}

func (s *Server) handleCatalogListNodeTypes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.manager.Catalog().Types()
	s.log.Debug("catalog_list_node_types", "", fmt.Sprintf("listed %d node types", len(names)), nil)
	return s.success("catalog_list_node_types", map[string]any{
		"node_types": names,
		"count":      len(names),
	})
}

func (s *Server) handleCatalogDescribeNodeType(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")

	nt, err := s.manager.Catalog().Describe(name)
	if err != nil {
		return s.failure("catalog_describe_node_type", "", err)
	}

	s.log.Debug("catalog_describe_node_type", "", fmt.Sprintf("described %s", name), nil)
	return s.success("catalog_describe_node_type", nt)
}
