package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/loomlab/loom/pkg/portable"
	"github.com/loomlab/loom/pkg/workflow"
)

// registerWorkflowTools wires the full graph operation set: lifecycle,
// node edits, connections, inspection, and validation.
func (s *Server) registerWorkflowTools() {
	// Lifecycle.
	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_create",
		mcp.WithDescription("Create a new empty workflow. It becomes active if nothing was active."),
		mcp.WithString("name", mcp.Description("Workflow name (default 'Untitled')")),
		mcp.WithString("description", mcp.Description("Workflow description")),
	), s.handleWorkflowCreate)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_load",
		mcp.WithDescription("Load a workflow from a portable JSON file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Path to the workflow JSON file")),
		mcp.WithBoolean("set_active", mcp.Description("Set as active workflow (default true)")),
		mcp.WithBoolean("repair", mcp.Description("Repair almost-JSON input before parsing (default false)")),
	), s.handleWorkflowLoad)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_save",
		mcp.WithDescription("Save a workflow to a portable JSON file."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Output file path")),
		mcp.WithString("workflow_id", mcp.Description("Workflow to save (active if omitted)")),
	), s.handleWorkflowSave)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_list",
		mcp.WithDescription("List all workflows in the current session."),
	), s.handleWorkflowList)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_set_active",
		mcp.WithDescription("Set the active workflow for subsequent operations."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow to activate")),
	), s.handleWorkflowSetActive)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_delete",
		mcp.WithDescription("Delete a workflow from the session."),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Workflow to delete")),
	), s.handleWorkflowDelete)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_clone",
		mcp.WithDescription("Clone a workflow. Node and link ids are renumbered from 1 in the copy."),
		mcp.WithString("workflow_id", mcp.Description("Workflow to clone (active if omitted)")),
		mcp.WithString("new_name", mcp.Description("Name for the clone (default '<name> (Copy)')")),
	), s.handleWorkflowClone)

	// Node operations.
	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_add_node",
		mcp.WithDescription("Add a node to the workflow. Parameters start from the type's defaults."),
		mcp.WithString("node_type", mcp.Required(), mcp.Description("Catalog node type name (e.g. 'LoaderNode')")),
		mcp.WithNumber("pos_x", mcp.Description("X position (auto-grid if omitted)")),
		mcp.WithNumber("pos_y", mcp.Description("Y position (auto-grid if omitted)")),
		mcp.WithObject("params", mcp.Description("Parameter overrides layered over the type defaults")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowAddNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_remove_node",
		mcp.WithDescription("Remove a node and every link touching it."),
		mcp.WithNumber("node_id", mcp.Required(), mcp.Description("Node to remove")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowRemoveNode)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_update_node_params",
		mcp.WithDescription("Merge new values into a node's parameters. Omitted keys keep their values."),
		mcp.WithNumber("node_id", mcp.Required(), mcp.Description("Node to update")),
		mcp.WithObject("params", mcp.Required(), mcp.Description("Parameter values to merge")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowUpdateNodeParams)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_get_node_info",
		mcp.WithDescription("Get one node with its parameters and connections."),
		mcp.WithNumber("node_id", mcp.Required(), mcp.Description("Node to inspect")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowGetNodeInfo)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_list_nodes",
		mcp.WithDescription("List all nodes in the workflow."),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowListNodes)

	// Connections.
	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_connect_nodes",
		mcp.WithDescription("Connect a node's output slot to another node's input slot. Connecting over an occupied input slot replaces the old link."),
		mcp.WithNumber("from_node_id", mcp.Required(), mcp.Description("Source node id")),
		mcp.WithNumber("from_slot", mcp.Required(), mcp.Description("Source output slot")),
		mcp.WithNumber("to_node_id", mcp.Required(), mcp.Description("Target node id")),
		mcp.WithNumber("to_slot", mcp.Required(), mcp.Description("Target input slot")),
		mcp.WithString("data_type", mcp.Description("Connection type tag (derived from the source output port if omitted)")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowConnectNodes)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_disconnect_nodes",
		mcp.WithDescription("Remove a connection between nodes."),
		mcp.WithNumber("link_id", mcp.Required(), mcp.Description("Link to remove")),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowDisconnectNodes)

	// Inspection and export.
	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_get_json",
		mcp.WithDescription("Get the complete workflow as a portable JSON document."),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowGetJSON)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_get_summary",
		mcp.WithDescription("Get a digest of the workflow: counts, node types, and connections."),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowGetSummary)

	s.mcpServer.AddTool(mcp.NewTool(
		"workflow_validate",
		mcp.WithDescription("Validate the workflow structure: dangling links, disconnected nodes, unconnected required inputs."),
		mcp.WithString("workflow_id", mcp.Description("Target workflow (active if omitted)")),
	), s.handleWorkflowValidate)
}

// --- Lifecycle handlers ---

func (s *Server) handleWorkflowCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := mcp.ParseString(request, "name", "")
	description := mcp.ParseString(request, "description", "")

	id := s.manager.Create(name, description)
	g, err := s.manager.Get(id)
	if err != nil {
		return s.failure("workflow_create", id, err)
	}

	return s.success("workflow_create", map[string]any{
		"workflow_id": id,
		"name":        g.Name(),
		"description": g.Description(),
		"status":      "created",
		"is_active":   s.manager.ActiveID() == id,
	})
}

func (s *Server) handleWorkflowLoad(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(request, "path", "")
	setActive := mcp.ParseBoolean(request, "set_active", true)
	repair := mcp.ParseBoolean(request, "repair", false)

	id, err := s.manager.Load(ctx, path, setActive, repair)
	if err != nil {
		return s.failure("workflow_load", "", err)
	}
	g, err := s.manager.Get(id)
	if err != nil {
		return s.failure("workflow_load", id, err)
	}

	nodes, links := g.Counts()
	return s.success("workflow_load", map[string]any{
		"workflow_id": id,
		"name":        g.Name(),
		"num_nodes":   nodes,
		"num_links":   links,
		"is_active":   s.manager.ActiveID() == id,
	})
}

func (s *Server) handleWorkflowSave(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := mcp.ParseString(request, "path", "")

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_save", "", err)
	}
	if err := s.manager.Save(ctx, g.ID(), path); err != nil {
		return s.failure("workflow_save", g.ID(), err)
	}

	return s.success("workflow_save", map[string]any{
		"status":      "saved",
		"path":        path,
		"workflow_id": g.ID(),
		"name":        g.Name(),
	})
}

func (s *Server) handleWorkflowList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.manager.List()
	s.log.Debug("workflow_list", "", fmt.Sprintf("listed %d workflows", len(list)), nil)
	return s.success("workflow_list", map[string]any{
		"workflows": list,
		"count":     len(list),
	})
}

func (s *Server) handleWorkflowSetActive(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "workflow_id", "")
	if err := s.manager.SetActive(id); err != nil {
		return s.failure("workflow_set_active", id, err)
	}
	return s.success("workflow_set_active", map[string]any{
		"status":      "active",
		"workflow_id": id,
	})
}

func (s *Server) handleWorkflowDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseString(request, "workflow_id", "")
	if err := s.manager.Delete(id); err != nil {
		return s.failure("workflow_delete", id, err)
	}
	return s.success("workflow_delete", map[string]any{
		"status":      "deleted",
		"workflow_id": id,
		"active_id":   s.manager.ActiveID(),
	})
}

func (s *Server) handleWorkflowClone(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	srcID := mcp.ParseString(request, "workflow_id", "")
	newName := mcp.ParseString(request, "new_name", "")

	id, err := s.manager.Clone(srcID, newName)
	if err != nil {
		return s.failure("workflow_clone", srcID, err)
	}
	g, err := s.manager.Get(id)
	if err != nil {
		return s.failure("workflow_clone", id, err)
	}

	return s.success("workflow_clone", map[string]any{
		"workflow_id": id,
		"name":        g.Name(),
		"cloned_from": srcID,
	})
}

// --- Node handlers ---

func (s *Server) handleWorkflowAddNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeType := mcp.ParseString(request, "node_type", "")
	params := mcp.ParseStringMap(request, "params", nil)

	var pos *workflow.Position
	if mcp.ParseArgument(request, "pos_x", nil) != nil && mcp.ParseArgument(request, "pos_y", nil) != nil {
		pos = &workflow.Position{
			X: mcp.ParseFloat64(request, "pos_x", 0),
			Y: mcp.ParseFloat64(request, "pos_y", 0),
		}
	}

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_add_node", "", err)
	}
	n, err := g.AddNode(nodeType, pos, params)
	if err != nil {
		return s.failure("workflow_add_node", g.ID(), err)
	}

	s.log.Info("workflow_add_node", g.ID(), fmt.Sprintf("added node %d: %s", n.ID, nodeType),
		map[string]any{"pos": []float64{n.Pos.X, n.Pos.Y}, "num_params": len(params)})

	return s.success("workflow_add_node", map[string]any{
		"node_id":     n.ID,
		"node_type":   n.Type,
		"pos":         n.Pos,
		"params":      n.Params,
		"workflow_id": g.ID(),
	})
}

func (s *Server) handleWorkflowRemoveNode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID := workflow.NodeID(mcp.ParseInt64(request, "node_id", 0))

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_remove_node", "", err)
	}
	removed, err := g.RemoveNode(nodeID)
	if err != nil {
		return s.failure("workflow_remove_node", g.ID(), err)
	}

	s.log.Info("workflow_remove_node", g.ID(), fmt.Sprintf("removed node %d", nodeID),
		map[string]any{"removed_links": removed})

	return s.success("workflow_remove_node", map[string]any{
		"status":        "removed",
		"node_id":       nodeID,
		"removed_links": removed,
	})
}

func (s *Server) handleWorkflowUpdateNodeParams(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID := workflow.NodeID(mcp.ParseInt64(request, "node_id", 0))
	params := mcp.ParseStringMap(request, "params", nil)

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_update_node_params", "", err)
	}
	n, err := g.UpdateNodeParams(nodeID, params)
	if err != nil {
		return s.failure("workflow_update_node_params", g.ID(), err)
	}

	s.log.Info("workflow_update_node_params", g.ID(), fmt.Sprintf("updated node %d params", nodeID),
		map[string]any{"keys": len(params)})

	return s.success("workflow_update_node_params", map[string]any{
		"status":  "updated",
		"node_id": n.ID,
		"params":  n.Params,
	})
}

func (s *Server) handleWorkflowGetNodeInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	nodeID := workflow.NodeID(mcp.ParseInt64(request, "node_id", 0))

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_get_node_info", "", err)
	}
	info, err := g.NodeInfo(nodeID)
	if err != nil {
		return s.failure("workflow_get_node_info", g.ID(), err)
	}

	s.log.Debug("workflow_get_node_info", g.ID(), fmt.Sprintf("inspected node %d", nodeID), nil)
	return s.success("workflow_get_node_info", info)
}

func (s *Server) handleWorkflowListNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_list_nodes", "", err)
	}

	nodes := g.Nodes()
	s.log.Debug("workflow_list_nodes", g.ID(), fmt.Sprintf("listed %d nodes", len(nodes)), nil)
	return s.success("workflow_list_nodes", map[string]any{
		"workflow_id": g.ID(),
		"nodes":       nodes,
		"count":       len(nodes),
	})
}

// --- Connection handlers ---

func (s *Server) handleWorkflowConnectNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	fromNode := workflow.NodeID(mcp.ParseInt64(request, "from_node_id", 0))
	fromSlot := int(mcp.ParseInt64(request, "from_slot", 0))
	toNode := workflow.NodeID(mcp.ParseInt64(request, "to_node_id", 0))
	toSlot := int(mcp.ParseInt64(request, "to_slot", 0))
	dataType := mcp.ParseString(request, "data_type", "")

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_connect_nodes", "", err)
	}

	// An omitted data_type takes the declared type of the source output port.
	if dataType == "" {
		if n, err := g.Node(fromNode); err == nil {
			if nt, err := g.Catalog().Describe(n.Type); err == nil {
				if port, ok := nt.OutputPort(fromSlot); ok {
					dataType = port.Type
				}
			}
		}
	}

	link, replaced, err := g.Connect(fromNode, fromSlot, toNode, toSlot, dataType)
	if err != nil {
		return s.failure("workflow_connect_nodes", g.ID(), err)
	}

	details := map[string]any{"link_id": link.ID, "type": link.Type}
	if replaced != nil {
		details["replaced_link_id"] = replaced.ID
	}
	s.log.Info("workflow_connect_nodes", g.ID(),
		fmt.Sprintf("connected %d:%d -> %d:%d", fromNode, fromSlot, toNode, toSlot), details)

	result := map[string]any{
		"link_id":   link.ID,
		"from_node": link.FromNode,
		"from_slot": link.FromSlot,
		"to_node":   link.ToNode,
		"to_slot":   link.ToSlot,
		"type":      link.Type,
	}
	if replaced != nil {
		result["replaced_link_id"] = replaced.ID
	}
	return s.success("workflow_connect_nodes", result)
}

func (s *Server) handleWorkflowDisconnectNodes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	linkID := workflow.LinkID(mcp.ParseInt64(request, "link_id", 0))

	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_disconnect_nodes", "", err)
	}
	if err := g.Disconnect(linkID); err != nil {
		return s.failure("workflow_disconnect_nodes", g.ID(), err)
	}

	s.log.Info("workflow_disconnect_nodes", g.ID(), fmt.Sprintf("removed link %d", linkID), nil)
	return s.success("workflow_disconnect_nodes", map[string]any{
		"status":  "disconnected",
		"link_id": linkID,
	})
}

// --- Inspection handlers ---

func (s *Server) handleWorkflowGetJSON(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_get_json", "", err)
	}
	doc, err := portable.Export(g)
	if err != nil {
		return s.failure("workflow_get_json", g.ID(), err)
	}

	s.log.Debug("workflow_get_json", g.ID(), "exported portable document", nil)
	return s.success("workflow_get_json", doc)
}

func (s *Server) handleWorkflowGetSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_get_summary", "", err)
	}

	s.log.Debug("workflow_get_summary", g.ID(), "summarized workflow", nil)
	return s.success("workflow_get_summary", g.Summary())
}

func (s *Server) handleWorkflowValidate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, err := s.resolve(request)
	if err != nil {
		return s.failure("workflow_validate", "", err)
	}

	report := g.Validate()
	nodes, links := g.Counts()
	s.log.Debug("workflow_validate", g.ID(),
		fmt.Sprintf("validated: %d errors, %d warnings", len(report.Errors), len(report.Warnings)), nil)

	return s.success("workflow_validate", map[string]any{
		"valid":     report.Valid,
		"errors":    report.Errors,
		"warnings":  report.Warnings,
		"num_nodes": nodes,
		"num_links": links,
	})
}
