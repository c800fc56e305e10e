package client

import (
	"encoding/json"
	"time"
)

// The types below mirror the daemon's wire format. The client deliberately
// avoids importing the server packages so that embedding it stays cheap.

// Health represents the health check response.
type Health struct {
	// Status is the health status string (e.g. "ok").
	Status string `json:"status"`
	// Workflows is the number of workflows in the session.
	Workflows int `json:"workflows"`
}

// WorkflowSummary is one row of the workflow listing.
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       int    `json:"nodes"`
	Links       int    `json:"links"`
	Active      bool   `json:"active"`
}

// Node is a workflow node as serialized by the daemon. Pos is an [x, y]
// canvas coordinate pair.
type Node struct {
	ID     int            `json:"id"`
	Type   string         `json:"type"`
	Pos    [2]float64     `json:"pos"`
	Params map[string]any `json:"params"`
}

// Link is a typed connection between two node slots.
type Link struct {
	ID       int    `json:"id"`
	FromNode int    `json:"from_node"`
	FromSlot int    `json:"from_slot"`
	ToNode   int    `json:"to_node"`
	ToSlot   int    `json:"to_slot"`
	Type     string `json:"type"`
}

// WorkflowDetail is the full view of one workflow.
type WorkflowDetail struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	Active      bool      `json:"active"`
	Nodes       []Node    `json:"nodes"`
	Links       []Link    `json:"links"`
}

// ValidationIssue is one finding from a structural validation pass.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  int    `json:"node_id,omitempty"`
	LinkID  int    `json:"link_id,omitempty"`
	Port    string `json:"port,omitempty"`
}

// ValidationReport aggregates validation findings for one workflow.
type ValidationReport struct {
	Valid    bool              `json:"valid"`
	Errors   []ValidationIssue `json:"errors"`
	Warnings []ValidationIssue `json:"warnings"`
}

// Port describes one connection point of a node type.
type Port struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required,omitempty"`
}

// NodeType is one catalog entry.
type NodeType struct {
	Name     string         `json:"name"`
	Inputs   []Port         `json:"inputs,omitempty"`
	Outputs  []Port         `json:"outputs,omitempty"`
	Defaults map[string]any `json:"defaults,omitempty"`
}

// LogEntry is one operation log record.
type LogEntry struct {
	Time       time.Time      `json:"time"`
	Level      string         `json:"level"`
	Op         string         `json:"op"`
	Message    string         `json:"message"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Details    map[string]any `json:"details,omitempty"`
}

// LogOptions filters the GetLogs query. Zero values mean no filter; a zero
// Limit uses the daemon default.
type LogOptions struct {
	Limit      int
	Level      string
	WorkflowID string
}

// errorBody is the daemon's JSON error envelope.
type errorBody struct {
	Error string `json:"error"`
}

func decodeErrorCode(data []byte) string {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	return body.Error
}
