package api

import (
	"time"

	"github.com/loomlab/loom/pkg/workflow"
)

// ErrorResponse is the JSON body returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status    string `json:"status"`
	Workflows int    `json:"workflows"`
}

// WorkflowDetail is the full JSON view of one workflow: session summary
// fields plus every node and link in insertion order.
type WorkflowDetail struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Active      bool             `json:"active"`
	Nodes       []*workflow.Node `json:"nodes"`
	Links       []*workflow.Link `json:"links"`
}
