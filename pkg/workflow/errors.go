package workflow

import "fmt"

// NodeNotFoundError reports an operation against a node id that is not
// present in the graph.
type NodeNotFoundError struct {
	ID NodeID
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %d not found", e.ID)
}

// LinkNotFoundError reports an operation against a link id that is not
// present in the graph.
type LinkNotFoundError struct {
	ID LinkID
}

func (e *LinkNotFoundError) Error() string {
	return fmt.Sprintf("link %d not found", e.ID)
}
