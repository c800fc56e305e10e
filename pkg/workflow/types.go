package workflow

import "encoding/json"

// NodeID identifies a node within a single graph. IDs start at 1, grow
// monotonically, and are never reused, so references in logs and exported
// documents stay unambiguous across removals.
type NodeID int

// LinkID identifies a link within a single graph. Same allocation rules
// as NodeID.
type LinkID int

// Position is a canvas placement hint for visual editors. It carries no
// execution meaning.
type Position struct {
	X float64
	Y float64
}

// MarshalJSON encodes the position as a two-element [x, y] array.
func (p Position) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON decodes a [x, y] array.
func (p *Position) UnmarshalJSON(data []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(data, &arr); err != nil {
		return err
	}
	p.X, p.Y = arr[0], arr[1]
	return nil
}

// Node is one configured step in a workflow graph.
type Node struct {
	ID     NodeID         `json:"id"`
	Type   string         `json:"type"`
	Pos    Position       `json:"pos"`
	Params map[string]any `json:"params"`
}

// copy returns a detached deep copy of the node.
func (n *Node) copy() *Node {
	c := *n
	c.Params = deepCopyMap(n.Params)
	return &c
}

// Link is a typed, directed connection from a node's output slot to
// another node's input slot.
type Link struct {
	ID       LinkID `json:"id"`
	FromNode NodeID `json:"from_node"`
	FromSlot int    `json:"from_slot"`
	ToNode   NodeID `json:"to_node"`
	ToSlot   int    `json:"to_slot"`
	Type     string `json:"type"`
}

// NodeInfo pairs a node with its incident links. Outgoing links leave the
// node's output slots; incoming links feed its input slots.
type NodeInfo struct {
	Node     Node   `json:"node"`
	Outgoing []Link `json:"connected_to"`
	Incoming []Link `json:"connected_from"`
}

// Summary is a human-oriented digest of a graph.
type Summary struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Nodes       int            `json:"nodes"`
	Links       int            `json:"links"`
	NodeTypes   map[string]int `json:"node_types"`
	Connections []string       `json:"connections"`
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return t
	}
}
