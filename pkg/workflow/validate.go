package workflow

import "fmt"

// Issue codes reported by Validate.
const (
	IssueDanglingLink     = "dangling_link"
	IssueDisconnectedNode = "disconnected_node"
	IssueUnconnectedInput = "unconnected_input"
)

// Issue is a single validation finding. NodeID, LinkID, and Port are set
// when they identify the offender.
type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	NodeID  NodeID `json:"node_id,omitempty"`
	LinkID  LinkID `json:"link_id,omitempty"`
	Port    string `json:"port,omitempty"`
}

// Report is the outcome of validating a graph. Valid means no errors;
// warnings never affect validity.
type Report struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Validate checks the graph's structure against its catalog. It always
// runs every check and reports findings instead of failing:
//
//   - dangling_link (error): a link endpoint references a missing node
//   - disconnected_node (warning): a node with no links at all
//   - unconnected_input (warning): a required input port with no feed
func (g *Graph) Validate() Report {
	g.mu.Lock()
	defer g.mu.Unlock()

	report := Report{Errors: []Issue{}, Warnings: []Issue{}}

	connected := make(map[NodeID]bool)
	fed := make(map[NodeID]map[int]bool)
	for _, lid := range g.linkOrder {
		l := g.links[lid]
		if _, ok := g.nodes[l.FromNode]; !ok {
			report.Errors = append(report.Errors, Issue{
				Code:    IssueDanglingLink,
				Message: fmt.Sprintf("link %d references missing node %d", l.ID, l.FromNode),
				NodeID:  l.FromNode,
				LinkID:  l.ID,
			})
		} else {
			connected[l.FromNode] = true
		}
		if _, ok := g.nodes[l.ToNode]; !ok {
			report.Errors = append(report.Errors, Issue{
				Code:    IssueDanglingLink,
				Message: fmt.Sprintf("link %d references missing node %d", l.ID, l.ToNode),
				NodeID:  l.ToNode,
				LinkID:  l.ID,
			})
		} else {
			connected[l.ToNode] = true
			if fed[l.ToNode] == nil {
				fed[l.ToNode] = make(map[int]bool)
			}
			fed[l.ToNode][l.ToSlot] = true
		}
	}

	for _, nid := range g.nodeOrder {
		n := g.nodes[nid]
		if !connected[nid] {
			report.Warnings = append(report.Warnings, Issue{
				Code:    IssueDisconnectedNode,
				Message: fmt.Sprintf("node %d (%s) has no connections", nid, n.Type),
				NodeID:  nid,
			})
		}

		nt, err := g.catalog.Describe(n.Type)
		if err != nil {
			continue
		}
		for slot, port := range nt.Inputs {
			if !port.Required || fed[nid][slot] {
				continue
			}
			report.Warnings = append(report.Warnings, Issue{
				Code:    IssueUnconnectedInput,
				Message: fmt.Sprintf("node %d (%s) required input %q is not connected", nid, n.Type, port.Name),
				NodeID:  nid,
				Port:    port.Name,
			})
		}
	}

	report.Valid = len(report.Errors) == 0
	return report
}
