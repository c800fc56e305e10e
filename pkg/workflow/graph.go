// Package workflow implements the in-memory workflow graph model: typed
// nodes, slot-addressed links, and the operations that build, edit, and
// inspect them. Graphs are bound to a node type catalog at creation and
// all methods are safe for concurrent use.
package workflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/loomlab/loom/pkg/catalog"
)

// Graph is a named workflow graph. Mutations serialize on an internal
// mutex; accessors hand out detached copies, so callers can never reach
// graph state except through methods.
type Graph struct {
	id          string
	name        string
	description string
	createdAt   time.Time
	catalog     *catalog.Catalog

	mu         sync.Mutex
	nodes      map[NodeID]*Node
	nodeOrder  []NodeID
	links      map[LinkID]*Link
	linkOrder  []LinkID
	nextNodeID NodeID
	nextLinkID LinkID
}

// New creates an empty graph bound to cat.
func New(name, description string, cat *catalog.Catalog) *Graph {
	return &Graph{
		id:          uuid.NewString(),
		name:        name,
		description: description,
		createdAt:   time.Now().UTC(),
		catalog:     cat,
		nodes:       make(map[NodeID]*Node),
		links:       make(map[LinkID]*Link),
		nextNodeID:  1,
		nextLinkID:  1,
	}
}

// Restore rebuilds a graph from previously exported content, keeping the
// supplied node and link ids. The id counters resume past the highest id
// seen, so later additions never collide. Most callers want New plus
// AddNode; Restore exists for the portable codec.
func Restore(name, description string, cat *catalog.Catalog, nodes []Node, links []Link) (*Graph, error) {
	g := New(name, description, cat)
	for i := range nodes {
		n := nodes[i]
		if n.ID <= 0 {
			return nil, fmt.Errorf("invalid node id %d", n.ID)
		}
		if _, dup := g.nodes[n.ID]; dup {
			return nil, fmt.Errorf("duplicate node id %d", n.ID)
		}
		if _, err := cat.Describe(n.Type); err != nil {
			return nil, err
		}
		g.nodes[n.ID] = n.copy()
		g.nodeOrder = append(g.nodeOrder, n.ID)
		if n.ID >= g.nextNodeID {
			g.nextNodeID = n.ID + 1
		}
	}
	for i := range links {
		l := links[i]
		if l.ID <= 0 {
			return nil, fmt.Errorf("invalid link id %d", l.ID)
		}
		if _, dup := g.links[l.ID]; dup {
			return nil, fmt.Errorf("duplicate link id %d", l.ID)
		}
		if _, ok := g.nodes[l.FromNode]; !ok {
			return nil, fmt.Errorf("link %d references missing node %d", l.ID, l.FromNode)
		}
		if _, ok := g.nodes[l.ToNode]; !ok {
			return nil, fmt.Errorf("link %d references missing node %d", l.ID, l.ToNode)
		}
		lc := l
		g.links[l.ID] = &lc
		g.linkOrder = append(g.linkOrder, l.ID)
		if l.ID >= g.nextLinkID {
			g.nextLinkID = l.ID + 1
		}
	}
	return g, nil
}

// ID returns the graph's stable identifier.
func (g *Graph) ID() string { return g.id }

// Name returns the graph's display name.
func (g *Graph) Name() string { return g.name }

// Description returns the graph's description.
func (g *Graph) Description() string { return g.description }

// CreatedAt returns the graph's creation time.
func (g *Graph) CreatedAt() time.Time { return g.createdAt }

// Catalog returns the node type catalog the graph was built against.
func (g *Graph) Catalog() *catalog.Catalog { return g.catalog }

// AddNode appends a node of the given type. Params start from the type's
// declared defaults with overrides layered on top (override keys win).
// A nil pos places the node on the auto-layout grid.
func (g *Graph) AddNode(typeName string, pos *Position, overrides map[string]any) (*Node, error) {
	nt, err := g.catalog.Describe(typeName)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextNodeID
	g.nextNodeID++

	p := AutoPosition(id)
	if pos != nil {
		p = *pos
	}

	params := nt.Defaults
	if params == nil {
		params = make(map[string]any)
	}
	for k, v := range overrides {
		params[k] = deepCopyValue(v)
	}

	n := &Node{ID: id, Type: typeName, Pos: p, Params: params}
	g.nodes[id] = n
	g.nodeOrder = append(g.nodeOrder, id)
	return n.copy(), nil
}

// AutoPosition returns the default placement for a node id: a 3-column
// grid filled left to right, top to bottom.
func AutoPosition(id NodeID) Position {
	col := (int(id) - 1) % 3
	row := (int(id) - 1) / 3
	return Position{X: float64(50 + col*400), Y: float64(50 + row*300)}
}

// RemoveNode deletes a node and every link touching it, and reports how
// many links were removed in the cascade.
func (g *Graph) RemoveNode(id NodeID) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return 0, &NodeNotFoundError{ID: id}
	}

	removed := 0
	kept := make([]LinkID, 0, len(g.linkOrder))
	for _, lid := range g.linkOrder {
		l := g.links[lid]
		if l.FromNode == id || l.ToNode == id {
			delete(g.links, lid)
			removed++
			continue
		}
		kept = append(kept, lid)
	}
	g.linkOrder = kept

	delete(g.nodes, id)
	for i, nid := range g.nodeOrder {
		if nid == id {
			g.nodeOrder = append(g.nodeOrder[:i], g.nodeOrder[i+1:]...)
			break
		}
	}
	return removed, nil
}

// UpdateNodeParams merges partial into the node's params. Keys absent
// from partial keep their current values.
func (g *Graph) UpdateNodeParams(id NodeID, partial map[string]any) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	for k, v := range partial {
		n.Params[k] = deepCopyValue(v)
	}
	return n.copy(), nil
}

// Connect creates a typed link from an output slot to an input slot. An
// input slot holds at most one link: if the destination slot is already
// fed, the old link is removed first and returned as replaced so callers
// can surface the displacement.
func (g *Graph) Connect(from NodeID, fromSlot int, to NodeID, toSlot int, dataType string) (link *Link, replaced *Link, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[from]; !ok {
		return nil, nil, &NodeNotFoundError{ID: from}
	}
	if _, ok := g.nodes[to]; !ok {
		return nil, nil, &NodeNotFoundError{ID: to}
	}

	for _, lid := range g.linkOrder {
		l := g.links[lid]
		if l.ToNode == to && l.ToSlot == toSlot {
			old := *l
			replaced = &old
			g.removeLinkLocked(lid)
			break
		}
	}

	id := g.nextLinkID
	g.nextLinkID++
	l := &Link{ID: id, FromNode: from, FromSlot: fromSlot, ToNode: to, ToSlot: toSlot, Type: dataType}
	g.links[id] = l
	g.linkOrder = append(g.linkOrder, id)

	lc := *l
	return &lc, replaced, nil
}

// Disconnect removes a link by id.
func (g *Graph) Disconnect(id LinkID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.links[id]; !ok {
		return &LinkNotFoundError{ID: id}
	}
	g.removeLinkLocked(id)
	return nil
}

func (g *Graph) removeLinkLocked(id LinkID) {
	delete(g.links, id)
	for i, lid := range g.linkOrder {
		if lid == id {
			g.linkOrder = append(g.linkOrder[:i], g.linkOrder[i+1:]...)
			break
		}
	}
}

// Node returns a copy of the node with the given id.
func (g *Graph) Node(id NodeID) (*Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}
	return n.copy(), nil
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Node, 0, len(g.nodeOrder))
	for _, id := range g.nodeOrder {
		out = append(out, g.nodes[id].copy())
	}
	return out
}

// Links returns copies of all links in insertion order.
func (g *Graph) Links() []*Link {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*Link, 0, len(g.linkOrder))
	for _, id := range g.linkOrder {
		lc := *g.links[id]
		out = append(out, &lc)
	}
	return out
}

// NodeInfo returns a node together with its incident links.
func (g *Graph) NodeInfo(id NodeID) (*NodeInfo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes[id]
	if !ok {
		return nil, &NodeNotFoundError{ID: id}
	}

	info := &NodeInfo{Node: *n.copy(), Outgoing: []Link{}, Incoming: []Link{}}
	for _, lid := range g.linkOrder {
		l := g.links[lid]
		if l.FromNode == id {
			info.Outgoing = append(info.Outgoing, *l)
		}
		if l.ToNode == id {
			info.Incoming = append(info.Incoming, *l)
		}
	}
	return info, nil
}

// Summary returns a digest of the graph: counts, node types, and a
// readable connection list.
func (g *Graph) Summary() Summary {
	g.mu.Lock()
	defer g.mu.Unlock()

	s := Summary{
		ID:          g.id,
		Name:        g.name,
		Description: g.description,
		Nodes:       len(g.nodes),
		Links:       len(g.links),
		NodeTypes:   make(map[string]int),
		Connections: make([]string, 0, len(g.linkOrder)),
	}
	for _, id := range g.nodeOrder {
		s.NodeTypes[g.nodes[id].Type]++
	}
	for _, lid := range g.linkOrder {
		l := g.links[lid]
		s.Connections = append(s.Connections,
			fmt.Sprintf("%d:%d -> %d:%d (%s)", l.FromNode, l.FromSlot, l.ToNode, l.ToSlot, l.Type))
	}
	return s
}

// Counts reports the number of nodes and links.
func (g *Graph) Counts() (nodes, links int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.nodes), len(g.links)
}

// Snapshot returns a content fingerprint that is independent of internal
// ordering: equal structure, params, and positions produce equal
// snapshots. Identity fields (graph id, name) are excluded so a graph can
// be compared with its clone.
func (g *Graph) Snapshot() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	nodeIDs := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		nodeIDs = append(nodeIDs, int(id))
	}
	sort.Ints(nodeIDs)

	linkIDs := make([]int, 0, len(g.links))
	for id := range g.links {
		linkIDs = append(linkIDs, int(id))
	}
	sort.Ints(linkIDs)

	var b strings.Builder
	for _, id := range nodeIDs {
		data, _ := json.Marshal(g.nodes[NodeID(id)])
		b.Write(data)
		b.WriteByte('\n')
	}
	for _, id := range linkIDs {
		data, _ := json.Marshal(g.links[LinkID(id)])
		b.Write(data)
		b.WriteByte('\n')
	}
	return b.String()
}
