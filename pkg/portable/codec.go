package portable

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/workflow"
)

// Producer identity stamped into exported documents.
const (
	createdWith = "loom"
	docVersion  = "1.0"
)

// Export renders g as a portable document. Node entries appear in
// insertion order; per node, literal params come first in name order,
// then connection references in input slot order. A param whose key
// collides with a declared input port is omitted: on the wire that key
// always means a connection.
func Export(g *workflow.Graph) (*Document, error) {
	cat := g.Catalog()

	incoming := make(map[workflow.NodeID]map[int]*workflow.Link)
	for _, l := range g.Links() {
		if incoming[l.ToNode] == nil {
			incoming[l.ToNode] = make(map[int]*workflow.Link)
		}
		incoming[l.ToNode][l.ToSlot] = l
	}

	doc := &Document{
		Nodes: orderedmap.New[string, DocNode](),
		Meta: DocMeta{
			Name:        g.Name(),
			Description: g.Description(),
			CreatedWith: createdWith,
			Version:     docVersion,
		},
	}

	for _, n := range g.Nodes() {
		nt, err := cat.Describe(n.Type)
		if err != nil {
			return nil, err
		}

		inputs := orderedmap.New[string, any]()

		keys := make([]string, 0, len(n.Params))
		for k := range n.Params {
			if nt.IsInputPort(k) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			inputs.Set(k, n.Params[k])
		}

		slots := make([]int, 0, len(incoming[n.ID]))
		for s := range incoming[n.ID] {
			slots = append(slots, s)
		}
		sort.Ints(slots)
		for _, s := range slots {
			l := incoming[n.ID][s]
			name := fmt.Sprintf("in_%d", s)
			if port, ok := nt.InputPort(s); ok {
				name = port.Name
			}
			inputs.Set(name, []any{strconv.Itoa(int(l.FromNode)), l.FromSlot})
		}

		pos := n.Pos
		doc.Nodes.Set(strconv.Itoa(int(n.ID)), DocNode{
			ClassType: n.Type,
			Inputs:    inputs,
			Meta:      &NodeMeta{Pos: &pos},
		})
	}

	return doc, nil
}

// Import materializes a graph from a portable document. Node ids and
// their document order are preserved, so a later export reproduces the
// document. Keys declared as input ports of the node's class are read as
// [nodeID, slot] references and become links typed by the source class's
// output tag; every other key becomes a literal param. Nodes without a
// position hint fall onto the auto-layout grid.
func Import(doc *Document, cat *catalog.Catalog) (*workflow.Graph, error) {
	type pendingLink struct {
		from     workflow.NodeID
		fromSlot int
		to       workflow.NodeID
		toSlot   int
		inputKey string
	}

	var (
		nodes   []workflow.Node
		pending []pendingLink
	)
	classByID := make(map[workflow.NodeID]catalog.NodeType)

	for pair := doc.Nodes.Oldest(); pair != nil; pair = pair.Next() {
		key := pair.Key
		raw, err := strconv.Atoi(key)
		if err != nil {
			return nil, malformed(err, "node key %q is not an integer", key)
		}
		if raw <= 0 {
			return nil, malformed(nil, "node key %q is not a positive id", key)
		}
		id := workflow.NodeID(raw)

		dn := pair.Value
		if dn.ClassType == "" {
			return nil, malformed(nil, "node %q has no class_type", key)
		}
		nt, err := cat.Describe(dn.ClassType)
		if err != nil {
			return nil, malformed(err, "node %q", key)
		}
		classByID[id] = nt

		params := make(map[string]any)
		if dn.Inputs != nil {
			for in := dn.Inputs.Oldest(); in != nil; in = in.Next() {
				slot, isPort := nt.InputSlot(in.Key)
				if !isPort {
					params[in.Key] = in.Value
					continue
				}
				from, fromSlot, ok := parseRef(in.Value)
				if !ok {
					return nil, malformed(nil, "node %q input %q is not a [node, slot] reference", key, in.Key)
				}
				pending = append(pending, pendingLink{
					from: from, fromSlot: fromSlot,
					to: id, toSlot: slot,
					inputKey: in.Key,
				})
			}
		}

		pos := workflow.AutoPosition(id)
		if dn.Meta != nil && dn.Meta.Pos != nil {
			pos = *dn.Meta.Pos
		}
		nodes = append(nodes, workflow.Node{ID: id, Type: dn.ClassType, Pos: pos, Params: params})
	}

	links := make([]workflow.Link, 0, len(pending))
	for i, p := range pending {
		src, ok := classByID[p.from]
		if !ok {
			return nil, malformed(nil, "node %d input %q references missing node %d", p.to, p.inputKey, p.from)
		}
		out, ok := src.OutputPort(p.fromSlot)
		if !ok {
			return nil, malformed(nil, "node %d input %q references output slot %d of %s, which has %d outputs",
				p.to, p.inputKey, p.fromSlot, src.Name, len(src.Outputs))
		}
		links = append(links, workflow.Link{
			ID:       workflow.LinkID(i + 1),
			FromNode: p.from,
			FromSlot: p.fromSlot,
			ToNode:   p.to,
			ToSlot:   p.toSlot,
			Type:     out.Type,
		})
	}

	g, err := workflow.Restore(doc.Meta.Name, doc.Meta.Description, cat, nodes, links)
	if err != nil {
		return nil, malformed(err, "inconsistent document")
	}
	return g, nil
}

// parseRef reads a [nodeID, slot] connection reference. Node ids arrive
// as decimal strings by convention, but numeric ids are accepted too.
func parseRef(v any) (workflow.NodeID, int, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return 0, 0, false
	}

	var id int
	switch t := arr[0].(type) {
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, 0, false
		}
		id = n
	case float64:
		if t != math.Trunc(t) {
			return 0, 0, false
		}
		id = int(t)
	case int:
		id = t
	default:
		return 0, 0, false
	}
	if id <= 0 {
		return 0, 0, false
	}

	var slot int
	switch t := arr[1].(type) {
	case float64:
		if t != math.Trunc(t) {
			return 0, 0, false
		}
		slot = int(t)
	case int:
		slot = t
	default:
		return 0, 0, false
	}
	if slot < 0 {
		return 0, 0, false
	}

	return workflow.NodeID(id), slot, true
}
