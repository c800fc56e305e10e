package workflow

// Clone returns an independent deep copy of the graph under a fresh
// identity. Nodes and links are renumbered from 1 in insertion order and
// link endpoints are remapped to the new node ids; none of the source ids
// survive. When newName is empty the copy is named "<name> (Copy)".
func (g *Graph) Clone(newName string) *Graph {
	g.mu.Lock()
	defer g.mu.Unlock()

	if newName == "" {
		newName = g.name + " (Copy)"
	}
	c := New(newName, g.description, g.catalog)

	idMap := make(map[NodeID]NodeID, len(g.nodeOrder))
	for _, oldID := range g.nodeOrder {
		newID := c.nextNodeID
		c.nextNodeID++
		idMap[oldID] = newID

		cp := g.nodes[oldID].copy()
		cp.ID = newID
		c.nodes[newID] = cp
		c.nodeOrder = append(c.nodeOrder, newID)
	}

	for _, oldID := range g.linkOrder {
		l := g.links[oldID]
		from, okFrom := idMap[l.FromNode]
		to, okTo := idMap[l.ToNode]
		if !okFrom || !okTo {
			continue
		}

		newID := c.nextLinkID
		c.nextLinkID++
		c.links[newID] = &Link{
			ID:       newID,
			FromNode: from,
			FromSlot: l.FromSlot,
			ToNode:   to,
			ToSlot:   l.ToSlot,
			Type:     l.Type,
		}
		c.linkOrder = append(c.linkOrder, newID)
	}

	return c
}
