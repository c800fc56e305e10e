// Package session owns the live set of workflow graphs shared by
// collaborating agents, plus the active-workflow pointer that lets
// operations omit an explicit workflow id.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/loomlab/loom/pkg/catalog"
	"github.com/loomlab/loom/pkg/oplog"
	"github.com/loomlab/loom/pkg/portable"
	"github.com/loomlab/loom/pkg/workflow"
)

// DefaultName is used when a workflow is created without a name.
const DefaultName = "Untitled"

// GraphNotFoundError reports a workflow id that is not registered in the
// session.
type GraphNotFoundError struct {
	ID string
}

func (e *GraphNotFoundError) Error() string {
	return fmt.Sprintf("workflow %q not found", e.ID)
}

// ErrNoActiveGraph is returned when an operation defaults to the active
// workflow and none is set.
var ErrNoActiveGraph = errors.New("no active workflow")

// Summary describes one registered workflow.
type Summary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Nodes       int    `json:"nodes"`
	Links       int    `json:"links"`
	Active      bool   `json:"active"`
}

// Manager registers workflow graphs and tracks the active one. Its lock
// covers only the registry and the active pointer: graph mutations
// serialize on each graph's own mutex, and file I/O runs outside any
// lock, so a slow save never blocks work on other workflows.
type Manager struct {
	catalog *catalog.Catalog
	log     *oplog.Log

	mu       sync.RWMutex
	graphs   map[string]*workflow.Graph
	order    []string
	activeID string
}

// NewManager builds an empty session over cat. A nil log defaults to a
// no-op operation log.
func NewManager(cat *catalog.Catalog, log *oplog.Log) *Manager {
	if log == nil {
		log = oplog.New(nil, nil, nil)
	}
	return &Manager{
		catalog: cat,
		log:     log,
		graphs:  make(map[string]*workflow.Graph),
	}
}

// Catalog returns the node type catalog the session builds graphs
// against.
func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// Create registers a new empty workflow and returns its id. The first
// workflow registered becomes active.
func (m *Manager) Create(name, description string) string {
	if name == "" {
		name = DefaultName
	}
	g := workflow.New(name, description, m.catalog)

	m.mu.Lock()
	m.graphs[g.ID()] = g
	m.order = append(m.order, g.ID())
	if m.activeID == "" {
		m.activeID = g.ID()
	}
	m.mu.Unlock()

	m.log.Info("workflow_create", g.ID(), fmt.Sprintf("created workflow %q", name),
		map[string]any{"name": name})
	return g.ID()
}

// Get returns the workflow with the given id.
func (m *Manager) Get(id string) (*workflow.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.graphs[id]
	if !ok {
		return nil, &GraphNotFoundError{ID: id}
	}
	return g, nil
}

// Resolve returns the workflow with the given id, or the active workflow
// when id is empty.
func (m *Manager) Resolve(id string) (*workflow.Graph, error) {
	if id != "" {
		return m.Get(id)
	}
	return m.Active()
}

// Active returns the active workflow.
func (m *Manager) Active() (*workflow.Graph, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.activeID == "" {
		return nil, ErrNoActiveGraph
	}
	return m.graphs[m.activeID], nil
}

// ActiveID returns the active workflow id, or "" when none is set.
func (m *Manager) ActiveID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.activeID
}

// SetActive marks the given workflow active.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	_, ok := m.graphs[id]
	if ok {
		m.activeID = id
	}
	m.mu.Unlock()

	if !ok {
		return &GraphNotFoundError{ID: id}
	}
	m.log.Info("workflow_set_active", id, "switched active workflow", nil)
	return nil
}

// Delete removes a workflow. Deleting the active workflow moves the
// pointer to the oldest survivor, or clears it when none remain.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	g, ok := m.graphs[id]
	if !ok {
		m.mu.Unlock()
		return &GraphNotFoundError{ID: id}
	}
	delete(m.graphs, id)
	for i, gid := range m.order {
		if gid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	if m.activeID == id {
		m.activeID = ""
		if len(m.order) > 0 {
			m.activeID = m.order[0]
		}
	}
	next := m.activeID
	m.mu.Unlock()

	m.log.Info("workflow_delete", id, fmt.Sprintf("deleted workflow %q", g.Name()),
		map[string]any{"next_active": next})
	return nil
}

// List returns summaries of all workflows in creation order.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	graphs := make([]*workflow.Graph, 0, len(m.order))
	for _, id := range m.order {
		graphs = append(graphs, m.graphs[id])
	}
	active := m.activeID
	m.mu.RUnlock()

	out := make([]Summary, 0, len(graphs))
	for _, g := range graphs {
		nodes, links := g.Counts()
		out = append(out, Summary{
			ID:          g.ID(),
			Name:        g.Name(),
			Description: g.Description(),
			Nodes:       nodes,
			Links:       links,
			Active:      g.ID() == active,
		})
	}
	return out
}

// Clone deep-copies a workflow and registers the copy under a fresh id.
// An empty id clones the active workflow. The active pointer is untouched.
func (m *Manager) Clone(id, newName string) (string, error) {
	src, err := m.Resolve(id)
	if err != nil {
		return "", err
	}
	c := src.Clone(newName)

	m.mu.Lock()
	m.graphs[c.ID()] = c
	m.order = append(m.order, c.ID())
	m.mu.Unlock()

	m.log.Info("workflow_clone", c.ID(), fmt.Sprintf("cloned workflow %q as %q", src.Name(), c.Name()),
		map[string]any{"source": src.ID()})
	return c.ID(), nil
}

// Load reads a portable document from path and registers it. The loaded
// workflow becomes active when setActive is set, or when nothing was
// active. With repair, almost-JSON input is repaired before parsing.
func (m *Manager) Load(ctx context.Context, path string, setActive, repair bool) (string, error) {
	g, err := portable.ReadFile(ctx, path, m.catalog, repair)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	m.graphs[g.ID()] = g
	m.order = append(m.order, g.ID())
	if setActive || m.activeID == "" {
		m.activeID = g.ID()
	}
	m.mu.Unlock()

	nodes, links := g.Counts()
	m.log.Info("workflow_load", g.ID(), fmt.Sprintf("loaded workflow %q from %s", g.Name(), path),
		map[string]any{"path": path, "nodes": nodes, "links": links})
	return g.ID(), nil
}

// Save writes a workflow to path as a portable document. An empty id
// saves the active workflow.
func (m *Manager) Save(ctx context.Context, id, path string) error {
	g, err := m.Resolve(id)
	if err != nil {
		return err
	}
	if err := portable.WriteFile(ctx, g, path); err != nil {
		return err
	}

	m.log.Info("workflow_save", g.ID(), fmt.Sprintf("saved workflow %q to %s", g.Name(), path),
		map[string]any{"path": path})
	return nil
}

// Stats reports registry-wide totals. It backs the metrics collector.
func (m *Manager) Stats() (workflows, nodes, links int) {
	m.mu.RLock()
	graphs := make([]*workflow.Graph, 0, len(m.order))
	for _, id := range m.order {
		graphs = append(graphs, m.graphs[id])
	}
	m.mu.RUnlock()

	for _, g := range graphs {
		n, l := g.Counts()
		nodes += n
		links += l
	}
	return len(graphs), nodes, links
}

// Log returns the operation log the session records to.
func (m *Manager) Log() *oplog.Log { return m.log }
