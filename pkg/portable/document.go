// Package portable converts workflow graphs to and from the portable
// API-format JSON understood by external execution engines: a flat object
// keyed by node id, each node carrying class_type and an inputs map that
// mixes literal params with [nodeID, slot] connection references.
package portable

import (
	"bytes"
	"encoding/json"

	"github.com/kaptinlin/jsonrepair"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/loomlab/loom/pkg/workflow"
)

// DocMeta is the reserved top-level "_meta" block identifying the
// document.
type DocMeta struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedWith string `json:"created_with,omitempty"`
	Version     string `json:"version,omitempty"`
}

// NodeMeta is the per-node "_meta" block. Pos is a display hint only.
type NodeMeta struct {
	Pos *workflow.Position `json:"pos,omitempty"`
}

// DocNode is one node entry in a portable document.
type DocNode struct {
	ClassType string                              `json:"class_type"`
	Inputs    *orderedmap.OrderedMap[string, any] `json:"inputs"`
	Meta      *NodeMeta                           `json:"_meta,omitempty"`
}

// Document is the decoded form of a portable workflow file. Node entries
// keep their document order; the reserved "_meta" key is split out into
// Meta and always serializes last.
type Document struct {
	Nodes *orderedmap.OrderedMap[string, DocNode]
	Meta  DocMeta
}

// MarshalJSON renders the document with node keys in insertion order
// followed by the "_meta" block.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for pair := d.Nodes.Oldest(); pair != nil; pair = pair.Next() {
		key, err := json.Marshal(pair.Key)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(pair.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
		buf.WriteByte(',')
	}
	meta, err := json.Marshal(d.Meta)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"_meta":`)
	buf.Write(meta)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a portable document, preserving node key order.
func (d *Document) UnmarshalJSON(data []byte) error {
	top := orderedmap.New[string, json.RawMessage]()
	if err := json.Unmarshal(data, top); err != nil {
		return err
	}

	d.Nodes = orderedmap.New[string, DocNode]()
	d.Meta = DocMeta{}
	for pair := top.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Key == "_meta" {
			if err := json.Unmarshal(pair.Value, &d.Meta); err != nil {
				return err
			}
			continue
		}
		var n DocNode
		if err := json.Unmarshal(pair.Value, &n); err != nil {
			return err
		}
		d.Nodes.Set(pair.Key, n)
	}
	return nil
}

// Parse decodes strict JSON into a document. It never repairs; pair it
// with Repair when lenient input handling is wanted.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(err, "invalid JSON")
	}
	return &doc, nil
}

// Repair runs a lenient repair pass over almost-JSON (trailing commas,
// unquoted keys, code fences) and returns strict JSON. Opt-in: loaders
// only call it when asked to.
func Repair(data []byte) ([]byte, error) {
	fixed, err := jsonrepair.JSONRepair(string(data))
	if err != nil {
		return nil, malformed(err, "unrepairable JSON")
	}
	return []byte(fixed), nil
}
