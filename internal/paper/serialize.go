package paper

import (
	"encoding/json"
	"fmt"
)

// Encoded is the serialized form of a Document as stored in the persistent
// tier. The tree is self-describing nested JSON; figures are kept as their
// own field so URL resolution can rewrite them without touching the tree.
type Encoded struct {
	Title        string          `json:"title"`
	Tree         json.RawMessage `json:"tree"`
	Bibliography json.RawMessage `json:"bibliography"`
	Figures      json.RawMessage `json:"figures,omitempty"`
}

// Encode serializes the document. The vector index is never included; it
// lives in its own tier with stricter size limits.
func (d *Document) Encode() (*Encoded, error) {
	tree, err := json.Marshal(d.Root)
	if err != nil {
		return nil, fmt.Errorf("marshal tree: %w", err)
	}
	bib, err := json.Marshal(d.Bibliography)
	if err != nil {
		return nil, fmt.Errorf("marshal bibliography: %w", err)
	}
	enc := &Encoded{Title: d.Title, Tree: tree, Bibliography: bib}
	if len(d.Figures) > 0 {
		figs, err := json.Marshal(d.Figures)
		if err != nil {
			return nil, fmt.Errorf("marshal figures: %w", err)
		}
		enc.Figures = figs
	}
	return enc, nil
}

// Decode reconstructs a Document from its serialized form. Capability flags
// are recomputed from the decoded data, and a stored figures map (which may
// carry resolved URLs) takes precedence over the tree's own copies.
func Decode(enc *Encoded) (*Document, error) {
	var root Section
	if err := json.Unmarshal(enc.Tree, &root); err != nil {
		return nil, fmt.Errorf("unmarshal tree: %w", err)
	}
	bibliography := map[string]string{}
	if len(enc.Bibliography) > 0 {
		if err := json.Unmarshal(enc.Bibliography, &bibliography); err != nil {
			return nil, fmt.Errorf("unmarshal bibliography: %w", err)
		}
	}
	d := New(enc.Title, &root, bibliography)
	if len(enc.Figures) > 0 {
		figures := map[string]*FigureRecord{}
		if err := json.Unmarshal(enc.Figures, &figures); err != nil {
			return nil, fmt.Errorf("unmarshal figures: %w", err)
		}
		d.Figures = figures
	}
	return d, nil
}
