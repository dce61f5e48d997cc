// Package schema derives class descriptors from the labels and attributes
// of a property graph. Classes describe what a label may carry and which
// relationships may leave it; the store validates against them.
package schema

import (
	"errors"
	"fmt"
	"sort"

	"github.com/agentic-research/ranger/internal/canon"
	"github.com/agentic-research/ranger/internal/graph"
)

var (
	ErrUnknownClass = errors.New("unknown class")
	ErrUndeclared   = errors.New("undeclared property")
)

// Class describes one node label.
type Class struct {
	Name          string
	Base          string   // "" for built-ins
	Properties    []string // sorted
	Relationships map[graph.Relationship]string
}

// Declares reports whether prop is a declared property.
func (c *Class) Declares(prop string) bool {
	i := sort.SearchStrings(c.Properties, prop)
	return i < len(c.Properties) && c.Properties[i] == prop
}

// Validate checks that every attribute of n is declared by c.
func (c *Class) Validate(n *graph.Node) error {
	for k := range n.Attributes {
		if !c.Declares(k) {
			return fmt.Errorf("%s %s: %w %q", c.Name, n.ID, ErrUndeclared, k)
		}
	}
	return nil
}

// Allows reports whether rel may lead from c to a node of class target.
// A target matches by name or by base.
func (c *Class) Allows(rel graph.Relationship, target *Class) bool {
	want, ok := c.Relationships[rel]
	if !ok || target == nil {
		return false
	}
	return target.Name == want || target.Base == want
}

// Declare adds props, keeping Properties sorted and unique.
func (c *Class) Declare(props ...string) {
	for _, p := range props {
		if !c.Declares(p) {
			i := sort.SearchStrings(c.Properties, p)
			c.Properties = append(c.Properties, "")
			copy(c.Properties[i+1:], c.Properties[i:])
			c.Properties[i] = p
		}
	}
}

// Registry maps labels to classes.
type Registry struct {
	classes map[string]*Class
	canon   map[string]string // canonical name -> name
}

// NewRegistry returns a registry holding the built-in classes.
func NewRegistry() *Registry {
	r := &Registry{classes: make(map[string]*Class), canon: make(map[string]string)}
	for _, c := range builtins() {
		r.Add(c)
	}
	return r
}

func builtins() []*Class {
	folder := &Class{Name: graph.LabelFolder, Relationships: map[graph.Relationship]string{
		graph.ContainsFolder: graph.LabelFolder,
		graph.ContainsFile:   graph.LabelFile,
	}}
	folder.Declare("name", "filepath")

	file := &Class{Name: graph.LabelFile}
	file.Declare("name", "filepath", "type", "size", "created", "modified")

	scan := &Class{Name: graph.LabelScan, Relationships: map[graph.Relationship]string{
		graph.StoredIn: graph.LabelFolder,
		graph.Involved: graph.LabelSection,
	}}
	scan.Declare("filepath")

	section := &Class{Name: graph.LabelSection}
	return []*Class{folder, file, scan, section}
}

// Add registers c, replacing a class of the same name.
func (r *Registry) Add(c *Class) {
	r.classes[c.Name] = c
	r.canon[canon.Canonicalize(c.Name)] = c.Name
}

// Lookup finds the class for label. Labels that differ only in spelling
// (spacing, case of inner words, punctuation) resolve to the same class.
func (r *Registry) Lookup(label string) (*Class, bool) {
	if c, ok := r.classes[label]; ok {
		return c, true
	}
	name, ok := r.canon[canon.Canonicalize(label)]
	if !ok {
		return nil, false
	}
	return r.classes[name], true
}

// Classes returns every class sorted by name.
func (r *Registry) Classes() []*Class {
	out := make([]*Class, 0, len(r.classes))
	for _, c := range r.classes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Synthesize builds a registry for g. Each label that is not built in gets
// a class based on Section; every class declares the attribute keys
// observed on its nodes.
func Synthesize(g *graph.PropertyGraph) *Registry {
	r := NewRegistry()
	for _, label := range g.Labels() {
		c, ok := r.classes[label]
		if !ok {
			c = &Class{Name: label, Base: graph.LabelSection}
			r.Add(c)
		}
		for _, n := range g.NodesWithLabel(label) {
			for k := range n.Attributes {
				c.Declare(k)
			}
		}
	}
	return r
}

// Resolve returns the class for label or ErrUnknownClass.
func (r *Registry) Resolve(label string) (*Class, error) {
	if c, ok := r.Lookup(label); ok {
		return c, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownClass, label)
}
