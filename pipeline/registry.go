package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Constructor builds one node instance.
type Constructor func() Node

// Registration binds a node identifier to its constructor. The identifier is
// canonical: dependencies everywhere are expressed as these strings, never as
// type references.
type Registration struct {
	Name string
	New  Constructor
}

// Registry is an explicit, immutable table of node constructors built once at
// process configuration time. It is never populated through hidden side
// effects of type definition, so tests can construct isolated registries.
type Registry struct {
	byName map[string]Constructor
}

// NewRegistry validates the registrations and builds a registry. A duplicate,
// empty or malformed identifier is a configuration error that must abort
// process startup.
func NewRegistry(regs []Registration) (*Registry, error) {
	byName := make(map[string]Constructor, len(regs))
	for _, reg := range regs {
		if reg.Name == "" || strings.TrimSpace(reg.Name) != reg.Name {
			return nil, fmt.Errorf("malformed node identifier %q", reg.Name)
		}
		if reg.New == nil {
			return nil, fmt.Errorf("node %q has no constructor", reg.Name)
		}
		if _, exists := byName[reg.Name]; exists {
			return nil, fmt.Errorf("node identifier %q is already registered", reg.Name)
		}
		node := reg.New()
		if node == nil {
			return nil, fmt.Errorf("constructor for node %q returned nil", reg.Name)
		}
		if node.Name() != reg.Name {
			return nil, fmt.Errorf("node registered as %q reports identifier %q", reg.Name, node.Name())
		}
		byName[reg.Name] = reg.New
	}
	return &Registry{byName: byName}, nil
}

// New constructs a fresh instance of the named node.
func (r *Registry) New(name string) (Node, error) {
	ctor, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", name)
	}
	return ctor(), nil
}

// Build constructs the named nodes in the given order, the shape the
// orchestrator consumes.
func (r *Registry) Build(names []string) ([]Node, error) {
	nodes := make([]Node, 0, len(names))
	for _, name := range names {
		node, err := r.New(name)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Names returns the registered identifiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
