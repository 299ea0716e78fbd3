package ir

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/language"
)

// Graph is the checked operation graph of one entry package.
type Graph struct {
	Entry       string              `json:"entry"`
	Packages    map[string]*Package `json:"packages"`
	Operations  map[Name]*Operation `json:"operations"`
	Connections []*Connection       `json:"connections"`

	ports      *dag.Graph[PortRef]
	operations *dag.Graph[Name]
}

type Package struct {
	Name    string             `json:"name"`
	File    string             `json:"file,omitempty"`
	Imports []string           `json:"imports"`
	Types   map[Name]*TypeDecl `json:"types"`
}

type TypeKind string

const (
	KindBuffer       TypeKind = "buffer"
	KindImage        TypeKind = "image"
	KindRecord       TypeKind = "record"
	KindRenderTarget TypeKind = "render_target"
)

// IsPrimitive reports whether values of the kind are indivisible resources.
func (k TypeKind) IsPrimitive() bool { return k == KindBuffer || k == KindImage }

// TypeDecl is a checked type declaration. Two ports have the same type only
// if they point at the same *TypeDecl.
type TypeDecl struct {
	Package string    `json:"package,omitempty"`
	Name    Name      `json:"name"`
	Kind    TypeKind  `json:"kind"`
	Fields  []*Member `json:"fields,omitempty"`
	Colors  []*Member `json:"colors,omitempty"`
	Depth   *Member   `json:"depth,omitempty"`

	Tree *PrimitiveTree `json:"-"`
}

// QualifiedName is "pkg.Name", or the bare name of a built-in.
func (d *TypeDecl) QualifiedName() string {
	if d.Package == "" {
		return string(d.Name)
	}
	return d.Package + "." + string(d.Name)
}

// Members returns the composite members in tree order: record fields, or
// color attachments followed by the depth attachment.
func (d *TypeDecl) Members() []*Member {
	switch d.Kind {
	case KindBuffer, KindImage:
		return nil
	case KindRecord:
		return d.Fields
	case KindRenderTarget:
		if d.Depth == nil {
			return d.Colors
		}
		return append(slices.Clone(d.Colors), d.Depth)
	default:
		panic("unreachable")
	}
}

func (d *TypeDecl) member(n Name) *Member {
	for _, m := range d.Members() {
		if m.Name == n {
			return m
		}
	}
	return nil
}

type Member struct {
	Name Name      `json:"name"`
	Type string    `json:"type"`
	Decl *TypeDecl `json:"-"`
}

type Operation struct {
	Name     Name               `json:"name"`
	Queue    QueueCategory      `json:"queue"`
	Ports    map[Name]*Port     `json:"ports"`
	Position *language.Position `json:"-"`
}

// OrderedPorts returns the ports sorted by name.
func (o *Operation) OrderedPorts() []*Port {
	ports := make([]*Port, 0, len(o.Ports))
	for _, p := range o.Ports {
		ports = append(ports, p)
	}
	slices.SortFunc(ports, func(a, b *Port) int { return strings.Compare(string(a.Name), string(b.Name)) })
	return ports
}

type Port struct {
	Operation Name       `json:"operation"`
	Name      Name       `json:"name"`
	Role      Role       `json:"role"`
	TypeName  string     `json:"type"`
	Access    *AccessSet `json:"access"`

	Type     *TypeDecl          `json:"-"`
	Position *language.Position `json:"-"`
}

func (p *Port) Ref() PortRef { return PortRef{Operation: p.Operation, Port: p.Name} }

// PortRef identifies a port as "operation.port".
type PortRef struct {
	Operation Name
	Port      Name
}

func ParsePortRef(s string) (PortRef, error) {
	opName, portName, ok := strings.Cut(s, ".")
	if !ok || strings.Contains(portName, ".") {
		return PortRef{}, fmt.Errorf("port reference %q must have the form operation.port", s)
	}
	op, err := ParseName(opName)
	if err != nil {
		return PortRef{}, err
	}
	port, err := ParseName(portName)
	if err != nil {
		return PortRef{}, err
	}
	return PortRef{Operation: op, Port: port}, nil
}

func (r PortRef) String() string { return string(r.Operation) + "." + string(r.Port) }

func (r PortRef) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *PortRef) UnmarshalText(b []byte) error {
	parsed, err := ParsePortRef(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type Connection struct {
	From PortRef `json:"from"`
	To   PortRef `json:"to"`
}

// Port looks up a port by reference.
func (g *Graph) Port(ref PortRef) *Port {
	op, ok := g.Operations[ref.Operation]
	if !ok {
		return nil
	}
	return op.Ports[ref.Port]
}

// OrderedOperations returns the operations in dependency order, ties broken
// by name.
func (g *Graph) OrderedOperations() []*Operation {
	names := g.operations.TopologicalOrder()
	ops := make([]*Operation, len(names))
	for i, n := range names {
		ops[i] = g.Operations[n]
	}
	return ops
}

// Upstream returns the port connected to the target side of ref, if any.
func (g *Graph) Upstream(ref PortRef) (PortRef, bool) {
	preds := g.ports.Predecessors(ref)
	if len(preds) == 0 {
		return PortRef{}, false
	}
	return preds[0], true
}

// Downstream returns the port connected to the source side of ref, if any.
func (g *Graph) Downstream(ref PortRef) (PortRef, bool) {
	succs := g.ports.Successors(ref)
	if len(succs) == 0 {
		return PortRef{}, false
	}
	return succs[0], true
}
