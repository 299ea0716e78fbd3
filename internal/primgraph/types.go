package primgraph

import (
	"encoding/json"
	"strings"

	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ir"
)

// PortRef identifies a primitive port: a port of an operation narrowed to
// one leaf of its type. Path is empty for ports of primitive type.
type PortRef struct {
	Operation ir.Name
	Port      ir.Name
	Path      string
}

func (r PortRef) Parent() ir.PortRef { return ir.PortRef{Operation: r.Operation, Port: r.Port} }

func (r PortRef) String() string {
	if r.Path == "" {
		return r.Parent().String()
	}
	return r.Parent().String() + "." + r.Path
}

func (r PortRef) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *PortRef) UnmarshalText(b []byte) error {
	op, rest, _ := strings.Cut(string(b), ".")
	port, path, _ := strings.Cut(rest, ".")
	*r = PortRef{Operation: ir.Name(op), Port: ir.Name(port), Path: path}
	return nil
}

// ResourceID is the placeholder identity of one primitive resource instance.
type ResourceID uint64

// Port is a primitive port.
type Port struct {
	Ref    PortRef
	Role   ir.Role
	Kind   ir.TypeKind
	Access *ir.Access
	Parent *ir.Port
}

// LayoutTransition is what happens to an image layout at one side of a
// port: either Changed or Unchanged.
type LayoutTransition interface {
	Before() ir.ImageLayout
	After() ir.ImageLayout
	isLayoutTransition()
}

type Changed struct {
	From ir.ImageLayout
	To   ir.ImageLayout
}

func (c Changed) Before() ir.ImageLayout { return c.From }
func (c Changed) After() ir.ImageLayout  { return c.To }
func (Changed) isLayoutTransition()      {}

func (c Changed) MarshalJSON() ([]byte, error) {
	type changed Changed
	return json.Marshal(map[string]changed{"Changed": changed(c)})
}

type Unchanged struct {
	Layout ir.ImageLayout
}

func (u Unchanged) Before() ir.ImageLayout { return u.Layout }
func (u Unchanged) After() ir.ImageLayout  { return u.Layout }
func (Unchanged) isLayoutTransition()      {}

func (u Unchanged) MarshalJSON() ([]byte, error) {
	type unchanged Unchanged
	return json.Marshal(map[string]unchanged{"Unchanged": unchanged(u)})
}

// ImageLayoutTransition is the layout an image leaf has on entry to and exit
// from an operation.
type ImageLayoutTransition struct {
	Entry LayoutTransition
	Exit  LayoutTransition
}

// Graph is the primitive port graph. Exported fields are the serialized form.
type Graph struct {
	Connections            []dag.Edge[PortRef]
	ImageLayoutTransitions map[PortRef]*ImageLayoutTransition
	PortResources          map[PortRef]ResourceID
	Resources              map[ResourceID]ir.TypeKind

	source *ir.Graph
	ports  map[PortRef]*Port
	byOp   map[ir.Name][]PortRef
	graph  *dag.Graph[PortRef]
}

// Source returns the checked graph this graph was built from.
func (g *Graph) Source() *ir.Graph { return g.source }

func (g *Graph) Port(ref PortRef) *Port { return g.ports[ref] }

// PortsOf returns the primitive ports of an operation ordered by port name,
// then by leaf order.
func (g *Graph) PortsOf(op ir.Name) []*Port {
	refs := g.byOp[op]
	out := make([]*Port, len(refs))
	for i, r := range refs {
		out[i] = g.ports[r]
	}
	return out
}

// ResourceFor returns the placeholder bound to a primitive port.
func (g *Graph) ResourceFor(ref PortRef) (ResourceID, bool) {
	id, ok := g.PortResources[ref]
	return id, ok
}

// Transition returns the layout transition of an image primitive port.
func (g *Graph) Transition(ref PortRef) (*ImageLayoutTransition, bool) {
	t, ok := g.ImageLayoutTransitions[ref]
	return t, ok
}

// Upstream returns the primitive port feeding ref.
func (g *Graph) Upstream(ref PortRef) (PortRef, bool) {
	preds := g.graph.Predecessors(ref)
	if len(preds) != 1 {
		return PortRef{}, false
	}
	return preds[0], true
}

// Downstream returns the primitive port fed by ref.
func (g *Graph) Downstream(ref PortRef) (PortRef, bool) {
	succs := g.graph.Successors(ref)
	if len(succs) != 1 {
		return PortRef{}, false
	}
	return succs[0], true
}
