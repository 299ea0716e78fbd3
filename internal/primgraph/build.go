// Package primgraph expands a checked operation graph into primitive ports,
// binds each primitive port to a resource placeholder and traces image
// layouts through the graph.
package primgraph

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
)

const stage = "primgraph"

type builder struct {
	graph      *Graph
	resources  *ids.Sequence
	byParent   map[ir.PortRef][]PortRef
	violations []*ir.Violation
}

// Build builds the primitive port graph of g. Placeholder ids are drawn from
// resources.
func Build(ctx context.Context, g *ir.Graph, resources *ids.Sequence) (*Graph, error) {
	b := &builder{
		graph: &Graph{
			Connections:            []dag.Edge[PortRef]{},
			ImageLayoutTransitions: make(map[PortRef]*ImageLayoutTransition),
			PortResources:          make(map[PortRef]ResourceID),
			Resources:              make(map[ResourceID]ir.TypeKind),
			source:                 g,
			ports:                  make(map[PortRef]*Port),
			byOp:                   make(map[ir.Name][]PortRef),
			graph:                  dag.New[PortRef](),
		},
		resources: resources,
		byParent:  make(map[ir.PortRef][]PortRef),
	}
	if err := b.build(); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("built primitive port graph",
		"ports", len(b.graph.ports),
		"connections", len(b.graph.Connections),
		"resources", len(b.graph.Resources),
	)
	return b.graph, nil
}

func (b *builder) build() error {
	b.expandPorts()
	if err := b.connect(); err != nil {
		return err
	}
	b.mintPlaceholders()
	if len(b.violations) > 0 {
		return ir.ValidationError(b.violations)
	}
	order := b.graph.graph.TopologicalOrder()
	if err := b.propagatePlaceholders(order); err != nil {
		return err
	}
	return b.traceLayouts(order)
}

// expandPorts creates one primitive port per port and leaf.
func (b *builder) expandPorts() {
	for _, op := range b.graph.source.OrderedOperations() {
		for _, p := range op.OrderedPorts() {
			for _, leaf := range p.Type.Tree.Leaves() {
				ref := PortRef{Operation: op.Name, Port: p.Name, Path: leaf.Path.String()}
				b.graph.ports[ref] = &Port{
					Ref:    ref,
					Role:   p.Role,
					Kind:   leaf.Kind,
					Access: p.Access.For(leaf.Path),
					Parent: p,
				}
				b.graph.graph.AddVertex(ref)
				b.graph.byOp[op.Name] = append(b.graph.byOp[op.Name], ref)
				b.byParent[p.Ref()] = append(b.byParent[p.Ref()], ref)
			}
		}
	}
}

// connect mirrors every connection once per leaf path.
func (b *builder) connect() error {
	for _, c := range b.graph.source.Connections {
		from, to := b.byParent[c.From], b.byParent[c.To]
		if len(from) != len(to) {
			return ir.NewInvariantError(stage, "primitive port count mismatch",
				"from", c.From.String(), "to", c.To.String(),
				"fromCount", strconv.Itoa(len(from)), "toCount", strconv.Itoa(len(to)))
		}
		for i := range from {
			if from[i].Path != to[i].Path {
				return ir.NewInvariantError(stage, "primitive port paths differ",
					"from", from[i].String(), "to", to[i].String())
			}
			if err := b.graph.graph.AddEdge(from[i], to[i]); err != nil {
				return ir.NewInvariantError(stage, err.Error())
			}
			b.graph.Connections = append(b.graph.Connections, dag.Edge[PortRef]{From: from[i], To: to[i]})
		}
	}
	return nil
}

// mintPlaceholders binds a fresh placeholder to every producer primitive port.
func (b *builder) mintPlaceholders() {
	for _, ref := range b.graph.graph.Vertices() {
		p := b.graph.ports[ref]
		if p.Role != ir.RoleProducer {
			continue
		}
		if p.Kind == ir.KindImage && p.Access.EnsuresLayout == "" {
			b.violations = append(b.violations, violationProducerMustEnsureLayout(p))
			continue
		}
		id := ResourceID(b.resources.Next())
		b.graph.Resources[id] = p.Kind
		b.graph.PortResources[ref] = id
	}
}

func (b *builder) propagatePlaceholders(order []PortRef) error {
	for _, ref := range order {
		if b.graph.ports[ref].Role == ir.RoleProducer {
			continue
		}
		pred, ok := b.graph.Upstream(ref)
		if !ok {
			return ir.NewInvariantError(stage, "primitive port has no unique predecessor",
				"port", ref.String(), "predecessors", strconv.Itoa(b.graph.graph.InDegree(ref)))
		}
		id, ok := b.graph.PortResources[pred]
		if !ok {
			return ir.NewInvariantError(stage, "predecessor has no placeholder",
				"port", ref.String(), "predecessor", pred.String())
		}
		b.graph.PortResources[ref] = id
	}
	return nil
}

func (b *builder) traceLayouts(order []PortRef) error {
	for _, ref := range order {
		p := b.graph.ports[ref]
		if p.Kind != ir.KindImage {
			continue
		}
		if p.Role == ir.RoleProducer {
			ensured := Unchanged{Layout: p.Access.EnsuresLayout}
			b.graph.ImageLayoutTransitions[ref] = &ImageLayoutTransition{Entry: ensured, Exit: ensured}
			continue
		}

		pred, _ := b.graph.Upstream(ref)
		prev, ok := b.graph.ImageLayoutTransitions[pred]
		if !ok {
			return ir.NewInvariantError(stage, "predecessor has no layout",
				"port", ref.String(), "predecessor", pred.String())
		}
		entry := transition(prev.Exit.After(), p.Access.RequiresLayout)
		var exit LayoutTransition
		switch p.Role {
		case ir.RoleModifier:
			exit = transition(entry.After(), p.Access.EnsuresLayout)
		case ir.RoleConsumer:
			exit = Unchanged{Layout: entry.After()}
		default:
			panic("unreachable")
		}
		b.graph.ImageLayoutTransitions[ref] = &ImageLayoutTransition{Entry: entry, Exit: exit}
	}
	return nil
}

// transition moves from the current layout to want, if want is set and
// differs.
func transition(current, want ir.ImageLayout) LayoutTransition {
	if want == "" || want == current {
		return Unchanged{Layout: current}
	}
	return Changed{From: current, To: want}
}

func violationProducerMustEnsureLayout(p *Port) *ir.Violation {
	return ir.NewViolation(ir.KindProducerMustEnsureImageLayout, p.Parent.Position,
		fmt.Sprintf("Producer port %s writes image %s but does not ensure a layout", p.Parent.Ref(), p.Ref),
		"port", p.Parent.Ref().String(), "path", p.Ref.Path)
}
