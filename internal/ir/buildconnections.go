package ir

import (
	"errors"

	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/language"
)

func (b *builder) buildConnections() {
	ps := b.packages[b.entry]
	for _, lc := range ps.doc.Connections {
		from, fromOK := b.endpoint(lc.From, lc.Position)
		to, toOK := b.endpoint(lc.To, lc.Position)
		if !fromOK || !toOK {
			continue
		}
		if b.connect(from, to, lc.Position) {
			b.graph.Connections = append(b.graph.Connections, &Connection{From: from, To: to})
		}
	}
}

func (b *builder) endpoint(raw string, pos *language.Position) (PortRef, bool) {
	ref, err := ParsePortRef(raw)
	if err != nil {
		b.addViolation(violationInvalidPortReference(raw, err, pos))
		return PortRef{}, false
	}
	op, ok := b.graph.Operations[ref.Operation]
	if !ok {
		b.addViolation(violationNonexistentOperation(ref, pos))
		return PortRef{}, false
	}
	if _, ok := op.Ports[ref.Port]; !ok {
		b.addViolation(violationNonexistentPort(ref, pos))
		return PortRef{}, false
	}
	return ref, true
}

func (b *builder) connect(from, to PortRef, pos *language.Position) bool {
	src, dst := b.graph.Port(from), b.graph.Port(to)
	ok := true
	if !src.Role.IsSource() {
		b.addViolation(violationWrongDirection(from, src.Role, "source", pos))
		ok = false
	}
	if !dst.Role.IsTarget() {
		b.addViolation(violationWrongDirection(to, dst.Role, "target", pos))
		ok = false
	}
	if b.graph.ports.OutDegree(from) > 0 {
		b.addViolation(violationAlreadyConnected(from, "outgoing", pos))
		ok = false
	}
	if b.graph.ports.InDegree(to) > 0 {
		b.addViolation(violationAlreadyConnected(to, "incoming", pos))
		ok = false
	}
	if src.Type != dst.Type {
		b.addViolation(violationTypeIncompatible(from, to, src.TypeName, dst.TypeName, pos))
		ok = false
	}
	if !ok {
		return false
	}

	// Operations are the unit of scheduling, so acyclicity is checked on the
	// operation graph; it implies acyclicity of the port graph.
	if err := b.graph.operations.AddEdge(from.Operation, to.Operation); err != nil {
		var cycle *dag.CycleError[Name]
		if errors.As(err, &cycle) {
			b.addViolation(violationCyclicConnection(from, to, cycle.Path, pos))
			return false
		}
		panic(err)
	}
	if err := b.graph.ports.AddEdge(from, to); err != nil {
		panic(err)
	}
	return true
}

func (b *builder) checkCardinality() {
	for _, op := range b.graph.OrderedOperations() {
		for _, p := range op.OrderedPorts() {
			ref := p.Ref()
			degree := b.graph.ports.InDegree(ref) + b.graph.ports.OutDegree(ref)
			if degree != p.Role.Cardinality() {
				b.addViolation(violationWrongCardinality(p, degree))
			}
		}
	}
}
