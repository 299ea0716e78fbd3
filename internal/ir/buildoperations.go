package ir

import (
	"slices"
	"strings"

	"github.com/hanpama/rendergraph/internal/language"
)

// buildOperations builds the operations of the entry package. Imported
// packages only contribute types.
func (b *builder) buildOperations() {
	ps := b.packages[b.entry]
	for _, lop := range ps.doc.Operations {
		if ps.ops[lop.Name] != lop {
			continue
		}
		op := &Operation{
			Name:     Name(lop.Name),
			Ports:    make(map[Name]*Port),
			Position: lop.Position,
		}
		queue, err := ParseQueueCategory(lop.Queue)
		if err != nil {
			b.addViolation(violationInvalidKeyword("queue category", lop.Queue, lop.Position))
		}
		op.Queue = queue
		for _, lp := range lop.Ports {
			b.buildPort(ps, op, lp)
		}
		b.graph.Operations[op.Name] = op
	}

	// Vertices are inserted by name so that traversal ties resolve by name.
	names := make([]Name, 0, len(b.graph.Operations))
	for n := range b.graph.Operations {
		names = append(names, n)
	}
	slices.SortFunc(names, func(a, b Name) int { return strings.Compare(string(a), string(b)) })
	for _, n := range names {
		op := b.graph.Operations[n]
		b.graph.operations.AddVertex(n)
		for _, p := range op.OrderedPorts() {
			b.graph.ports.AddVertex(p.Ref())
		}
	}
}

func (b *builder) buildPort(ps *pkgState, op *Operation, lp *language.Port) {
	name, err := ParseName(lp.Name)
	if err != nil {
		b.addViolation(violationInvalidName("port", lp.Name, lp.Position))
		return
	}
	if _, dup := op.Ports[name]; dup {
		b.addViolation(violationDuplicateName("port", lp.Name, string(op.Name), lp.Position))
		return
	}
	port := &Port{
		Operation: op.Name,
		Name:      name,
		TypeName:  lp.Type,
		Position:  lp.Position,
	}
	op.Ports[name] = port

	role, err := ParseRole(lp.Role)
	if err != nil {
		b.addViolation(violationInvalidKeyword("port role", lp.Role, lp.Position))
	}
	port.Role = role
	if role == RoleConsumer && lp.EnsuresLayout != nil {
		b.addViolation(violationConsumerEnsuresLayout(port.Ref(), lp.EnsuresLayout.Position))
	}

	decl := b.resolveType(ps, lp.Type, lp.Position)
	if decl == nil {
		return
	}
	port.Type = decl
	port.TypeName = decl.QualifiedName()
	access, violations := NewAccessSet(port.Ref(), decl.Tree, lp)
	b.addViolation(violations...)
	port.Access = access
}
