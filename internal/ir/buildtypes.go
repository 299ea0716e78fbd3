package ir

import (
	"slices"
	"strings"

	"github.com/hanpama/rendergraph/internal/language"
)

func (b *builder) checkTypes() {
	for _, name := range b.order {
		ps := b.packages[name]
		for _, t := range ps.doc.Types {
			if ps.decls[t.Name] != t {
				continue
			}
			b.checkType(ps, t, t.Position)
		}
	}
}

// checkType checks a declaration on demand, after the declarations it
// references. b.stack holds the declarations currently being checked.
func (b *builder) checkType(ps *pkgState, t *language.TypeDecl, refPos *language.Position) *TypeDecl {
	name := Name(t.Name)
	if d, ok := ps.pkg.Types[name]; ok {
		return d
	}
	if ps.failed[name] {
		return nil
	}
	qualified := ps.pkg.Name + "." + t.Name
	if i := slices.Index(b.stack, qualified); i >= 0 {
		cycle := append(slices.Clone(b.stack[i:]), qualified)
		b.addViolation(violationCircularTypeDependency(cycle, refPos))
		return nil
	}
	b.stack = append(b.stack, qualified)
	defer func() { b.stack = b.stack[:len(b.stack)-1] }()

	decl := &TypeDecl{Package: ps.pkg.Name, Name: name, Kind: TypeKind(t.Kind)}
	ok := true
	switch t.Kind {
	case language.KindBuffer, language.KindImage:
	case language.KindRecord:
		seen := make(map[string]bool)
		decl.Fields, ok = b.checkMembers(ps, decl, t.Fields, "field", seen)
		if ok && len(decl.Fields) == 0 {
			b.addViolation(violationEmptyComposite(qualified, t.Position))
			ok = false
		}
	case language.KindRenderTarget:
		seen := make(map[string]bool)
		depthOK := true
		var colorsOK bool
		decl.Colors, colorsOK = b.checkMembers(ps, decl, t.Colors, "attachment", seen)
		if t.Depth != nil {
			var depth []*Member
			depth, depthOK = b.checkMembers(ps, decl, []*language.Member{t.Depth}, "attachment", seen)
			if depthOK {
				decl.Depth = depth[0]
			}
		}
		ok = colorsOK && depthOK
		if ok {
			ok = b.checkAttachments(decl, t)
		}
		if ok && len(decl.Colors) == 0 && decl.Depth == nil {
			b.addViolation(violationEmptyComposite(qualified, t.Position))
			ok = false
		}
	default:
		panic("unreachable")
	}
	if !ok {
		ps.failed[name] = true
		return nil
	}

	tree, err := NewPrimitiveTree(decl)
	if err != nil {
		b.addViolation(violationInvalidTree(qualified, err, t.Position))
		ps.failed[name] = true
		return nil
	}
	decl.Tree = tree
	ps.pkg.Types[name] = decl
	return decl
}

func (b *builder) checkMembers(ps *pkgState, decl *TypeDecl, members []*language.Member, what string, seen map[string]bool) ([]*Member, bool) {
	ok := true
	out := make([]*Member, 0, len(members))
	for _, lm := range members {
		n, err := ParseName(lm.Name)
		if err != nil {
			b.addViolation(violationInvalidName(what, lm.Name, lm.Position))
			ok = false
			continue
		}
		if seen[lm.Name] {
			b.addViolation(violationDuplicateName(what, lm.Name, decl.QualifiedName(), lm.Position))
			ok = false
			continue
		}
		seen[lm.Name] = true
		ref := b.resolveType(ps, lm.Type, lm.Position)
		if ref == nil {
			ok = false
			continue
		}
		out = append(out, &Member{Name: n, Type: ref.QualifiedName(), Decl: ref})
	}
	return out, ok
}

// checkAttachments requires every render target attachment to be a
// primitive image.
func (b *builder) checkAttachments(decl *TypeDecl, t *language.TypeDecl) bool {
	positions := make(map[Name]*language.Position)
	for _, m := range t.Colors {
		positions[Name(m.Name)] = m.Position
	}
	if t.Depth != nil {
		positions[Name(t.Depth.Name)] = t.Depth.Position
	}
	ok := true
	for _, m := range decl.Members() {
		switch {
		case !m.Decl.Kind.IsPrimitive():
			b.addViolation(violationAttachmentNotPrimitive(decl.QualifiedName(), string(m.Name), m.Type, positions[m.Name]))
			ok = false
		case m.Decl.Kind != KindImage:
			b.addViolation(violationAttachmentNotImage(decl.QualifiedName(), string(m.Name), m.Type, positions[m.Name]))
			ok = false
		}
	}
	return ok
}

// resolveType resolves a reference of the form [package.]Type[.member...]
// from the point of view of ps.
func (b *builder) resolveType(ps *pkgState, ref string, pos *language.Position) *TypeDecl {
	parts := strings.Split(ref, ".")
	target := ps
	if len(parts) > 1 && ps.imports[parts[0]] {
		target = b.packages[parts[0]]
		parts = parts[1:]
	} else if len(parts) > 1 && !target.declares(parts[0]) {
		if _, isPkg := b.packages[parts[0]]; isPkg || !target.declaresOperation(parts[0]) {
			b.addViolation(violationPackageNotImported(parts[0], ref, pos))
			return nil
		}
	}

	head := parts[0]
	var decl *TypeDecl
	switch {
	case builtins[Name(head)] != nil:
		decl = builtins[Name(head)]
	case target.decls[head] != nil:
		decl = b.checkType(target, target.decls[head], pos)
		if decl == nil {
			return nil
		}
	case target.ops[head] != nil:
		b.addViolation(violationDeclarationNotAType(ref, pos))
		return nil
	default:
		b.addViolation(violationNonexistentType(ref, pos))
		return nil
	}

	for _, seg := range parts[1:] {
		m := decl.member(Name(seg))
		if m == nil {
			b.addViolation(violationNonexistentMember(ref, decl.QualifiedName(), seg, pos))
			return nil
		}
		decl = m.Decl
	}
	return decl
}

func (ps *pkgState) declares(name string) bool {
	return builtins[Name(name)] != nil || ps.decls[name] != nil
}

func (ps *pkgState) declaresOperation(name string) bool {
	return ps.ops[name] != nil
}
