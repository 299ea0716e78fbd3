package ir

import (
	"github.com/hanpama/rendergraph/internal/language"
)

// Access is the declared access of a port to one primitive resource.
type Access struct {
	Reads          StageSet    `json:"reads,omitempty"`
	Writes         StageSet    `json:"writes,omitempty"`
	RequiresLayout ImageLayout `json:"requiresLayout,omitempty"`
	EnsuresLayout  ImageLayout `json:"ensuresLayout,omitempty"`
}

// AccessSet is the access of a port to its whole value: a single Access for
// a primitive type, or one Access per leaf path for a composite type.
type AccessSet struct {
	Single *Access            `json:"single,omitempty"`
	Paths  map[string]*Access `json:"paths,omitempty"`

	order []Path
}

func (a *AccessSet) IsComposite() bool { return a.Single == nil }

// For returns the access of the leaf at p. The root path addresses a
// singleton.
func (a *AccessSet) For(p Path) *Access {
	if a.Single != nil {
		if p.IsRoot() {
			return a.Single
		}
		return nil
	}
	return a.Paths[p.String()]
}

// OrderedPaths returns the leaf paths of a composite set in tree order.
func (a *AccessSet) OrderedPaths() []Path { return a.order }

// NewAccessSet resolves the access assertions of a declared port against the
// primitive tree of its type.
func NewAccessSet(ref PortRef, tree *PrimitiveTree, decl *language.Port) (*AccessSet, []*Violation) {
	b := &accessBuilder{ref: ref, tree: tree, set: &AccessSet{}}
	if tree.IsSingleton() {
		b.set.Single = &Access{}
	} else {
		b.set.Paths = make(map[string]*Access, len(tree.Leaves()))
		for _, leaf := range tree.Leaves() {
			b.set.Paths[leaf.Path.String()] = &Access{}
			b.set.order = append(b.set.order, leaf.Path)
		}
	}

	b.stages("reads", decl.Reads, func(a *Access, s StageSet) { a.Reads = s })
	b.stages("writes", decl.Writes, func(a *Access, s StageSet) { a.Writes = s })
	b.layout("requires_layout", decl.RequiresLayout, func(a *Access, l ImageLayout) { a.RequiresLayout = l })
	b.layout("ensures_layout", decl.EnsuresLayout, func(a *Access, l ImageLayout) { a.EnsuresLayout = l })
	return b.set, b.violations
}

type accessBuilder struct {
	ref        PortRef
	tree       *PrimitiveTree
	set        *AccessSet
	violations []*Violation
}

func (b *accessBuilder) stages(assertion string, spec *language.StageSpec, assign func(*Access, StageSet)) {
	if spec == nil {
		return
	}
	if spec.PerPath == nil {
		stages := b.parseStages(spec.Whole, spec.Position)
		for _, leaf := range b.tree.Leaves() {
			assign(b.set.For(leaf.Path), stages)
		}
		return
	}
	if b.tree.IsSingleton() {
		b.violations = append(b.violations, violationNotComposite(b.ref, assertion, spec.Position))
		return
	}
	for _, pp := range spec.PerPath {
		leaf, ok := b.leaf(assertion, pp.Path, spec.Position)
		if !ok {
			continue
		}
		assign(b.set.For(leaf.Path), b.parseStages(pp.Stages, spec.Position))
	}
}

func (b *accessBuilder) layout(assertion string, spec *language.LayoutSpec, assign func(*Access, ImageLayout)) {
	if spec == nil {
		return
	}
	if spec.PerPath == nil {
		images := b.tree.ImageLeaves()
		if len(images) == 0 {
			b.violations = append(b.violations, violationLayoutOnNonImage(b.ref, assertion, "", spec.Position))
			return
		}
		layout, ok := b.parseLayout(spec.Whole, spec.Position)
		if !ok {
			return
		}
		for _, leaf := range images {
			assign(b.set.For(leaf.Path), layout)
		}
		return
	}
	if b.tree.IsSingleton() {
		b.violations = append(b.violations, violationNotComposite(b.ref, assertion, spec.Position))
		return
	}
	for _, pl := range spec.PerPath {
		leaf, ok := b.leaf(assertion, pl.Path, spec.Position)
		if !ok {
			continue
		}
		if leaf.Kind != KindImage {
			b.violations = append(b.violations, violationLayoutOnNonImage(b.ref, assertion, pl.Path, spec.Position))
			continue
		}
		if layout, ok := b.parseLayout(pl.Layout, spec.Position); ok {
			assign(b.set.For(leaf.Path), layout)
		}
	}
}

func (b *accessBuilder) leaf(assertion, raw string, pos *language.Position) (*Leaf, bool) {
	p, err := ParsePath(raw)
	if err != nil {
		b.violations = append(b.violations, violationNonexistentSubresource(b.ref, assertion, raw, pos))
		return nil, false
	}
	leaf, ok := b.tree.Leaf(p)
	if !ok {
		b.violations = append(b.violations, violationNonexistentSubresource(b.ref, assertion, raw, pos))
		return nil, false
	}
	return leaf, true
}

func (b *accessBuilder) parseStages(raw []string, pos *language.Position) StageSet {
	stages := make([]Stage, 0, len(raw))
	for _, s := range raw {
		st, err := ParseStage(s)
		if err != nil {
			b.violations = append(b.violations, violationInvalidKeyword("pipeline stage", s, pos))
			continue
		}
		stages = append(stages, st)
	}
	return NewStageSet(stages...)
}

func (b *accessBuilder) parseLayout(raw string, pos *language.Position) (ImageLayout, bool) {
	l, err := ParseImageLayout(raw)
	if err != nil {
		b.violations = append(b.violations, violationInvalidKeyword("image layout", raw, pos))
		return "", false
	}
	return l, true
}
