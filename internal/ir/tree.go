package ir

import "fmt"

// Leaf is a primitive resource reachable inside a type.
type Leaf struct {
	Path Path     `json:"path"`
	Kind TypeKind `json:"kind"`
}

// PrimitiveTree decomposes a type into its primitive leaves. A singleton
// tree has exactly one leaf at the root path.
type PrimitiveTree struct {
	leaves []*Leaf
	byPath map[string]*Leaf
}

// NewPrimitiveTree builds the tree of decl by recursive descent over record
// fields and render target attachments. Member declarations must already
// carry their own trees.
func NewPrimitiveTree(decl *TypeDecl) (*PrimitiveTree, error) {
	t := &PrimitiveTree{byPath: make(map[string]*Leaf)}
	if decl.Kind.IsPrimitive() {
		t.add(&Leaf{Path: nil, Kind: decl.Kind})
		return t, nil
	}
	for _, m := range decl.Members() {
		if m.Decl == nil || m.Decl.Tree == nil {
			return nil, fmt.Errorf("member %q of %s is not resolved", m.Name, decl.QualifiedName())
		}
		for _, sub := range m.Decl.Tree.leaves {
			leaf := &Leaf{Path: Path{m.Name}.Append(sub.Path...), Kind: sub.Kind}
			if _, dup := t.byPath[leaf.Path.String()]; dup {
				return nil, fmt.Errorf("duplicate path %q in %s", leaf.Path, decl.QualifiedName())
			}
			t.add(leaf)
		}
	}
	return t, nil
}

func (t *PrimitiveTree) add(l *Leaf) {
	t.leaves = append(t.leaves, l)
	t.byPath[l.Path.String()] = l
}

// IsSingleton reports whether the type is itself primitive.
func (t *PrimitiveTree) IsSingleton() bool {
	return len(t.leaves) == 1 && t.leaves[0].Path.IsRoot()
}

// Leaves returns the leaves in depth-first declaration order.
func (t *PrimitiveTree) Leaves() []*Leaf { return t.leaves }

func (t *PrimitiveTree) Leaf(p Path) (*Leaf, bool) {
	l, ok := t.byPath[p.String()]
	return l, ok
}

// ImageLeaves returns the image leaves in tree order.
func (t *PrimitiveTree) ImageLeaves() []*Leaf {
	var out []*Leaf
	for _, l := range t.leaves {
		if l.Kind == KindImage {
			out = append(out, l)
		}
	}
	return out
}
