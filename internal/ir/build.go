package ir

import (
	"context"
	"fmt"
	"sort"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/language"
)

type builder struct {
	graph *Graph

	discovery  Discovery
	entry      string
	packages   map[string]*pkgState
	order      []string
	stack      []string
	violations []*Violation
}

// pkgState is the per-package working set of the checker.
type pkgState struct {
	pkg     *Package
	doc     *language.Document
	imports map[string]bool
	decls   map[string]*language.TypeDecl
	ops     map[string]*language.Operation
	failed  map[Name]bool
}

// Build checks the entry package and the packages it imports, and returns the
// typed operation graph. User errors are reported as a ValidationError; parse
// errors as a *language.ParseError.
func Build(ctx context.Context, disc Discovery, entry string) (*Graph, error) {
	b := &builder{
		graph: &Graph{
			Entry:      entry,
			Packages:   make(map[string]*Package),
			Operations: make(map[Name]*Operation),
			ports:      dag.New[PortRef](),
			operations: dag.New[Name](),
		},
		discovery: disc,
		entry:     entry,
		packages:  make(map[string]*pkgState),
	}

	if err := b.build(ctx); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("checked graph",
		"entry", entry,
		"packages", len(b.graph.Packages),
		"operations", len(b.graph.Operations),
		"connections", len(b.graph.Connections),
	)
	return b.graph, nil
}

func (b *builder) build(ctx context.Context) error {
	// Load the entry package and everything it imports
	if err := b.loadPackages(ctx); err != nil {
		return err
	}
	if err := b.checkpoint(); err != nil {
		return err
	}

	// Register declaration names
	b.populateDeclarations(ctx)
	if err := b.checkpoint(); err != nil {
		return err
	}

	// Check type declarations depth-first
	b.checkTypes()
	if err := b.checkpoint(); err != nil {
		return err
	}

	// Build operations, ports and access sets
	b.buildOperations()
	if err := b.checkpoint(); err != nil {
		return err
	}

	// Connect ports and check role cardinality
	b.buildConnections()
	b.checkCardinality()
	return b.checkpoint()
}

func (b *builder) loadPackages(ctx context.Context) error {
	metas, err := b.discovery.ListPackages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list packages: %w", err)
	}
	known := make(map[string]*PackageMetadata, len(metas))
	for _, m := range metas {
		known[m.Name] = m
	}
	if _, ok := known[b.entry]; !ok {
		return fmt.Errorf("entry package %q not found", b.entry)
	}

	queue := []string{b.entry}
	seen := map[string]bool{b.entry: true}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]

		meta := known[name]
		src, err := b.discovery.ReadPackage(ctx, name)
		if err != nil {
			return err
		}
		doc, err := language.Parse(meta.FilePath, src)
		if err != nil {
			return fmt.Errorf("package %q: %w", name, err)
		}

		ps := &pkgState{
			pkg: &Package{
				Name:    name,
				File:    meta.FilePath,
				Imports: []string{},
				Types:   make(map[Name]*TypeDecl),
			},
			doc:     doc,
			imports: make(map[string]bool),
			decls:   make(map[string]*language.TypeDecl),
			ops:     make(map[string]*language.Operation),
			failed:  make(map[Name]bool),
		}
		b.packages[name] = ps
		b.order = append(b.order, name)
		b.graph.Packages[name] = ps.pkg

		for _, imp := range doc.Imports {
			if _, ok := known[imp.Package]; !ok {
				b.addViolation(violationNonexistentPackage(imp.Package, imp.Position))
				continue
			}
			if !ps.imports[imp.Package] {
				ps.imports[imp.Package] = true
				ps.pkg.Imports = append(ps.pkg.Imports, imp.Package)
			}
			if !seen[imp.Package] {
				seen[imp.Package] = true
				queue = append(queue, imp.Package)
			}
		}
		sort.Strings(ps.pkg.Imports)
	}
	return nil
}

func (b *builder) populateDeclarations(ctx context.Context) {
	for _, name := range b.order {
		ps := b.packages[name]
		for _, t := range ps.doc.Types {
			if _, err := ParseName(t.Name); err != nil {
				b.addViolation(violationInvalidName("type", t.Name, t.Position))
				continue
			}
			if _, builtin := builtins[Name(t.Name)]; builtin || ps.decls[t.Name] != nil {
				b.addViolation(violationDuplicateDeclaration(name, t.Name, t.Position))
				continue
			}
			ps.decls[t.Name] = t
		}
		for _, op := range ps.doc.Operations {
			if _, err := ParseName(op.Name); err != nil {
				b.addViolation(violationInvalidName("operation", op.Name, op.Position))
				continue
			}
			if ps.decls[op.Name] != nil || ps.ops[op.Name] != nil {
				b.addViolation(violationDuplicateDeclaration(name, op.Name, op.Position))
				continue
			}
			ps.ops[op.Name] = op
		}
		if name != b.entry && (len(ps.doc.Operations) > 0 || len(ps.doc.Connections) > 0) {
			ctxlog.FromContext(ctx).Debug("ignoring operations of imported package",
				"package", name,
				"operations", len(ps.doc.Operations),
				"connections", len(ps.doc.Connections),
			)
		}
	}
}

func (b *builder) checkpoint() error {
	if len(b.violations) > 0 {
		return ValidationError(b.violations)
	}
	return nil
}

func (b *builder) addViolation(v ...*Violation) {
	b.violations = append(b.violations, v...)
}
