package server

import (
	"context"
	"fmt"
	"sort"

	"github.com/hanpama/rendergraph/internal/ir"
)

// overlay serves the posted description as the entry package and falls back
// to the library for everything it imports.
type overlay struct {
	library ir.Discovery
	entry   string
	source  []byte
}

func newOverlay(library ir.Discovery, entry string, source []byte) *overlay {
	return &overlay{library: library, entry: entry, source: source}
}

func (o *overlay) ListPackages(ctx context.Context) ([]*ir.PackageMetadata, error) {
	pkgs := []*ir.PackageMetadata{{Name: o.entry, FilePath: o.entry + ".hcl"}}
	if o.library == nil {
		return pkgs, nil
	}
	lib, err := o.library.ListPackages(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range lib {
		if p.Name != o.entry {
			pkgs = append(pkgs, p)
		}
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

func (o *overlay) ReadPackage(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if name == o.entry {
		return o.source, nil
	}
	if o.library == nil {
		return nil, fmt.Errorf("package %q not found", name)
	}
	return o.library.ReadPackage(ctx, name)
}
