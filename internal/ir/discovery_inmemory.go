package ir

import (
	"context"
	"fmt"
	"sort"
)

type InMemoryPackage struct {
	Name    string
	Content string
}

// InMemoryDiscovery is a Discovery backed by sources held in memory.
type InMemoryDiscovery struct {
	metas    map[string]*PackageMetadata
	contents map[string]string
}

func NewInMemoryDiscovery(pkgs []InMemoryPackage) *InMemoryDiscovery {
	discovery := &InMemoryDiscovery{
		metas:    make(map[string]*PackageMetadata),
		contents: make(map[string]string),
	}
	for _, pkg := range pkgs {
		discovery.metas[pkg.Name] = &PackageMetadata{
			Name:     pkg.Name,
			FilePath: pkg.Name + fileExtension,
		}
		discovery.contents[pkg.Name] = pkg.Content
	}
	return discovery
}

// ListPackages implements Discovery interface
func (d *InMemoryDiscovery) ListPackages(ctx context.Context) ([]*PackageMetadata, error) {
	pkgs := make([]*PackageMetadata, 0, len(d.metas))
	for _, pkg := range d.metas {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

// ReadPackage implements Discovery interface
func (d *InMemoryDiscovery) ReadPackage(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	content, exists := d.contents[name]
	if !exists {
		return nil, fmt.Errorf("package %q not found", name)
	}
	return []byte(content), nil
}
