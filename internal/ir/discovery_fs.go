package ir

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const fileExtension = ".hcl"

// FileSystemDiscovery implements Discovery for graph descriptions stored as
// *.hcl files below a root directory.
type FileSystemDiscovery struct {
	filePaths map[string]string
	metas     map[string]*PackageMetadata
}

// NewFileSystemDiscovery walks rootDir for graph description files.
func NewFileSystemDiscovery(ctx context.Context, rootDir string) (*FileSystemDiscovery, error) {
	discovery := &FileSystemDiscovery{
		filePaths: make(map[string]string),
		metas:     make(map[string]*PackageMetadata),
	}

	err := filepath.WalkDir(rootDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(d.Name()) != fileExtension {
			return nil
		}

		relPath, err := filepath.Rel(rootDir, path)
		if err != nil {
			return fmt.Errorf("failed to get relative path for %q: %w", path, err)
		}

		name := strings.TrimSuffix(d.Name(), fileExtension)
		if prev, ok := discovery.metas[name]; ok {
			return fmt.Errorf("package %q declared by both %q and %q", name, prev.FilePath, relPath)
		}
		discovery.filePaths[name] = path
		discovery.metas[name] = &PackageMetadata{Name: name, FilePath: relPath}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk root directory %q: %w", rootDir, err)
	}
	return discovery, nil
}

// ListPackages returns the packages discovered in the filesystem, by name.
func (d *FileSystemDiscovery) ListPackages(ctx context.Context) ([]*PackageMetadata, error) {
	pkgs := make([]*PackageMetadata, 0, len(d.metas))
	for _, pkg := range d.metas {
		pkgs = append(pkgs, pkg)
	}
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].Name < pkgs[j].Name })
	return pkgs, nil
}

// ReadPackage reads the source of a package.
func (d *FileSystemDiscovery) ReadPackage(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fp, ok := d.filePaths[name]
	if !ok {
		return nil, fmt.Errorf("package %q not found", name)
	}
	content, err := os.ReadFile(fp)
	if err != nil {
		return nil, fmt.Errorf("failed to read package %q: %w", name, err)
	}
	return content, nil
}

// Load is a convenience function that discovers rootDir and checks entry.
func Load(ctx context.Context, rootDir, entry string) (*Graph, error) {
	discovery, err := NewFileSystemDiscovery(ctx, rootDir)
	if err != nil {
		return nil, err
	}
	return Build(ctx, discovery, entry)
}
