package ir

import (
	"context"
)

type PackageMetadata struct {
	Name     string
	FilePath string
}

// Discovery supplies graph description packages to the checker. A package is
// one source file; its name is the file stem.
type Discovery interface {
	ListPackages(ctx context.Context) ([]*PackageMetadata, error)
	ReadPackage(ctx context.Context, name string) ([]byte, error)
}
