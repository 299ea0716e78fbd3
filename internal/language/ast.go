package language

import "github.com/hashicorp/hcl/v2"

// Position locates a syntax element in its source file.
type Position struct {
	File   string
	Line   int
	Column int
}

func positionOf(r hcl.Range) *Position {
	return &Position{File: r.Filename, Line: r.Start.Line, Column: r.Start.Column}
}

// Document is the untyped content of one graph description file.
type Document struct {
	Version     int
	Imports     []*Import
	Types       []*TypeDecl
	Operations  []*Operation
	Connections []*Connection
}

type Import struct {
	Package  string
	Position *Position
}

// TypeKind is the declared kind of a type block.
type TypeKind string

const (
	KindBuffer       TypeKind = "buffer"
	KindImage        TypeKind = "image"
	KindRecord       TypeKind = "record"
	KindRenderTarget TypeKind = "render_target"
)

type TypeDecl struct {
	Name     string
	Kind     TypeKind
	Fields   []*Member // record fields
	Colors   []*Member // render target color attachments
	Depth    *Member   // render target depth attachment
	Position *Position
}

// Member is a named reference to another type inside a composite declaration.
type Member struct {
	Name     string
	Type     string
	Position *Position
}

type Operation struct {
	Name     string
	Queue    string
	Ports    []*Port
	Position *Position
}

type Port struct {
	Name           string
	Role           string
	Type           string
	Reads          *StageSpec
	Writes         *StageSpec
	RequiresLayout *LayoutSpec
	EnsuresLayout  *LayoutSpec
	Position       *Position
}

// StageSpec is either a stage list for the whole port value or a map of
// sub-path to stage list. Exactly one of Whole and PerPath is set.
type StageSpec struct {
	Whole    []string
	PerPath  []*PathStages
	Position *Position
}

type PathStages struct {
	Path   string
	Stages []string
}

// LayoutSpec is either one layout for the whole port value or a map of
// sub-path to layout.
type LayoutSpec struct {
	Whole    string
	PerPath  []*PathLayout
	Position *Position
}

type PathLayout struct {
	Path   string
	Layout string
}

type Connection struct {
	From     string
	To       string
	Position *Position
}
