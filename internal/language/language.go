// Package language parses graph description files.
//
// A graph description is an HCL document:
//
//	version = 1
//
//	import "common" {}
//
//	type "GBuffer" "record" {
//	  field "albedo" { type = "Image" }
//	}
//
//	operation "geometry" {
//	  queue = "graphics"
//	  port "gbuffer" {
//	    role           = "producer"
//	    type           = "GBuffer"
//	    writes         = { "albedo" = ["color_attachment_output"] }
//	    ensures_layout = { "albedo" = "color_attachment" }
//	  }
//	}
//
//	connection {
//	  from = "geometry.gbuffer"
//	  to   = "lighting.gbuffer"
//	}
//
// Parsing only checks the shape of the document. Names, types and port
// contracts are checked by package ir.
package language

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// Version is the graph description schema version understood by this parser.
const Version = 1

// ParseError reports syntax or schema errors in a graph description.
type ParseError struct {
	Diagnostics hcl.Diagnostics
}

func (e *ParseError) Error() string { return e.Diagnostics.Error() }

func (e *ParseError) Unwrap() error { return e.Diagnostics }

var fileSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "version", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "import", LabelNames: []string{"package"}},
		{Type: "type", LabelNames: []string{"name", "kind"}},
		{Type: "operation", LabelNames: []string{"name"}},
		{Type: "connection"},
	},
}

var recordSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "field", LabelNames: []string{"name"}},
	},
}

var renderTargetSchema = &hcl.BodySchema{
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "color", LabelNames: []string{"name"}},
		{Type: "depth"},
	},
}

var memberSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "type", Required: true},
	},
}

var operationSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "queue", Required: true},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "port", LabelNames: []string{"name"}},
	},
}

var portSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "role", Required: true},
		{Name: "type", Required: true},
		{Name: "reads"},
		{Name: "writes"},
		{Name: "requires_layout"},
		{Name: "ensures_layout"},
	},
}

var connectionSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "from", Required: true},
		{Name: "to", Required: true},
	},
}

// Parse parses one graph description file.
func Parse(filename string, src []byte) (*Document, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, &ParseError{Diagnostics: diags}
	}
	p := &parser{}
	doc := p.document(file.Body)
	if p.diags.HasErrors() {
		return nil, &ParseError{Diagnostics: p.diags}
	}
	return doc, nil
}

type parser struct {
	diags hcl.Diagnostics
}

func (p *parser) document(body hcl.Body) *Document {
	content, diags := body.Content(fileSchema)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}

	doc := &Document{}
	if attr, ok := content.Attributes["version"]; ok {
		p.decode(attr.Expr, &doc.Version)
		if doc.Version != Version {
			p.diags = append(p.diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unsupported graph description version",
				Detail:   fmt.Sprintf("Version %d is not supported; this compiler reads version %d.", doc.Version, Version),
				Subject:  attr.Expr.Range().Ptr(),
			})
		}
	}

	for _, block := range content.Blocks {
		switch block.Type {
		case "import":
			if p.emptyBody(block) {
				doc.Imports = append(doc.Imports, &Import{Package: block.Labels[0], Position: positionOf(block.DefRange)})
			}
		case "type":
			if t := p.typeDecl(block); t != nil {
				doc.Types = append(doc.Types, t)
			}
		case "operation":
			if op := p.operation(block); op != nil {
				doc.Operations = append(doc.Operations, op)
			}
		case "connection":
			if c := p.connection(block); c != nil {
				doc.Connections = append(doc.Connections, c)
			}
		}
	}
	return doc
}

func (p *parser) emptyBody(block *hcl.Block) bool {
	_, diags := block.Body.Content(&hcl.BodySchema{})
	p.diags = append(p.diags, diags...)
	return !diags.HasErrors()
}

func (p *parser) typeDecl(block *hcl.Block) *TypeDecl {
	t := &TypeDecl{
		Name:     block.Labels[0],
		Kind:     TypeKind(block.Labels[1]),
		Position: positionOf(block.DefRange),
	}
	switch t.Kind {
	case KindBuffer, KindImage:
		if !p.emptyBody(block) {
			return nil
		}
	case KindRecord:
		content, diags := block.Body.Content(recordSchema)
		p.diags = append(p.diags, diags...)
		if diags.HasErrors() {
			return nil
		}
		for _, fb := range content.Blocks {
			if m := p.member(fb, fb.Labels[0]); m != nil {
				t.Fields = append(t.Fields, m)
			}
		}
	case KindRenderTarget:
		content, diags := block.Body.Content(renderTargetSchema)
		p.diags = append(p.diags, diags...)
		if diags.HasErrors() {
			return nil
		}
		for _, ab := range content.Blocks {
			switch ab.Type {
			case "color":
				if m := p.member(ab, ab.Labels[0]); m != nil {
					t.Colors = append(t.Colors, m)
				}
			case "depth":
				if t.Depth != nil {
					p.diags = append(p.diags, &hcl.Diagnostic{
						Severity: hcl.DiagError,
						Summary:  "Duplicate \"depth\" block",
						Detail:   "A render target has at most one depth attachment.",
						Subject:  &ab.DefRange,
					})
					continue
				}
				t.Depth = p.member(ab, "depth")
			}
		}
	default:
		p.diags = append(p.diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Unsupported type kind",
			Detail:   fmt.Sprintf("The kind %q is not valid. Supported kinds are: buffer, image, record, render_target.", t.Kind),
			Subject:  &block.LabelRanges[1],
		})
		return nil
	}
	return t
}

func (p *parser) member(block *hcl.Block, name string) *Member {
	content, diags := block.Body.Content(memberSchema)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	m := &Member{Name: name, Position: positionOf(block.DefRange)}
	p.decode(content.Attributes["type"].Expr, &m.Type)
	return m
}

func (p *parser) operation(block *hcl.Block) *Operation {
	content, diags := block.Body.Content(operationSchema)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	op := &Operation{Name: block.Labels[0], Position: positionOf(block.DefRange)}
	p.decode(content.Attributes["queue"].Expr, &op.Queue)
	for _, pb := range content.Blocks {
		if port := p.port(pb); port != nil {
			op.Ports = append(op.Ports, port)
		}
	}
	return op
}

func (p *parser) port(block *hcl.Block) *Port {
	content, diags := block.Body.Content(portSchema)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	port := &Port{Name: block.Labels[0], Position: positionOf(block.DefRange)}
	p.decode(content.Attributes["role"].Expr, &port.Role)
	p.decode(content.Attributes["type"].Expr, &port.Type)
	if attr, ok := content.Attributes["reads"]; ok {
		port.Reads = p.stageSpec(attr)
	}
	if attr, ok := content.Attributes["writes"]; ok {
		port.Writes = p.stageSpec(attr)
	}
	if attr, ok := content.Attributes["requires_layout"]; ok {
		port.RequiresLayout = p.layoutSpec(attr)
	}
	if attr, ok := content.Attributes["ensures_layout"]; ok {
		port.EnsuresLayout = p.layoutSpec(attr)
	}
	return port
}

func (p *parser) connection(block *hcl.Block) *Connection {
	content, diags := block.Body.Content(connectionSchema)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	c := &Connection{Position: positionOf(block.DefRange)}
	p.decode(content.Attributes["from"].Expr, &c.From)
	p.decode(content.Attributes["to"].Expr, &c.To)
	return c
}

func (p *parser) decode(expr hcl.Expression, target any) {
	diags := gohcl.DecodeExpression(expr, nil, target)
	p.diags = append(p.diags, diags...)
}

// isKeyed reports whether v is written as a map of sub-path to value.
func isKeyed(v cty.Value) bool {
	t := v.Type()
	return t.IsObjectType() || t.IsMapType()
}

func (p *parser) value(attr *hcl.Attribute, want cty.Type) (cty.Value, bool) {
	v, diags := attr.Expr.Value(nil)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return cty.NilVal, false
	}
	cv, err := convert.Convert(v, want)
	if err != nil || !cv.IsWhollyKnown() || cv.IsNull() {
		detail := fmt.Sprintf("The %q attribute must be of type %s.", attr.Name, want.FriendlyName())
		if err != nil {
			detail += " " + err.Error() + "."
		}
		p.diags = append(p.diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid attribute value",
			Detail:   detail,
			Subject:  attr.Expr.Range().Ptr(),
		})
		return cty.NilVal, false
	}
	return cv, true
}

func (p *parser) strings(attr *hcl.Attribute, list cty.Value) ([]string, bool) {
	var out []string
	for it := list.ElementIterator(); it.Next(); {
		_, ev := it.Element()
		if ev.IsNull() {
			p.diags = append(p.diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid attribute value",
				Detail:   fmt.Sprintf("The %q attribute must not contain null elements.", attr.Name),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil, false
		}
		out = append(out, ev.AsString())
	}
	return out, true
}

func (p *parser) stageSpec(attr *hcl.Attribute) *StageSpec {
	raw, diags := attr.Expr.Value(nil)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	spec := &StageSpec{Position: positionOf(attr.Range)}
	if !isKeyed(raw) {
		v, ok := p.value(attr, cty.List(cty.String))
		if !ok {
			return nil
		}
		if spec.Whole, ok = p.strings(attr, v); !ok {
			return nil
		}
		if spec.Whole == nil {
			spec.Whole = []string{}
		}
		return spec
	}
	v, ok := p.value(attr, cty.Map(cty.List(cty.String)))
	if !ok {
		return nil
	}
	spec.PerPath = []*PathStages{}
	// map iteration is ordered by key
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		if ev.IsNull() {
			p.diags = append(p.diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid attribute value",
				Detail:   fmt.Sprintf("The stage list for %q must not be null.", k.AsString()),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil
		}
		stages, ok := p.strings(attr, ev)
		if !ok {
			return nil
		}
		spec.PerPath = append(spec.PerPath, &PathStages{Path: k.AsString(), Stages: stages})
	}
	return spec
}

func (p *parser) layoutSpec(attr *hcl.Attribute) *LayoutSpec {
	raw, diags := attr.Expr.Value(nil)
	p.diags = append(p.diags, diags...)
	if diags.HasErrors() {
		return nil
	}
	spec := &LayoutSpec{Position: positionOf(attr.Range)}
	if !isKeyed(raw) {
		v, ok := p.value(attr, cty.String)
		if !ok {
			return nil
		}
		spec.Whole = v.AsString()
		return spec
	}
	v, ok := p.value(attr, cty.Map(cty.String))
	if !ok {
		return nil
	}
	spec.PerPath = []*PathLayout{}
	for it := v.ElementIterator(); it.Next(); {
		k, ev := it.Element()
		if ev.IsNull() {
			p.diags = append(p.diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid attribute value",
				Detail:   fmt.Sprintf("The layout for %q must not be null.", k.AsString()),
				Subject:  attr.Expr.Range().Ptr(),
			})
			return nil
		}
		spec.PerPath = append(spec.PerPath, &PathLayout{Path: k.AsString(), Layout: ev.AsString()})
	}
	return spec
}
