package planpb

import (
	"cmp"
	"slices"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
	"github.com/hanpama/rendergraph/internal/syncgraph"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Encode serializes a plan deterministically in the protobuf wire format.
func Encode(p *compiler.Plan) ([]byte, error) {
	m, err := NewMessage(p)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(m)
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*dynamicpb.Message, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	m := dynamicpb.NewMessage(s.Message(MessagePlan))
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMessage converts a plan into a dynamic Plan message.
func NewMessage(p *compiler.Plan) (*dynamicpb.Message, error) {
	s, err := Load()
	if err != nil {
		return nil, err
	}
	e := &encoder{schema: s}
	return e.plan(p), nil
}

type encoder struct {
	schema *Schema
}

func (e *encoder) new(name string) *dynamicpb.Message {
	return dynamicpb.NewMessage(e.schema.Message(name))
}

func set(m *dynamicpb.Message, name string, v protoreflect.Value) {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic("unreachable: field " + name)
	}
	m.Set(fd, v)
}

func appendTo(m *dynamicpb.Message, name string, v protoreflect.Value) {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic("unreachable: field " + name)
	}
	m.Mutable(fd).List().Append(v)
}

// enum maps an enum value onto its number. The empty string is the
// unspecified value.
func (e *encoder) enum(enumName, value string) protoreflect.Value {
	if value == "" {
		return protoreflect.ValueOfEnum(0)
	}
	v := e.schema.Enum(enumName).Values().ByName(nameEnumValue(enumName, value))
	if v == nil {
		panic("unreachable: enum value " + value)
	}
	return protoreflect.ValueOfEnum(v.Number())
}

func (e *encoder) plan(p *compiler.Plan) *dynamicpb.Message {
	m := e.new(MessagePlan)
	set(m, "entry", protoreflect.ValueOfString(p.Entry))

	resources := make([]primgraph.ResourceID, 0, len(p.Ports.Resources))
	for id := range p.Ports.Resources {
		resources = append(resources, id)
	}
	slices.Sort(resources)
	for _, id := range resources {
		r := e.new(MessageResource)
		set(r, "id", protoreflect.ValueOfUint64(uint64(id)))
		set(r, "kind", e.enum(EnumResourceKind, string(p.Ports.Resources[id])))
		appendTo(m, "resources", protoreflect.ValueOfMessage(r))
	}

	refs := make([]primgraph.PortRef, 0, len(p.Ports.PortResources))
	for ref := range p.Ports.PortResources {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, func(a, b primgraph.PortRef) int { return cmp.Compare(a.String(), b.String()) })
	for _, ref := range refs {
		appendTo(m, "ports", protoreflect.ValueOfMessage(e.port(p.Ports, ref)))
	}

	for _, c := range p.Sync.Graph.Commands() {
		appendTo(m, "commands", protoreflect.ValueOfMessage(e.command(p, c)))
	}
	for _, edge := range p.Sync.Graph.Edges() {
		em := e.new(MessageEdge)
		set(em, "from", protoreflect.ValueOfUint64(uint64(edge.From)))
		set(em, "to", protoreflect.ValueOfUint64(uint64(edge.To)))
		appendTo(m, "edges", protoreflect.ValueOfMessage(em))
	}
	for _, s := range p.Order() {
		sm := e.new(MessageSubmission)
		set(sm, "id", protoreflect.ValueOfUint32(uint32(s.ID)))
		set(sm, "queue", e.enum(EnumQueueCategory, string(s.Queue)))
		for _, w := range p.WaitsFor(s) {
			appendTo(sm, "waits_for", protoreflect.ValueOfUint32(uint32(w.ID)))
		}
		for _, c := range p.CommandsOf(s) {
			appendTo(sm, "commands", protoreflect.ValueOfUint64(uint64(c.ID())))
		}
		appendTo(m, "submissions", protoreflect.ValueOfMessage(sm))
	}
	return m
}

func (e *encoder) port(g *primgraph.Graph, ref primgraph.PortRef) *dynamicpb.Message {
	m := e.new(MessagePort)
	set(m, "ref", protoreflect.ValueOfString(ref.String()))
	id, _ := g.ResourceFor(ref)
	set(m, "resource", protoreflect.ValueOfUint64(uint64(id)))
	if tr, ok := g.Transition(ref); ok {
		set(m, "entry_from", e.enum(EnumImageLayout, string(tr.Entry.Before())))
		set(m, "entry_to", e.enum(EnumImageLayout, string(tr.Entry.After())))
		set(m, "exit_from", e.enum(EnumImageLayout, string(tr.Exit.Before())))
		set(m, "exit_to", e.enum(EnumImageLayout, string(tr.Exit.After())))
	}
	return m
}

func (e *encoder) command(p *compiler.Plan, c syncgraph.Command) *dynamicpb.Message {
	d := syncgraph.Describe(c)
	m := e.new(MessageCommand)
	set(m, "id", protoreflect.ValueOfUint64(uint64(d.ID)))
	set(m, "kind", e.enum(EnumCommandKind, string(d.Kind)))
	set(m, "operation", protoreflect.ValueOfString(string(d.Operation)))
	set(m, "queue", e.enum(EnumQueueCategory, string(c.Queue())))
	if s := p.Sync.SubmissionOf(c.ID()); s != nil {
		set(m, "submission", protoreflect.ValueOfUint32(uint32(s.ID)))
	}
	if d.Port != nil {
		set(m, "port", protoreflect.ValueOfString(d.Port.String()))
	}
	set(m, "resource", protoreflect.ValueOfUint64(uint64(d.Resource)))

	var st ir.Stage
	switch {
	case len(d.Reads) > 0:
		st = d.Reads[0]
	case len(d.Writes) > 0:
		st = d.Writes[0]
	}
	set(m, "stage", e.enum(EnumStage, string(st)))
	set(m, "requires_image_layout", e.enum(EnumImageLayout, string(d.RequiresImageLayout)))
	set(m, "ensures_image_layout", e.enum(EnumImageLayout, string(d.EnsuresImageLayout)))
	set(m, "synthetic", protoreflect.ValueOfBool(d.Synthetic))
	set(m, "layout_from", e.enum(EnumImageLayout, string(d.LayoutFrom)))
	set(m, "layout_to", e.enum(EnumImageLayout, string(d.LayoutTo)))
	set(m, "waits_for_write_at", e.enum(EnumStage, string(d.WaitsForWriteAt)))
	set(m, "blocks_at", e.enum(EnumStage, string(d.BlocksAt)))
	if d.SourceSubmission != nil {
		set(m, "source_submission", protoreflect.ValueOfUint32(uint32(d.SourceSubmission.ID)))
		set(m, "target_submission", protoreflect.ValueOfUint32(uint32(d.TargetSubmission.ID)))
	}
	return m
}
