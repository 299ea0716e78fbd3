// Package planpb describes compiled plans as protocol buffers. The schema is
// assembled at runtime with protobuilder, so no generated code is involved.
package planpb

import (
	"sync"

	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/syncgraph"
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	FilePath    = "rendergraph/plan/v1/plan.proto"
	PackageName = "rendergraph.plan.v1"
)

// Enum and message names of the schema.
const (
	EnumQueueCategory = "QueueCategory"
	EnumStage         = "Stage"
	EnumImageLayout   = "ImageLayout"
	EnumResourceKind  = "ResourceKind"
	EnumCommandKind   = "CommandKind"

	MessageResource   = "Resource"
	MessagePort       = "Port"
	MessageCommand    = "Command"
	MessageEdge       = "Edge"
	MessageSubmission = "Submission"
	MessagePlan       = "Plan"
)

// Schema is the descriptor set of plan.proto.
type Schema struct {
	File protoreflect.FileDescriptor
}

// Message returns the descriptor of a top-level message.
func (s *Schema) Message(name string) protoreflect.MessageDescriptor {
	return s.File.Messages().ByName(protoreflect.Name(name))
}

// Enum returns the descriptor of a top-level enum.
func (s *Schema) Enum(name string) protoreflect.EnumDescriptor {
	return s.File.Enums().ByName(protoreflect.Name(name))
}

var loadSchema = sync.OnceValues(buildSchema)

// Load returns the plan schema. It is built once per process.
func Load() (*Schema, error) { return loadSchema() }

type builder struct {
	file     *protobuilder.FileBuilder
	enums    map[string]*protobuilder.EnumBuilder
	messages map[string]*protobuilder.MessageBuilder
}

// field declares one message field. Exactly one of scalar, enum and message
// is set.
type field struct {
	name     string
	scalar   protoreflect.Kind
	enum     string
	message  string
	repeated bool
	doc      string
}

func buildSchema() (*Schema, error) {
	b := &builder{
		file:     protobuilder.NewFile(FilePath),
		enums:    make(map[string]*protobuilder.EnumBuilder),
		messages: make(map[string]*protobuilder.MessageBuilder),
	}
	b.file.SetPackageName(PackageName)
	b.file.SetSyntax(protoreflect.Proto3)

	b.addEnum(EnumQueueCategory, "Hardware queue class an operation runs on.", stringsOf(ir.QueueCategories()))
	b.addEnum(EnumStage, "Pipeline stage of an access or barrier.", stringsOf(ir.Stages()))
	b.addEnum(EnumImageLayout, "Memory layout of an image.", stringsOf(ir.ImageLayouts()))
	b.addEnum(EnumResourceKind, "", stringsOf([]ir.TypeKind{ir.KindBuffer, ir.KindImage}))
	b.addEnum(EnumCommandKind, "Variant of a sync graph command.", stringsOf(syncgraph.Kinds()))

	b.addMessage(MessageResource, "Placeholder for a GPU resource bound when the plan is replayed.",
		field{name: "id", scalar: protoreflect.Uint64Kind},
		field{name: "kind", enum: EnumResourceKind},
	)
	b.addMessage(MessagePort, "Primitive port with its placeholder and layout transitions.\nLayouts are left unspecified for buffers.",
		field{name: "ref", scalar: protoreflect.StringKind, doc: "operation.port[.path]"},
		field{name: "resource", scalar: protoreflect.Uint64Kind},
		field{name: "entry_from", enum: EnumImageLayout},
		field{name: "entry_to", enum: EnumImageLayout},
		field{name: "exit_from", enum: EnumImageLayout},
		field{name: "exit_to", enum: EnumImageLayout},
	)
	b.addMessage(MessageCommand, "",
		field{name: "id", scalar: protoreflect.Uint64Kind},
		field{name: "kind", enum: EnumCommandKind},
		field{name: "operation", scalar: protoreflect.StringKind},
		field{name: "queue", enum: EnumQueueCategory},
		field{name: "submission", scalar: protoreflect.Uint32Kind},
		field{name: "port", scalar: protoreflect.StringKind},
		field{name: "resource", scalar: protoreflect.Uint64Kind},
		field{name: "stage", enum: EnumStage, doc: "Stage of a read or write."},
		field{name: "requires_image_layout", enum: EnumImageLayout},
		field{name: "ensures_image_layout", enum: EnumImageLayout},
		field{name: "synthetic", scalar: protoreflect.BoolKind},
		field{name: "layout_from", enum: EnumImageLayout},
		field{name: "layout_to", enum: EnumImageLayout},
		field{name: "waits_for_write_at", enum: EnumStage},
		field{name: "blocks_at", enum: EnumStage},
		field{name: "source_submission", scalar: protoreflect.Uint32Kind},
		field{name: "target_submission", scalar: protoreflect.Uint32Kind},
	)
	b.addMessage(MessageEdge, "",
		field{name: "from", scalar: protoreflect.Uint64Kind},
		field{name: "to", scalar: protoreflect.Uint64Kind},
	)
	b.addMessage(MessageSubmission, "",
		field{name: "id", scalar: protoreflect.Uint32Kind},
		field{name: "queue", enum: EnumQueueCategory},
		field{name: "waits_for", scalar: protoreflect.Uint32Kind, repeated: true},
		field{name: "commands", scalar: protoreflect.Uint64Kind, repeated: true},
	)
	b.addMessage(MessagePlan, "Compiled frame graph. Submissions are listed in submission order.",
		field{name: "entry", scalar: protoreflect.StringKind},
		field{name: "resources", message: MessageResource, repeated: true},
		field{name: "ports", message: MessagePort, repeated: true},
		field{name: "commands", message: MessageCommand, repeated: true},
		field{name: "edges", message: MessageEdge, repeated: true},
		field{name: "submissions", message: MessageSubmission, repeated: true},
	)

	fd, err := b.file.Build()
	if err != nil {
		return nil, err
	}
	return &Schema{File: fd}, nil
}

func (b *builder) addEnum(name, doc string, values []string) {
	eb := protobuilder.NewEnum(protoreflect.Name(name))
	eb.SetComments(comment(doc))

	zero := protobuilder.NewEnumValue(nameEnumValue(name, "unspecified"))
	zero.SetNumber(0)
	eb.AddValue(zero)

	vbs := make([]*protobuilder.EnumValueBuilder, 0, len(values))
	for _, v := range values {
		vb := protobuilder.NewEnumValue(nameEnumValue(name, v))
		eb.AddValue(vb)
		vbs = append(vbs, vb)
	}
	allocateEnumValueNumbers(vbs)

	b.enums[name] = eb
	b.file.AddEnum(eb)
}

func (b *builder) addMessage(name, doc string, fields ...field) {
	mb := protobuilder.NewMessage(protoreflect.Name(name))
	mb.SetComments(comment(doc))

	fbs := make([]*protobuilder.FieldBuilder, 0, len(fields))
	for _, f := range fields {
		fb := protobuilder.NewField(protoreflect.Name(f.name), b.fieldType(f))
		fb.SetComments(comment(f.doc))
		if f.repeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
		fbs = append(fbs, fb)
	}
	allocateFieldNumbers(fbs)

	b.messages[name] = mb
	b.file.AddMessage(mb)
}

func (b *builder) fieldType(f field) *protobuilder.FieldType {
	switch {
	case f.enum != "":
		return protobuilder.FieldTypeEnum(b.enums[f.enum])
	case f.message != "":
		return protobuilder.FieldTypeMessage(b.messages[f.message])
	default:
		return protobuilder.FieldTypeScalar(f.scalar)
	}
}

func stringsOf[V ~string](values []V) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
