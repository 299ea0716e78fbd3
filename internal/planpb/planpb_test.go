package planpb_test

import (
	"bytes"
	"testing"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/planpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const renderThenSample = `version = 1
operation "render" {
  queue = "graphics"
  port "color" {
    role           = "producer"
    type           = "Image"
    writes         = ["color_attachment_output"]
    ensures_layout = "color_attachment"
  }
}
operation "sample" {
  queue = "compute"
  port "color" {
    role            = "consumer"
    type            = "Image"
    reads           = ["compute_shader"]
    requires_layout = "shader_read_only"
  }
}
connection {
  from = "render.color"
  to   = "sample.color"
}`

func compile(t *testing.T, src string) *compiler.Plan {
	t.Helper()
	disc := ir.NewInMemoryDiscovery([]ir.InMemoryPackage{{Name: "main", Content: src}})
	plan, err := compiler.Compile(t.Context(), disc, "main")
	require.NoError(t, err)
	return plan
}

func get(m protoreflect.Message, name string) protoreflect.Value {
	return m.Get(m.Descriptor().Fields().ByName(protoreflect.Name(name)))
}

func enumName(m protoreflect.Message, name string) string {
	fd := m.Descriptor().Fields().ByName(protoreflect.Name(name))
	return string(fd.Enum().Values().ByNumber(m.Get(fd).Enum()).Name())
}

func TestEncode_RoundTrip(t *testing.T) {
	plan := compile(t, renderThenSample)
	data, err := planpb.Encode(plan)
	require.NoError(t, err)

	m, err := planpb.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "main", get(m, "entry").String())

	resources := get(m, "resources").List()
	require.Equal(t, 1, resources.Len())
	assert.Equal(t, "RESOURCE_KIND_IMAGE", enumName(resources.Get(0).Message(), "kind"))

	ports := get(m, "ports").List()
	require.Equal(t, 2, ports.Len())
	sample := ports.Get(1).Message()
	assert.Equal(t, "sample.color", get(sample, "ref").String())
	assert.Equal(t, "IMAGE_LAYOUT_COLOR_ATTACHMENT", enumName(sample, "entry_from"))
	assert.Equal(t, "IMAGE_LAYOUT_SHADER_READ_ONLY", enumName(sample, "entry_to"))

	commands := get(m, "commands").List()
	assert.Equal(t, plan.Sync.Graph.Len(), commands.Len())
	var transfers int
	for i := range commands.Len() {
		c := commands.Get(i).Message()
		if enumName(c, "kind") == "COMMAND_KIND_IMAGE_READ_BARRIER_WITH_QUEUE_TRANSFER" {
			transfers++
			assert.Equal(t, uint64(1), get(c, "source_submission").Uint())
			assert.Equal(t, uint64(2), get(c, "target_submission").Uint())
			assert.Equal(t, "STAGE_COLOR_ATTACHMENT_OUTPUT", enumName(c, "waits_for_write_at"))
			assert.Equal(t, "STAGE_COMPUTE_SHADER", enumName(c, "blocks_at"))
		}
	}
	assert.Equal(t, 1, transfers)

	subs := get(m, "submissions").List()
	require.Equal(t, 2, subs.Len())
	compute := subs.Get(1).Message()
	assert.Equal(t, "QUEUE_CATEGORY_COMPUTE", enumName(compute, "queue"))
	require.Equal(t, 1, get(compute, "waits_for").List().Len())
	assert.Equal(t, uint64(1), get(compute, "waits_for").List().Get(0).Uint())
	assert.Equal(t, len(plan.CommandsOf(plan.Order()[1])), get(compute, "commands").List().Len())
}

func TestEncode_Deterministic(t *testing.T) {
	a, err := planpb.Encode(compile(t, renderThenSample))
	require.NoError(t, err)
	b, err := planpb.Encode(compile(t, renderThenSample))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSchema(t *testing.T) {
	s, err := planpb.Load()
	require.NoError(t, err)
	again, err := planpb.Load()
	require.NoError(t, err)
	assert.Same(t, s, again)

	assert.Equal(t, protoreflect.FullName(planpb.PackageName), s.File.Package())
	for _, name := range []string{
		planpb.MessagePlan, planpb.MessageCommand, planpb.MessageSubmission,
		planpb.MessageEdge, planpb.MessagePort, planpb.MessageResource,
	} {
		assert.NotNil(t, s.Message(name), name)
	}
	stage := s.Enum(planpb.EnumStage)
	require.NotNil(t, stage)
	assert.Equal(t, protoreflect.EnumNumber(0), stage.Values().ByName("STAGE_UNSPECIFIED").Number())
	assert.Equal(t, len(ir.Stages())+1, stage.Values().Len())

	// numbers are unique within a message
	cmd := s.Message(planpb.MessageCommand)
	seen := map[protoreflect.FieldNumber]bool{}
	for i := range cmd.Fields().Len() {
		n := cmd.Fields().Get(i).Number()
		assert.False(t, seen[n], "field number %d reused", n)
		seen[n] = true
	}

}

func TestRender(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, planpb.Render(&buf))
	out := buf.String()
	assert.Contains(t, out, `syntax = "proto3";`)
	assert.Contains(t, out, "package rendergraph.plan.v1;")
	assert.Contains(t, out, "message Plan {")
	assert.Contains(t, out, "enum CommandKind {")
	assert.Contains(t, out, "COMMAND_KIND_MEMORY_READ_BARRIER_WITH_QUEUE_TRANSFER")
}
