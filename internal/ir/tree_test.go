package ir_test

import (
	"testing"

	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/language"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nestedTypes = `version = 1
type "Shadow" "render_target" {
  color "moments" { type = "Image" }
  depth { type = "Image" }
}
type "Frame" "record" {
  field "shadow" { type = "Shadow" }
  field "lights" { type = "Buffer" }
  field "hdr"    { type = "Image" }
}`

func checkTypes(t *testing.T, src string) map[ir.Name]*ir.TypeDecl {
	t.Helper()
	graph, err := ir.Build(t.Context(), ir.NewInMemoryDiscovery([]ir.InMemoryPackage{{Name: "main", Content: src}}), "main")
	require.NoError(t, err)
	return graph.Packages["main"].Types
}

func TestPrimitiveTree_Leaves(t *testing.T) {
	types := checkTypes(t, nestedTypes)

	tree := types["Frame"].Tree
	assert.False(t, tree.IsSingleton())
	var paths []string
	var kinds []ir.TypeKind
	for _, l := range tree.Leaves() {
		paths = append(paths, l.Path.String())
		kinds = append(kinds, l.Kind)
	}
	assert.Equal(t, []string{"shadow.moments", "shadow.depth", "lights", "hdr"}, paths)
	assert.Equal(t, []ir.TypeKind{ir.KindImage, ir.KindImage, ir.KindBuffer, ir.KindImage}, kinds)
	assert.Len(t, tree.ImageLeaves(), 3)

	leaf, ok := tree.Leaf(ir.Path{"shadow", "depth"})
	require.True(t, ok)
	assert.Equal(t, ir.KindImage, leaf.Kind)
	_, ok = tree.Leaf(ir.Path{"shadow"})
	assert.False(t, ok, "inner nodes are not leaves")

	assert.True(t, ir.ImageType.Tree.IsSingleton())
	assert.True(t, ir.ImageType.Tree.Leaves()[0].Path.IsRoot())
}

func TestNewAccessSet(t *testing.T) {
	types := checkTypes(t, nestedTypes)
	frame := types["Frame"]
	ref := ir.PortRef{Operation: "post", Port: "frame"}

	t.Run("whole value forms apply to every leaf", func(t *testing.T) {
		set, violations := ir.NewAccessSet(ref, frame.Tree, &language.Port{
			Reads:          &language.StageSpec{Whole: []string{"fragment_shader", "compute_shader", "fragment_shader"}},
			RequiresLayout: &language.LayoutSpec{Whole: "shader_read_only"},
		})
		require.Empty(t, violations)
		require.True(t, set.IsComposite())
		require.Len(t, set.OrderedPaths(), 4)

		lights := set.For(ir.Path{"lights"})
		assert.Equal(t, ir.StageSet{ir.StageFragmentShader, ir.StageComputeShader}, lights.Reads)
		assert.Empty(t, lights.RequiresLayout, "buffers carry no layout")
		assert.Equal(t, ir.LayoutShaderReadOnly, set.For(ir.Path{"shadow", "moments"}).RequiresLayout)
	})

	t.Run("keyed forms address single leaves", func(t *testing.T) {
		set, violations := ir.NewAccessSet(ref, frame.Tree, &language.Port{
			Writes: &language.StageSpec{PerPath: []*language.PathStages{
				{Path: "hdr", Stages: []string{"color_attachment_output"}},
			}},
			EnsuresLayout: &language.LayoutSpec{PerPath: []*language.PathLayout{
				{Path: "hdr", Layout: "color_attachment"},
			}},
		})
		require.Empty(t, violations)
		assert.Equal(t, ir.StageSet{ir.StageColorAttachmentOutput}, set.For(ir.Path{"hdr"}).Writes)
		assert.Equal(t, ir.LayoutColorAttachment, set.For(ir.Path{"hdr"}).EnsuresLayout)
		assert.Empty(t, set.For(ir.Path{"shadow", "depth"}).Writes)
	})

	t.Run("rejections", func(t *testing.T) {
		_, violations := ir.NewAccessSet(ref, frame.Tree, &language.Port{
			Writes: &language.StageSpec{PerPath: []*language.PathStages{
				{Path: "shadow", Stages: []string{"transfer"}},
				{Path: "bloom", Stages: []string{"transfer"}},
			}},
			EnsuresLayout: &language.LayoutSpec{PerPath: []*language.PathLayout{
				{Path: "lights", Layout: "general"},
				{Path: "hdr", Layout: "sideways"},
			}},
		})
		var kinds []ir.Kind
		for _, v := range violations {
			kinds = append(kinds, v.Kind)
		}
		assert.Equal(t, []ir.Kind{
			ir.KindNonexistentSubresource,
			ir.KindNonexistentSubresource,
			ir.KindPrimitiveMustBeImage,
			ir.KindInvalidKeyword,
		}, kinds)
	})

	t.Run("singleton", func(t *testing.T) {
		set, violations := ir.NewAccessSet(ref, ir.ImageType.Tree, &language.Port{
			Writes:        &language.StageSpec{Whole: []string{"transfer"}},
			EnsuresLayout: &language.LayoutSpec{Whole: "transfer_dst"},
		})
		require.Empty(t, violations)
		assert.False(t, set.IsComposite())
		assert.Equal(t, ir.LayoutTransferDst, set.For(nil).EnsuresLayout)
		assert.Nil(t, set.For(ir.Path{"x"}))
	})
}

func TestParsePath(t *testing.T) {
	p, err := ir.ParsePath("shadow.moments")
	require.NoError(t, err)
	assert.Equal(t, ir.Path{"shadow", "moments"}, p)
	assert.Equal(t, "shadow.moments", p.String())
	assert.True(t, p.Equal(ir.Path{"shadow"}.Append("moments")))

	for _, bad := range []string{"", "a..b", "a.b-c", "."} {
		_, err := ir.ParsePath(bad)
		assert.Error(t, err, bad)
	}

	_, err = ir.ParseName(string(make([]byte, 129)))
	assert.Error(t, err)
}

func TestNewStageSet(t *testing.T) {
	set := ir.NewStageSet(ir.StageAllCommands, ir.StageTopOfPipe, ir.StageTransfer, ir.StageTopOfPipe)
	assert.Equal(t, ir.StageSet{ir.StageTopOfPipe, ir.StageTransfer, ir.StageAllCommands}, set)
	assert.Nil(t, ir.NewStageSet())
}
