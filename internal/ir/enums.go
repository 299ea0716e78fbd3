package ir

import (
	"fmt"
	"slices"
)

// QueueCategory is the class of hardware queue an operation runs on.
type QueueCategory string

const (
	QueueGraphics QueueCategory = "graphics"
	QueueCompute  QueueCategory = "compute"
	QueueTransfer QueueCategory = "transfer"
)

// QueueCategories returns every queue category.
func QueueCategories() []QueueCategory {
	return []QueueCategory{QueueGraphics, QueueCompute, QueueTransfer}
}

func ParseQueueCategory(s string) (QueueCategory, error) {
	switch q := QueueCategory(s); q {
	case QueueGraphics, QueueCompute, QueueTransfer:
		return q, nil
	}
	return "", fmt.Errorf("unknown queue category %q", s)
}

// Stage is a pipeline stage at which a port reads or writes.
type Stage string

const (
	StageTopOfPipe             Stage = "top_of_pipe"
	StageDrawIndirect          Stage = "draw_indirect"
	StageVertexInput           Stage = "vertex_input"
	StageVertexShader          Stage = "vertex_shader"
	StageFragmentShader        Stage = "fragment_shader"
	StageEarlyFragmentTests    Stage = "early_fragment_tests"
	StageLateFragmentTests     Stage = "late_fragment_tests"
	StageColorAttachmentOutput Stage = "color_attachment_output"
	StageComputeShader         Stage = "compute_shader"
	StageTransfer              Stage = "transfer"
	StageBottomOfPipe          Stage = "bottom_of_pipe"
	StageHost                  Stage = "host"
	StageAllGraphics           Stage = "all_graphics"
	StageAllCommands           Stage = "all_commands"
)

var stageOrder = []Stage{
	StageTopOfPipe,
	StageDrawIndirect,
	StageVertexInput,
	StageVertexShader,
	StageFragmentShader,
	StageEarlyFragmentTests,
	StageLateFragmentTests,
	StageColorAttachmentOutput,
	StageComputeShader,
	StageTransfer,
	StageBottomOfPipe,
	StageHost,
	StageAllGraphics,
	StageAllCommands,
}

// Stages returns every stage in pipeline declaration order.
func Stages() []Stage { return slices.Clone(stageOrder) }

func ParseStage(s string) (Stage, error) {
	if slices.Contains(stageOrder, Stage(s)) {
		return Stage(s), nil
	}
	return "", fmt.Errorf("unknown pipeline stage %q", s)
}

func (s Stage) index() int { return slices.Index(stageOrder, s) }

// StageSet is a duplicate-free set of stages kept in pipeline declaration order.
type StageSet []Stage

// NewStageSet sorts and deduplicates stages.
func NewStageSet(stages ...Stage) StageSet {
	if len(stages) == 0 {
		return nil
	}
	out := slices.Clone(stages)
	slices.SortFunc(out, func(a, b Stage) int { return a.index() - b.index() })
	return StageSet(slices.Compact(out))
}

func (s StageSet) Contains(st Stage) bool { return slices.Contains(s, st) }

// ImageLayout is the memory layout an image is in between accesses.
type ImageLayout string

const (
	LayoutUndefined              ImageLayout = "undefined"
	LayoutGeneral                ImageLayout = "general"
	LayoutColorAttachment        ImageLayout = "color_attachment"
	LayoutDepthStencilAttachment ImageLayout = "depth_stencil_attachment"
	LayoutDepthStencilReadOnly   ImageLayout = "depth_stencil_read_only"
	LayoutShaderReadOnly         ImageLayout = "shader_read_only"
	LayoutTransferSrc            ImageLayout = "transfer_src"
	LayoutTransferDst            ImageLayout = "transfer_dst"
	LayoutPresentSrc             ImageLayout = "present_src"
)

var layoutOrder = []ImageLayout{
	LayoutUndefined,
	LayoutGeneral,
	LayoutColorAttachment,
	LayoutDepthStencilAttachment,
	LayoutDepthStencilReadOnly,
	LayoutShaderReadOnly,
	LayoutTransferSrc,
	LayoutTransferDst,
	LayoutPresentSrc,
}

// ImageLayouts returns every image layout.
func ImageLayouts() []ImageLayout { return slices.Clone(layoutOrder) }

func ParseImageLayout(s string) (ImageLayout, error) {
	if slices.Contains(layoutOrder, ImageLayout(s)) {
		return ImageLayout(s), nil
	}
	return "", fmt.Errorf("unknown image layout %q", s)
}

// Role says which side of a connection a port may sit on.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
	RoleModifier Role = "modifier"
)

func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleProducer, RoleConsumer, RoleModifier:
		return r, nil
	}
	return "", fmt.Errorf("unknown port role %q", s)
}

// IsSource reports whether the port may be the origin of a connection.
func (r Role) IsSource() bool { return r == RoleProducer || r == RoleModifier }

// IsTarget reports whether the port may be the destination of a connection.
func (r Role) IsTarget() bool { return r == RoleConsumer || r == RoleModifier }

// Cardinality is the number of connections a fully wired port has.
func (r Role) Cardinality() int {
	switch r {
	case RoleProducer, RoleConsumer:
		return 1
	case RoleModifier:
		return 2
	default:
		panic("unreachable")
	}
}
