package syncgraph

import (
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
)

// CommandID identifies a command. Ids increase in creation order and are
// never reused within one compilation.
type CommandID uint64

// Kind names a command variant.
type Kind string

const (
	KindExecute                             Kind = "Execute"
	KindRead                                Kind = "Read"
	KindWrite                               Kind = "Write"
	KindMemoryReadBarrier                   Kind = "MemoryReadBarrier"
	KindMemoryWriteBarrier                  Kind = "MemoryWriteBarrier"
	KindImageReadBarrier                    Kind = "ImageReadBarrier"
	KindImageWriteBarrier                   Kind = "ImageWriteBarrier"
	KindMemoryReadBarrierWithQueueTransfer  Kind = "MemoryReadBarrierWithQueueTransfer"
	KindMemoryWriteBarrierWithQueueTransfer Kind = "MemoryWriteBarrierWithQueueTransfer"
	KindImageReadBarrierWithQueueTransfer   Kind = "ImageReadBarrierWithQueueTransfer"
	KindImageWriteBarrierWithQueueTransfer  Kind = "ImageWriteBarrierWithQueueTransfer"
)

// Kinds returns every command kind.
func Kinds() []Kind {
	return []Kind{
		KindExecute,
		KindRead,
		KindWrite,
		KindMemoryReadBarrier,
		KindMemoryWriteBarrier,
		KindImageReadBarrier,
		KindImageWriteBarrier,
		KindMemoryReadBarrierWithQueueTransfer,
		KindMemoryWriteBarrierWithQueueTransfer,
		KindImageReadBarrierWithQueueTransfer,
		KindImageWriteBarrierWithQueueTransfer,
	}
}

// Command is a node of the sync graph. The set of variants is closed.
type Command interface {
	ID() CommandID
	// Operation is the operation whose Execute node owns the command.
	Operation() ir.Name
	Queue() ir.QueueCategory
	Kind() Kind
	isCommand()
}

type header struct {
	id        CommandID
	operation ir.Name
	queue     ir.QueueCategory
}

func (h header) ID() CommandID           { return h.id }
func (h header) Operation() ir.Name      { return h.operation }
func (h header) Queue() ir.QueueCategory { return h.queue }
func (header) isCommand()                {}

// Execute stands for the body of an operation.
type Execute struct {
	header
}

func (*Execute) Kind() Kind { return KindExecute }

// Read is an access of a primitive port at one stage, before Execute.
type Read struct {
	header
	Port                primgraph.PortRef
	Resource            primgraph.ResourceID
	Stage               ir.Stage
	RequiresImageLayout ir.ImageLayout
}

func (*Read) Kind() Kind { return KindRead }

// Write is an access of a primitive port at one stage, after Execute.
// Synthetic writes close a post-execution layout change.
type Write struct {
	header
	Port               primgraph.PortRef
	Resource           primgraph.ResourceID
	Stage              ir.Stage
	EnsuresImageLayout ir.ImageLayout
	Synthetic          bool
}

func (*Write) Kind() Kind { return KindWrite }

type MemoryBarrier struct {
	Resource        primgraph.ResourceID
	WaitsForWriteAt ir.Stage
	BlocksAt        ir.Stage
}

type ImageBarrier struct {
	Resource        primgraph.ResourceID
	LayoutFrom      ir.ImageLayout
	LayoutTo        ir.ImageLayout
	WaitsForWriteAt ir.Stage
	BlocksAt        ir.Stage
}

// Submission is one queue submission of a compiled plan.
type Submission struct {
	ID    int
	Queue ir.QueueCategory
}

// QueueTransfer hands a resource from the queue of Source to that of Target.
type QueueTransfer struct {
	Source *Submission
	Target *Submission
}

type MemoryReadBarrier struct {
	header
	MemoryBarrier
}

type MemoryWriteBarrier struct {
	header
	MemoryBarrier
}

type ImageReadBarrier struct {
	header
	ImageBarrier
}

type ImageWriteBarrier struct {
	header
	ImageBarrier
}

type MemoryReadBarrierWithQueueTransfer struct {
	header
	MemoryBarrier
	QueueTransfer
}

type MemoryWriteBarrierWithQueueTransfer struct {
	header
	MemoryBarrier
	QueueTransfer
}

type ImageReadBarrierWithQueueTransfer struct {
	header
	ImageBarrier
	QueueTransfer
}

type ImageWriteBarrierWithQueueTransfer struct {
	header
	ImageBarrier
	QueueTransfer
}

func (*MemoryReadBarrier) Kind() Kind                  { return KindMemoryReadBarrier }
func (*MemoryWriteBarrier) Kind() Kind                 { return KindMemoryWriteBarrier }
func (*ImageReadBarrier) Kind() Kind                   { return KindImageReadBarrier }
func (*ImageWriteBarrier) Kind() Kind                  { return KindImageWriteBarrier }
func (*MemoryReadBarrierWithQueueTransfer) Kind() Kind { return KindMemoryReadBarrierWithQueueTransfer }
func (*MemoryWriteBarrierWithQueueTransfer) Kind() Kind {
	return KindMemoryWriteBarrierWithQueueTransfer
}
func (*ImageReadBarrierWithQueueTransfer) Kind() Kind  { return KindImageReadBarrierWithQueueTransfer }
func (*ImageWriteBarrierWithQueueTransfer) Kind() Kind { return KindImageWriteBarrierWithQueueTransfer }

// IsBarrier reports whether c is any of the barrier variants.
func IsBarrier(c Command) bool {
	switch c.(type) {
	case *Execute, *Read, *Write:
		return false
	case *MemoryReadBarrier, *MemoryWriteBarrier, *ImageReadBarrier, *ImageWriteBarrier,
		*MemoryReadBarrierWithQueueTransfer, *MemoryWriteBarrierWithQueueTransfer,
		*ImageReadBarrierWithQueueTransfer, *ImageWriteBarrierWithQueueTransfer:
		return true
	default:
		panic("unreachable")
	}
}

// IsQueueTransfer reports whether c is a queue transfer barrier.
func IsQueueTransfer(c Command) bool {
	switch c.(type) {
	case *MemoryReadBarrierWithQueueTransfer, *MemoryWriteBarrierWithQueueTransfer,
		*ImageReadBarrierWithQueueTransfer, *ImageWriteBarrierWithQueueTransfer:
		return true
	}
	return false
}

// ResourceOf returns the primitive resource a command touches. Execute nodes
// touch none.
func ResourceOf(c Command) (primgraph.ResourceID, bool) {
	switch c := c.(type) {
	case *Execute:
		return 0, false
	case *Read:
		return c.Resource, true
	case *Write:
		return c.Resource, true
	case *MemoryReadBarrier:
		return c.Resource, true
	case *MemoryWriteBarrier:
		return c.Resource, true
	case *ImageReadBarrier:
		return c.Resource, true
	case *ImageWriteBarrier:
		return c.Resource, true
	case *MemoryReadBarrierWithQueueTransfer:
		return c.Resource, true
	case *MemoryWriteBarrierWithQueueTransfer:
		return c.Resource, true
	case *ImageReadBarrierWithQueueTransfer:
		return c.Resource, true
	case *ImageWriteBarrierWithQueueTransfer:
		return c.Resource, true
	default:
		panic("unreachable")
	}
}

// WithQueueTransfer returns the queue transfer variant of a plain barrier
// under a new id. It reports false for commands that are not plain barriers.
func WithQueueTransfer(c Command, id CommandID, transfer QueueTransfer) (Command, bool) {
	switch c := c.(type) {
	case *Execute, *Read, *Write:
		return nil, false
	case *MemoryReadBarrierWithQueueTransfer, *MemoryWriteBarrierWithQueueTransfer,
		*ImageReadBarrierWithQueueTransfer, *ImageWriteBarrierWithQueueTransfer:
		return nil, false
	case *MemoryReadBarrier:
		return &MemoryReadBarrierWithQueueTransfer{c.header.renumber(id), c.MemoryBarrier, transfer}, true
	case *MemoryWriteBarrier:
		return &MemoryWriteBarrierWithQueueTransfer{c.header.renumber(id), c.MemoryBarrier, transfer}, true
	case *ImageReadBarrier:
		return &ImageReadBarrierWithQueueTransfer{c.header.renumber(id), c.ImageBarrier, transfer}, true
	case *ImageWriteBarrier:
		return &ImageWriteBarrierWithQueueTransfer{c.header.renumber(id), c.ImageBarrier, transfer}, true
	default:
		panic("unreachable")
	}
}

func (h header) renumber(id CommandID) header {
	h.id = id
	return h
}
