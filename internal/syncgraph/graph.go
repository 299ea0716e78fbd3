package syncgraph

import (
	"cmp"
	"encoding/json"
	"slices"

	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
)

// Graph is the command DAG of one compilation.
type Graph struct {
	ports    *primgraph.Graph
	commands map[CommandID]Command
	dag      *dag.Graph[CommandID]
}

func newGraph(ports *primgraph.Graph) *Graph {
	return &Graph{
		ports:    ports,
		commands: make(map[CommandID]Command),
		dag:      dag.New[CommandID](),
	}
}

// Ports returns the primitive port graph the commands were derived from.
func (g *Graph) Ports() *primgraph.Graph { return g.ports }

func (g *Graph) Command(id CommandID) Command { return g.commands[id] }

func (g *Graph) Len() int { return len(g.commands) }

// Commands returns every command ordered by id.
func (g *Graph) Commands() []Command {
	out := make([]Command, 0, len(g.commands))
	for _, c := range g.commands {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Command) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// Edges returns every edge ordered by source, then target id.
func (g *Graph) Edges() []dag.Edge[CommandID] {
	edges := g.dag.Edges()
	slices.SortFunc(edges, func(a, b dag.Edge[CommandID]) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return edges
}

func (g *Graph) Predecessors(id CommandID) []CommandID { return g.dag.Predecessors(id) }
func (g *Graph) Successors(id CommandID) []CommandID   { return g.dag.Successors(id) }

// Structure returns a copy of the bare DAG.
func (g *Graph) Structure() *dag.Graph[CommandID] { return g.dag.Clone() }

// Clone returns a copy that can be rewritten without touching g. Commands
// are immutable and shared.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		ports:    g.ports,
		commands: make(map[CommandID]Command, len(g.commands)),
		dag:      g.dag.Clone(),
	}
	for id, cmd := range g.commands {
		c.commands[id] = cmd
	}
	return c
}

// Replace swaps the command old for c, keeping all edges of old.
func (g *Graph) Replace(old CommandID, c Command) error {
	if _, ok := g.commands[old]; !ok {
		return ir.NewInvariantError("syncgraph", "replaced command not found", "command", formatID(old))
	}
	preds, succs := g.dag.Predecessors(old), g.dag.Successors(old)
	g.dag.RemoveVertex(old)
	delete(g.commands, old)
	g.add(c)
	for _, p := range preds {
		if err := g.dag.AddEdge(p, c.ID()); err != nil {
			return ir.NewInvariantError("syncgraph", err.Error())
		}
	}
	for _, s := range succs {
		if err := g.dag.AddEdge(c.ID(), s); err != nil {
			return ir.NewInvariantError("syncgraph", err.Error())
		}
	}
	return nil
}

func (g *Graph) add(c Command) {
	g.commands[c.ID()] = c
	g.dag.AddVertex(c.ID())
}

// CommandJSON is the serialized form of a command.
type CommandJSON struct {
	ID                  CommandID
	Kind                Kind
	Operation           ir.Name
	Queue               ir.QueueCategory     `json:",omitempty"`
	Port                *primgraph.PortRef   `json:",omitempty"`
	Resource            primgraph.ResourceID `json:",omitempty"`
	Reads               []ir.Stage           `json:",omitempty"`
	Writes              []ir.Stage           `json:",omitempty"`
	RequiresImageLayout ir.ImageLayout       `json:",omitempty"`
	EnsuresImageLayout  ir.ImageLayout       `json:",omitempty"`
	Synthetic           bool                 `json:",omitempty"`
	LayoutFrom          ir.ImageLayout       `json:",omitempty"`
	LayoutTo            ir.ImageLayout       `json:",omitempty"`
	WaitsForWriteAt     ir.Stage             `json:",omitempty"`
	BlocksAt            ir.Stage             `json:",omitempty"`
	SourceSubmission    *Submission          `json:",omitempty"`
	TargetSubmission    *Submission          `json:",omitempty"`
	Submission          *Submission          `json:",omitempty"`
}

// Describe flattens a command into its serialized form.
func Describe(c Command) *CommandJSON {
	out := &CommandJSON{ID: c.ID(), Kind: c.Kind(), Operation: c.Operation()}
	memory := func(b MemoryBarrier) {
		out.Resource, out.WaitsForWriteAt, out.BlocksAt = b.Resource, b.WaitsForWriteAt, b.BlocksAt
	}
	image := func(b ImageBarrier) {
		out.Resource, out.WaitsForWriteAt, out.BlocksAt = b.Resource, b.WaitsForWriteAt, b.BlocksAt
		out.LayoutFrom, out.LayoutTo = b.LayoutFrom, b.LayoutTo
	}
	transfer := func(t QueueTransfer) {
		out.SourceSubmission, out.TargetSubmission = t.Source, t.Target
	}
	switch c := c.(type) {
	case *Execute:
		out.Queue = c.Queue()
	case *Read:
		out.Port = &c.Port
		out.Resource = c.Resource
		out.Reads = []ir.Stage{c.Stage}
		out.RequiresImageLayout = c.RequiresImageLayout
	case *Write:
		out.Port = &c.Port
		out.Resource = c.Resource
		out.Writes = []ir.Stage{c.Stage}
		out.EnsuresImageLayout = c.EnsuresImageLayout
		out.Synthetic = c.Synthetic
	case *MemoryReadBarrier:
		memory(c.MemoryBarrier)
	case *MemoryWriteBarrier:
		memory(c.MemoryBarrier)
	case *ImageReadBarrier:
		image(c.ImageBarrier)
	case *ImageWriteBarrier:
		image(c.ImageBarrier)
	case *MemoryReadBarrierWithQueueTransfer:
		memory(c.MemoryBarrier)
		transfer(c.QueueTransfer)
	case *MemoryWriteBarrierWithQueueTransfer:
		memory(c.MemoryBarrier)
		transfer(c.QueueTransfer)
	case *ImageReadBarrierWithQueueTransfer:
		image(c.ImageBarrier)
		transfer(c.QueueTransfer)
	case *ImageWriteBarrierWithQueueTransfer:
		image(c.ImageBarrier)
		transfer(c.QueueTransfer)
	default:
		panic("unreachable")
	}
	return out
}

type graphJSON struct {
	Commands []*CommandJSON
	Edges    []dag.Edge[CommandID]
}

func (g *Graph) MarshalJSON() ([]byte, error) {
	out := graphJSON{Commands: []*CommandJSON{}, Edges: g.Edges()}
	for _, c := range g.Commands() {
		out.Commands = append(out.Commands, Describe(c))
	}
	return json.Marshal(out)
}
