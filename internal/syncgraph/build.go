// Package syncgraph turns a primitive port graph into a DAG of execute,
// access and barrier commands.
package syncgraph

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
)

const stage = "syncgraph"

type builder struct {
	graph    *Graph
	commands *ids.Sequence

	executes map[ir.Name]*Execute
	reads    map[primgraph.PortRef][]*Read
	writes   map[primgraph.PortRef][]*Write
}

// source is a command a barrier waits on, with the stage it completes at.
type source struct {
	id    CommandID
	stage ir.Stage
}

// Build inserts the commands of every operation of pg. Command ids are drawn
// from commands.
func Build(ctx context.Context, pg *primgraph.Graph, commands *ids.Sequence) (*Graph, error) {
	b := &builder{
		graph:    newGraph(pg),
		commands: commands,
		executes: make(map[ir.Name]*Execute),
		reads:    make(map[primgraph.PortRef][]*Read),
		writes:   make(map[primgraph.PortRef][]*Write),
	}
	if err := b.build(); err != nil {
		return nil, err
	}

	barriers := 0
	for _, c := range b.graph.commands {
		if IsBarrier(c) {
			barriers++
		}
	}
	ctxlog.FromContext(ctx).Debug("built sync graph",
		"commands", b.graph.Len(),
		"barriers", barriers,
		"operations", len(b.executes),
	)
	return b.graph, nil
}

func (b *builder) build() error {
	for _, op := range b.graph.ports.Source().OrderedOperations() {
		if err := b.buildOperation(op); err != nil {
			return err
		}
	}
	return b.checkBarriers()
}

func (b *builder) buildOperation(op *ir.Operation) error {
	exec := &Execute{header: b.header(op)}
	b.graph.add(exec)
	b.executes[op.Name] = exec

	ports := b.graph.ports.PortsOf(op.Name)
	for _, p := range ports {
		if err := b.buildAccesses(op, exec, p); err != nil {
			return err
		}
	}
	for _, p := range ports {
		if !p.Role.IsTarget() {
			continue
		}
		if err := b.buildInboundBarriers(op, exec, p); err != nil {
			return err
		}
	}
	for _, p := range ports {
		if !p.Role.IsSource() || p.Kind != ir.KindImage {
			continue
		}
		if err := b.buildPostExecutionBarriers(op, exec, p); err != nil {
			return err
		}
	}
	return nil
}

// buildAccesses creates one Read per read stage and one Write per write
// stage of a primitive port.
func (b *builder) buildAccesses(op *ir.Operation, exec *Execute, p *primgraph.Port) error {
	resource, ok := b.graph.ports.ResourceFor(p.Ref)
	if !ok {
		return ir.NewInvariantError(stage, "primitive port has no placeholder", "port", p.Ref.String())
	}
	var entry, exit ir.ImageLayout
	if tr, ok := b.graph.ports.Transition(p.Ref); ok {
		entry, exit = tr.Entry.After(), tr.Exit.After()
	}
	for _, st := range p.Access.Reads {
		r := &Read{header: b.header(op), Port: p.Ref, Resource: resource, Stage: st, RequiresImageLayout: entry}
		b.graph.add(r)
		b.reads[p.Ref] = append(b.reads[p.Ref], r)
		if err := b.edge(r.ID(), exec.ID()); err != nil {
			return err
		}
	}
	for _, st := range p.Access.Writes {
		w := &Write{header: b.header(op), Port: p.Ref, Resource: resource, Stage: st, EnsuresImageLayout: exit}
		b.graph.add(w)
		b.writes[p.Ref] = append(b.writes[p.Ref], w)
		if err := b.edge(exec.ID(), w.ID()); err != nil {
			return err
		}
	}
	return nil
}

// buildInboundBarriers orders the upstream leaf writes of p before the local
// accesses of p, with one barrier per (source, access) pair.
func (b *builder) buildInboundBarriers(op *ir.Operation, exec *Execute, p *primgraph.Port) error {
	up, ok := b.graph.ports.Upstream(p.Ref)
	if !ok {
		return ir.NewInvariantError(stage, "target primitive port has no upstream port", "port", p.Ref.String())
	}
	sources, err := b.leafSources(up)
	if err != nil {
		return err
	}
	resource, _ := b.graph.ports.ResourceFor(p.Ref)
	var from, to ir.ImageLayout
	tr, isImage := b.graph.ports.Transition(p.Ref)
	if isImage {
		from, to = tr.Entry.Before(), tr.Entry.After()
	}

	type target struct {
		id    CommandID
		stage ir.Stage
		write bool
	}
	var targets []target
	for _, r := range b.reads[p.Ref] {
		targets = append(targets, target{r.ID(), r.Stage, false})
	}
	for _, w := range b.writes[p.Ref] {
		targets = append(targets, target{w.ID(), w.Stage, true})
	}
	if len(targets) == 0 {
		targets = append(targets, target{exec.ID(), ir.StageAllCommands, false})
	}

	for _, src := range sources {
		for _, t := range targets {
			var barrier Command
			h := b.header(op)
			switch {
			case isImage && t.write:
				barrier = &ImageWriteBarrier{h, ImageBarrier{resource, from, to, src.stage, t.stage}}
			case isImage:
				barrier = &ImageReadBarrier{h, ImageBarrier{resource, from, to, src.stage, t.stage}}
			case t.write:
				barrier = &MemoryWriteBarrier{h, MemoryBarrier{resource, src.stage, t.stage}}
			default:
				barrier = &MemoryReadBarrier{h, MemoryBarrier{resource, src.stage, t.stage}}
			}
			b.graph.add(barrier)
			if err := b.edge(src.id, barrier.ID()); err != nil {
				return err
			}
			if err := b.edge(barrier.ID(), t.id); err != nil {
				return err
			}
		}
	}
	return nil
}

// buildPostExecutionBarriers moves an image into the layout p ensures after
// the operation ran, funnelling every local write into one synthetic write.
func (b *builder) buildPostExecutionBarriers(op *ir.Operation, exec *Execute, p *primgraph.Port) error {
	tr, ok := b.graph.ports.Transition(p.Ref)
	if !ok {
		return ir.NewInvariantError(stage, "image primitive port has no layout transition", "port", p.Ref.String())
	}
	if _, changed := tr.Exit.(primgraph.Changed); !changed {
		return nil
	}
	resource, _ := b.graph.ports.ResourceFor(p.Ref)

	var sources []source
	for _, w := range b.writes[p.Ref] {
		sources = append(sources, source{w.ID(), w.Stage})
	}
	if len(sources) == 0 {
		sources = append(sources, source{exec.ID(), ir.StageAllCommands})
	}

	var barriers []*ImageWriteBarrier
	for _, src := range sources {
		barrier := &ImageWriteBarrier{b.header(op), ImageBarrier{
			Resource:        resource,
			LayoutFrom:      tr.Exit.Before(),
			LayoutTo:        tr.Exit.After(),
			WaitsForWriteAt: src.stage,
			BlocksAt:        ir.StageAllCommands,
		}}
		b.graph.add(barrier)
		if err := b.edge(src.id, barrier.ID()); err != nil {
			return err
		}
		barriers = append(barriers, barrier)
	}

	trailing := &Write{
		header:             b.header(op),
		Port:               p.Ref,
		Resource:           resource,
		Stage:              ir.StageAllCommands,
		EnsuresImageLayout: tr.Exit.After(),
		Synthetic:          true,
	}
	b.graph.add(trailing)
	b.writes[p.Ref] = append(b.writes[p.Ref], trailing)
	for _, barrier := range barriers {
		if err := b.edge(barrier.ID(), trailing.ID()); err != nil {
			return err
		}
	}
	return nil
}

// leafSources returns the commands a downstream barrier of port up waits on:
// the leaf writes of up, or its Execute node when up writes nothing.
func (b *builder) leafSources(up primgraph.PortRef) ([]source, error) {
	writes := b.writes[up]
	if len(writes) == 0 {
		exec, ok := b.executes[up.Operation]
		if !ok {
			return nil, ir.NewInvariantError(stage, "upstream operation not built yet", "port", up.String())
		}
		return []source{{exec.ID(), ir.StageAllCommands}}, nil
	}

	seen := make(map[CommandID]bool)
	var out []source
	for _, w := range writes {
		for _, leaf := range b.leafWrites(w) {
			if seen[leaf.ID()] {
				continue
			}
			seen[leaf.ID()] = true
			out = append(out, source{leaf.ID(), leaf.Stage})
		}
	}
	slices.SortFunc(out, func(x, y source) int { return cmp.Compare(x.id, y.id) })
	return out, nil
}

// leafWrites walks forward from w through commands of the same operation and
// resource, and returns the writes that have no such successor.
func (b *builder) leafWrites(w *Write) []*Write {
	var out []*Write
	var walk func(id CommandID)
	visited := make(map[CommandID]bool)
	walk = func(id CommandID) {
		if visited[id] {
			return
		}
		visited[id] = true
		var next []CommandID
		for _, s := range b.graph.Successors(id) {
			c := b.graph.Command(s)
			if c.Operation() != w.Operation() {
				continue
			}
			if res, ok := ResourceOf(c); ok && res == w.Resource {
				next = append(next, s)
			}
		}
		if len(next) == 0 {
			if leaf, ok := b.graph.Command(id).(*Write); ok {
				out = append(out, leaf)
			}
			return
		}
		for _, s := range next {
			walk(s)
		}
	}
	walk(w.ID())
	return out
}

// checkBarriers requires every barrier to sit between two commands.
func (b *builder) checkBarriers() error {
	for _, c := range b.graph.Commands() {
		if !IsBarrier(c) {
			continue
		}
		if b.graph.dag.InDegree(c.ID()) == 0 || b.graph.dag.OutDegree(c.ID()) == 0 {
			return ir.NewInvariantError(stage, "barrier is not connected on both sides",
				"command", formatID(c.ID()), "kind", string(c.Kind()), "operation", string(c.Operation()))
		}
	}
	return nil
}

func (b *builder) header(op *ir.Operation) header {
	return header{id: CommandID(b.commands.Next()), operation: op.Name, queue: op.Queue}
}

func (b *builder) edge(from, to CommandID) error {
	if err := b.graph.dag.AddEdge(from, to); err != nil {
		return ir.NewInvariantError(stage, err.Error(), "from", formatID(from), "to", formatID(to))
	}
	return nil
}

func formatID(id CommandID) string { return strconv.FormatUint(uint64(id), 10) }
