package submission

import (
	"context"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

// Promote replaces every plain barrier whose sources lie in another
// submission with its queue transfer variant. New command ids are drawn from
// commands. Running Promote again changes nothing.
func Promote(ctx context.Context, p *Partitioning, commands *ids.Sequence) error {
	promoted := 0
	for _, c := range p.Graph.Commands() {
		if !syncgraph.IsBarrier(c) || syncgraph.IsQueueTransfer(c) {
			continue
		}
		source, err := p.sourceSubmission(c)
		if err != nil {
			return err
		}
		target := p.assignment[c.ID()]
		if source == target {
			continue
		}

		replacement, ok := syncgraph.WithQueueTransfer(c, syncgraph.CommandID(commands.Next()),
			syncgraph.QueueTransfer{Source: source, Target: target})
		if !ok {
			panic("unreachable")
		}
		if err := p.Graph.Replace(c.ID(), replacement); err != nil {
			return err
		}
		delete(p.assignment, c.ID())
		p.assignment[replacement.ID()] = target
		promoted++
	}

	ctxlog.FromContext(ctx).Debug("promoted queue transfers", "barriers", promoted)
	return nil
}

// sourceSubmission returns the one submission all incoming edges of a
// barrier come from.
func (p *Partitioning) sourceSubmission(c syncgraph.Command) (*syncgraph.Submission, error) {
	preds := p.Graph.Predecessors(c.ID())
	if len(preds) == 0 {
		return nil, ir.NewInvariantError(stage, "barrier has no incoming edge", "command", formatID(c.ID()))
	}
	source := p.assignment[preds[0]]
	for _, pred := range preds[1:] {
		if p.assignment[pred] != source {
			return nil, ir.NewInvariantError(stage, "barrier has incoming edges from several submissions",
				"command", formatID(c.ID()),
				"first", formatID(preds[0]),
				"other", formatID(pred))
		}
	}
	return source, nil
}
