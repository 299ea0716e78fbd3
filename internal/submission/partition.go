// Package submission splits a sync graph into per-queue submissions and
// rewrites barriers that cross a queue boundary into queue transfers.
package submission

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

const stage = "submission"

// Partitioning is a sync graph whose commands are all assigned to a
// submission.
type Partitioning struct {
	Graph       *syncgraph.Graph
	Submissions []*syncgraph.Submission

	assignment map[syncgraph.CommandID]*syncgraph.Submission
	deps       *dag.Graph[int]
	byID       map[int]*syncgraph.Submission
}

// SubmissionOf returns the submission a command belongs to.
func (p *Partitioning) SubmissionOf(id syncgraph.CommandID) *syncgraph.Submission {
	return p.assignment[id]
}

// Order returns the submissions in an order that respects every
// cross-submission edge.
func (p *Partitioning) Order() []*syncgraph.Submission {
	order := p.deps.TopologicalOrder()
	out := make([]*syncgraph.Submission, len(order))
	for i, id := range order {
		out[i] = p.byID[id]
	}
	return out
}

// WaitsFor returns the submissions s depends on.
func (p *Partitioning) WaitsFor(s *syncgraph.Submission) []*syncgraph.Submission {
	preds := p.deps.Predecessors(s.ID)
	out := make([]*syncgraph.Submission, len(preds))
	for i, id := range preds {
		out[i] = p.byID[id]
	}
	return out
}

// CommandsOf returns the commands of a submission in id order.
func (p *Partitioning) CommandsOf(s *syncgraph.Submission) []syncgraph.Command {
	var out []syncgraph.Command
	for _, c := range p.Graph.Commands() {
		if p.assignment[c.ID()] == s {
			out = append(out, c)
		}
	}
	return out
}

// Partition clones sg, cuts every edge between commands of different queue
// categories and turns each remaining connected component into a
// submission. Submission ids are drawn from submissions.
func Partition(ctx context.Context, sg *syncgraph.Graph, submissions *ids.Sequence) (*Partitioning, error) {
	p := &Partitioning{
		Graph:      sg.Clone(),
		assignment: make(map[syncgraph.CommandID]*syncgraph.Submission),
		deps:       dag.New[int](),
		byID:       make(map[int]*syncgraph.Submission),
	}

	work := p.Graph.Structure()
	for _, e := range p.Graph.Edges() {
		if p.Graph.Command(e.From).Queue() != p.Graph.Command(e.To).Queue() {
			work.RemoveEdge(e.From, e.To)
		}
	}

	for _, component := range work.WeaklyConnectedComponents() {
		s := &syncgraph.Submission{
			ID:    int(submissions.Next()),
			Queue: p.Graph.Command(component[0]).Queue(),
		}
		p.Submissions = append(p.Submissions, s)
		p.byID[s.ID] = s
		p.deps.AddVertex(s.ID)
		for _, id := range component {
			p.assignment[id] = s
		}
	}

	for _, c := range p.Graph.Commands() {
		if p.assignment[c.ID()] == nil {
			return nil, ir.NewInvariantError(stage, "command has no submission", "command", formatID(c.ID()))
		}
	}
	if err := p.linkSubmissions(); err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("partitioned sync graph",
		"commands", p.Graph.Len(),
		"submissions", len(p.Submissions),
	)
	return p, nil
}

// linkSubmissions records which submissions wait on which. A cycle means no
// submission order exists. Submissions are whole same-queue components, so a
// graphics -> compute -> graphics chain whose graphics ends are also joined
// directly forms such a cycle.
func (p *Partitioning) linkSubmissions() error {
	for _, e := range p.Graph.Edges() {
		from, to := p.assignment[e.From], p.assignment[e.To]
		if from == to {
			continue
		}
		err := p.deps.AddEdge(from.ID, to.ID)
		var cycle *dag.CycleError[int]
		if errors.As(err, &cycle) {
			return ir.ValidationError{p.violationSubmissionCycle(from, to, cycle.Path)}
		}
		if err != nil {
			return ir.NewInvariantError(stage, err.Error())
		}
	}
	return nil
}

func (p *Partitioning) violationSubmissionCycle(from, to *syncgraph.Submission, path []int) *ir.Violation {
	describe := func(s *syncgraph.Submission) string {
		seen := make(map[ir.Name]bool)
		var ops []string
		for _, c := range p.CommandsOf(s) {
			if !seen[c.Operation()] {
				seen[c.Operation()] = true
				ops = append(ops, string(c.Operation()))
			}
		}
		return fmt.Sprintf("%s#%d[%s]", s.Queue, s.ID, strings.Join(ops, ","))
	}
	parts := []string{describe(from)}
	for _, id := range path {
		parts = append(parts, describe(p.byID[id]))
	}
	chain := strings.Join(parts, " -> ")
	return ir.NewViolation(ir.KindCrossQueueSubmissionCycle, nil,
		"Submissions wait on each other: "+chain,
		"from", strconv.Itoa(from.ID), "to", strconv.Itoa(to.ID), "cycle", chain)
}

func formatID(id syncgraph.CommandID) string { return strconv.FormatUint(uint64(id), 10) }
