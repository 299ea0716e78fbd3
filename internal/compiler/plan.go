package compiler

import (
	"encoding/json"

	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
	"github.com/hanpama/rendergraph/internal/submission"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

// Plan is the result of a compilation: the checked graph, its primitive port
// graph and the partitioned sync graph with queue transfers promoted.
type Plan struct {
	Entry string
	Graph *ir.Graph
	Ports *primgraph.Graph
	Sync  *submission.Partitioning
}

// Order returns the submissions in the order they must be submitted.
func (p *Plan) Order() []*syncgraph.Submission { return p.Sync.Order() }

// WaitsFor returns the submissions s waits on.
func (p *Plan) WaitsFor(s *syncgraph.Submission) []*syncgraph.Submission { return p.Sync.WaitsFor(s) }

// CommandsOf returns the commands of s in id order.
func (p *Plan) CommandsOf(s *syncgraph.Submission) []syncgraph.Command { return p.Sync.CommandsOf(s) }

// Dependencies returns the edges of the sync graph that stay inside s.
func (p *Plan) Dependencies(s *syncgraph.Submission) []dag.Edge[syncgraph.CommandID] {
	var out []dag.Edge[syncgraph.CommandID]
	for _, e := range p.Sync.Graph.Edges() {
		if p.Sync.SubmissionOf(e.From) == s && p.Sync.SubmissionOf(e.To) == s {
			out = append(out, e)
		}
	}
	return out
}

type submissionJSON struct {
	ID       int
	Queue    ir.QueueCategory
	WaitsFor []int
}

type syncJSON struct {
	Commands []*syncgraph.CommandJSON
	Edges    []dag.Edge[syncgraph.CommandID]
}

type planJSON struct {
	Entry       string
	PortGraph   *primgraph.Graph
	SyncGraph   syncJSON
	Submissions []submissionJSON
}

func (p *Plan) MarshalJSON() ([]byte, error) {
	out := planJSON{
		Entry:     p.Entry,
		PortGraph: p.Ports,
		SyncGraph: syncJSON{
			Commands: []*syncgraph.CommandJSON{},
			Edges:    p.Sync.Graph.Edges(),
		},
		Submissions: []submissionJSON{},
	}
	for _, c := range p.Sync.Graph.Commands() {
		d := syncgraph.Describe(c)
		d.Submission = p.Sync.SubmissionOf(c.ID())
		out.SyncGraph.Commands = append(out.SyncGraph.Commands, d)
	}
	for _, s := range p.Order() {
		waits := []int{}
		for _, w := range p.WaitsFor(s) {
			waits = append(waits, w.ID)
		}
		out.Submissions = append(out.Submissions, submissionJSON{ID: s.ID, Queue: s.Queue, WaitsFor: waits})
	}
	return json.Marshal(out)
}
