package submission_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
	"github.com/hanpama/rendergraph/internal/submission"
	"github.com/hanpama/rendergraph/internal/syncgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequences struct {
	commands, submissions, resources ids.Sequence
}

func buildSync(t *testing.T, seqs *sequences, src string) *syncgraph.Graph {
	t.Helper()
	g, err := ir.Build(t.Context(), ir.NewInMemoryDiscovery([]ir.InMemoryPackage{{Name: "main", Content: src}}), "main")
	require.NoError(t, err)
	pg, err := primgraph.Build(t.Context(), g, &seqs.resources)
	require.NoError(t, err)
	sg, err := syncgraph.Build(t.Context(), pg, &seqs.commands)
	require.NoError(t, err)
	return sg
}

const uploadThenDraw = `version = 1
operation "upload" {
  queue = "transfer"
  port "vertices" {
    role   = "producer"
    type   = "Buffer"
    writes = ["transfer"]
  }
}
operation "draw" {
  queue = "graphics"
  port "vertices" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["vertex_input"]
  }
}
connection {
  from = "upload.vertices"
  to   = "draw.vertices"
}`

func TestPartition(t *testing.T) {
	seqs := &sequences{}
	sg := buildSync(t, seqs, uploadThenDraw)

	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)

	require.Len(t, p.Submissions, 2)
	transfer, graphics := p.Submissions[0], p.Submissions[1]
	assert.Equal(t, syncgraph.Submission{ID: 1, Queue: ir.QueueTransfer}, *transfer)
	assert.Equal(t, syncgraph.Submission{ID: 2, Queue: ir.QueueGraphics}, *graphics)

	for id, want := range map[syncgraph.CommandID]*syncgraph.Submission{
		1: transfer, 2: transfer, 3: graphics, 4: graphics, 5: graphics,
	} {
		assert.Same(t, want, p.SubmissionOf(id), "command %d", id)
	}
	assert.Equal(t, []*syncgraph.Submission{transfer, graphics}, p.Order())
	assert.Equal(t, []*syncgraph.Submission{transfer}, p.WaitsFor(graphics))
	assert.Empty(t, p.WaitsFor(transfer))

	// the input graph is left alone
	assert.Equal(t, 5, sg.Len())
}

func TestPartition_Completeness(t *testing.T) {
	seqs := &sequences{}
	sg := buildSync(t, seqs, uploadThenDraw)
	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)

	for _, c := range p.Graph.Commands() {
		require.NotNil(t, p.SubmissionOf(c.ID()), "command %d", c.ID())
	}
	for _, e := range p.Graph.Edges() {
		from, to := p.Graph.Command(e.From), p.Graph.Command(e.To)
		if from.Queue() == to.Queue() {
			assert.Same(t, p.SubmissionOf(e.From), p.SubmissionOf(e.To), "%d -> %d", e.From, e.To)
		}
	}
}

func TestPromote(t *testing.T) {
	seqs := &sequences{}
	sg := buildSync(t, seqs, uploadThenDraw)
	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)

	require.NoError(t, submission.Promote(t.Context(), p, &seqs.commands))

	assert.Nil(t, p.Graph.Command(5))
	promoted, ok := p.Graph.Command(6).(*syncgraph.MemoryReadBarrierWithQueueTransfer)
	require.True(t, ok, "got %T", p.Graph.Command(6))
	assert.Same(t, p.Submissions[0], promoted.Source)
	assert.Same(t, p.Submissions[1], promoted.Target)
	assert.Equal(t, ir.StageTransfer, promoted.WaitsForWriteAt)
	assert.Equal(t, []syncgraph.CommandID{2}, p.Graph.Predecessors(6))
	assert.Equal(t, []syncgraph.CommandID{4}, p.Graph.Successors(6))
	assert.Same(t, p.Submissions[1], p.SubmissionOf(6))

	// the graph handed to Partition keeps its plain barrier
	_, plain := sg.Command(5).(*syncgraph.MemoryReadBarrier)
	assert.True(t, plain)
}

func TestPromote_Idempotent(t *testing.T) {
	seqs := &sequences{}
	sg := buildSync(t, seqs, uploadThenDraw)
	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)

	require.NoError(t, submission.Promote(t.Context(), p, &seqs.commands))
	first, err := json.Marshal(p.Graph)
	require.NoError(t, err)
	last := seqs.commands.Last()

	require.NoError(t, submission.Promote(t.Context(), p, &seqs.commands))
	second, err := json.Marshal(p.Graph)
	require.NoError(t, err)

	assert.JSONEq(t, string(first), string(second))
	assert.Equal(t, last, seqs.commands.Last(), "no ids drawn on the second run")
}

func TestPromote_SameQueueLeavesBarriers(t *testing.T) {
	src := `version = 1
operation "a" {
  queue = "compute"
  port "buf" {
    role   = "producer"
    type   = "Buffer"
    writes = ["compute_shader"]
  }
}
operation "b" {
  queue = "compute"
  port "buf" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["compute_shader"]
  }
}
connection {
  from = "a.buf"
  to   = "b.buf"
}`
	seqs := &sequences{}
	sg := buildSync(t, seqs, src)
	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)
	require.Len(t, p.Submissions, 1)

	require.NoError(t, submission.Promote(t.Context(), p, &seqs.commands))
	for _, c := range p.Graph.Commands() {
		assert.False(t, syncgraph.IsQueueTransfer(c), "command %d", c.ID())
	}
}

func TestPartition_SubmissionCycle(t *testing.T) {
	src := `version = 1
operation "a" {
  queue = "graphics"
  port "x" {
    role   = "producer"
    type   = "Buffer"
    writes = ["transfer"]
  }
  port "y" {
    role   = "producer"
    type   = "Buffer"
    writes = ["transfer"]
  }
}
operation "b" {
  queue = "compute"
  port "in" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["compute_shader"]
  }
  port "out" {
    role   = "producer"
    type   = "Buffer"
    writes = ["compute_shader"]
  }
}
operation "c" {
  queue = "graphics"
  port "direct" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["vertex_input"]
  }
  port "computed" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["vertex_input"]
  }
}
connection {
  from = "a.x"
  to   = "b.in"
}
connection {
  from = "a.y"
  to   = "c.direct"
}
connection {
  from = "b.out"
  to   = "c.computed"
}`
	seqs := &sequences{}
	sg := buildSync(t, seqs, src)

	_, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	var verr ir.ValidationError
	require.True(t, errors.As(err, &verr), "got %v", err)
	assert.Equal(t, ir.KindCrossQueueSubmissionCycle, verr.First().Kind)
	assert.Contains(t, verr.First().Message, "compute#")
}

func TestPartition_AsyncComputeWithoutDirectEdge(t *testing.T) {
	// graphics -> compute -> graphics with no edge between the graphics
	// operations: a and c land in separate submissions and order cleanly.
	src := `version = 1
operation "a" {
  queue = "graphics"
  port "x" {
    role   = "producer"
    type   = "Buffer"
    writes = ["transfer"]
  }
}
operation "b" {
  queue = "compute"
  port "in" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["compute_shader"]
  }
  port "out" {
    role   = "producer"
    type   = "Buffer"
    writes = ["compute_shader"]
  }
}
operation "c" {
  queue = "graphics"
  port "computed" {
    role  = "consumer"
    type  = "Buffer"
    reads = ["vertex_input"]
  }
}
connection {
  from = "a.x"
  to   = "b.in"
}
connection {
  from = "b.out"
  to   = "c.computed"
}`
	seqs := &sequences{}
	sg := buildSync(t, seqs, src)

	p, err := submission.Partition(t.Context(), sg, &seqs.submissions)
	require.NoError(t, err)
	require.Len(t, p.Submissions, 3)
	a, b, c := p.Submissions[0], p.Submissions[1], p.Submissions[2]
	assert.Equal(t, ir.QueueGraphics, a.Queue)
	assert.Equal(t, ir.QueueCompute, b.Queue)
	assert.Equal(t, ir.QueueGraphics, c.Queue)
	assert.Equal(t, []*syncgraph.Submission{a, b, c}, p.Order())
	assert.Equal(t, []*syncgraph.Submission{b}, p.WaitsFor(c))
}
