package replay_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/replay"
	"github.com/hanpama/rendergraph/internal/syncgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func compile(t *testing.T) *compiler.Plan {
	t.Helper()
	disc := ir.NewInMemoryDiscovery([]ir.InMemoryPackage{{Name: "main", Content: uploadThenDraw}})
	plan, err := compiler.Compile(t.Context(), disc, "main")
	require.NoError(t, err)
	return plan
}

func readyPreparers() map[ir.Name]replay.Preparer {
	return map[ir.Name]replay.Preparer{
		"upload": replay.NewMockPreparer(replay.Ready{}),
		"draw":   replay.NewMockPreparer(replay.Ready{}),
	}
}

func TestFrame(t *testing.T) {
	plan := compile(t)
	dev := &replay.MockDevice{}

	report, err := replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, readyPreparers())
	require.NoError(t, err)
	assert.True(t, report.Progress.Ready())
	assert.Equal(t, 2, report.Submitted)
	require.Len(t, report.Semaphores, 1)
	assert.Equal(t, "1->2", report.Semaphores[0].String())

	submits := dev.Submits()
	require.Len(t, submits, 2)

	transfer, graphics := submits[0], submits[1]
	assert.Equal(t, ir.QueueTransfer, transfer.Queue)
	assert.Empty(t, transfer.Batch.Wait)
	assert.Equal(t, report.Semaphores, transfer.Batch.Signal)
	assert.Nil(t, transfer.Batch.Fence)
	buf := transfer.Batch.Buffers[0].(*replay.MockCommandBuffer)
	assert.Equal(t, []syncgraph.CommandID{1, 2}, buf.Commands)
	assert.True(t, buf.Ended)

	assert.Equal(t, ir.QueueGraphics, graphics.Queue)
	assert.Equal(t, report.Semaphores, graphics.Batch.Wait)
	assert.Empty(t, graphics.Batch.Signal)
	require.NotNil(t, graphics.Batch.Fence)
	// the queue transfer barrier comes before the read it guards
	buf = graphics.Batch.Buffers[0].(*replay.MockCommandBuffer)
	assert.Equal(t, []syncgraph.CommandID{6, 4, 3}, buf.Commands)
}

func TestFrame_WaitsForPreparation(t *testing.T) {
	plan := compile(t)
	dev := &replay.MockDevice{}
	draw := replay.NewMockPreparer(
		replay.Uninitialized{},
		replay.Preparing{Message: "compiling pipeline", Progress: 0.5},
		replay.Ready{},
	)
	preparers := map[ir.Name]replay.Preparer{
		"upload": replay.NewMockPreparer(),
		"draw":   draw,
	}

	report, err := replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, preparers)
	require.NoError(t, err)
	assert.Equal(t, map[ir.Name]replay.State{"draw": replay.Uninitialized{}}, report.Progress.Pending)
	assert.Zero(t, report.Submitted)

	report, err = replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, preparers)
	require.NoError(t, err)
	assert.Equal(t, replay.Preparing{Message: "compiling pipeline", Progress: 0.5}, report.Progress.Pending["draw"])
	assert.Empty(t, dev.Submits())

	report, err = replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, preparers)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 3, draw.Steps())
}

func TestFrame_OperationWithoutPreparer(t *testing.T) {
	plan := compile(t)

	for name, preparers := range map[string]map[ir.Name]replay.Preparer{
		"upload only": {"upload": replay.NewMockPreparer(replay.Ready{})},
		"none":        nil,
	} {
		t.Run(name, func(t *testing.T) {
			dev := &replay.MockDevice{}
			report, err := replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, preparers)
			require.NoError(t, err)
			assert.Empty(t, report.Progress.Pending)
			assert.Equal(t, 2, report.Submitted)
			assert.Len(t, dev.Submits(), 2)
		})
	}
}

func TestFrame_PreparationFailed(t *testing.T) {
	plan := compile(t)
	boom := errors.New("shader did not compile")
	preparers := readyPreparers()
	preparers["draw"] = replay.NewMockPreparer(replay.PreparationFailed{Err: boom})

	_, err := replay.Frame(t.Context(), plan, &replay.MockDevice{}, replay.MockRecorder{}, preparers)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	var perr *replay.PreparationError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, ir.Name("draw"), perr.Operation)
}

func TestFrame_SubmitError(t *testing.T) {
	plan := compile(t)
	dev := &replay.MockDevice{Err: errors.New("device lost")}

	_, err := replay.Frame(t.Context(), plan, dev, replay.MockRecorder{}, readyPreparers())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "submitting transfer#1")
	assert.Len(t, dev.Submits(), 1)
}

func TestFence(t *testing.T) {
	f := replay.NewFence()
	f.Signal(nil)
	f.Signal(errors.New("ignored"))
	assert.NoError(t, f.Wait(t.Context()))

	pending := replay.NewFence()
	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, pending.Wait(ctx), context.DeadlineExceeded)
}
