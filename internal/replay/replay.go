// Package replay drives a compiled plan on a device: it records each
// submission into a command buffer and submits the buffers in plan order,
// linking dependent submissions with semaphores.
package replay

import (
	"context"
	"fmt"
	"sync"

	"github.com/hanpama/rendergraph/internal/compiler"
	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/dag"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

// Device submits recorded work to hardware queues.
// Implementations MUST signal batch.Fence, when set, once the batch completed.
type Device interface {
	Submit(ctx context.Context, queue ir.QueueCategory, batch *Batch) error
}

// Recorder opens command buffers for submissions.
type Recorder interface {
	Begin(ctx context.Context, s *syncgraph.Submission) (CommandBuffer, error)
}

// CommandBuffer receives the commands of one submission in dependency order.
type CommandBuffer interface {
	Record(ctx context.Context, cmd syncgraph.Command) error
	End(ctx context.Context) error
}

// Semaphore orders two submissions that run on different queues.
type Semaphore struct {
	From int
	To   int
}

func (s *Semaphore) String() string { return fmt.Sprintf("%d->%d", s.From, s.To) }

// Batch is one call to Device.Submit.
type Batch struct {
	Submission *syncgraph.Submission
	Buffers    []CommandBuffer
	Wait       []*Semaphore
	Signal     []*Semaphore
	Fence      *Fence
}

// Fence is signalled by the device when the batch it was submitted with
// has completed.
type Fence struct {
	once sync.Once
	done chan struct{}
	err  error
}

func NewFence() *Fence { return &Fence{done: make(chan struct{})} }

// Signal marks the fence complete. Only the first call has an effect.
func (f *Fence) Signal(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Wait blocks until the fence is signalled or ctx is done.
func (f *Fence) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report describes what a frame did.
type Report struct {
	// Progress is the preparation state before recording.
	Progress *Progress
	// Submitted counts the batches handed to the device. It is zero when
	// some operation was not ready yet.
	Submitted  int
	Semaphores []*Semaphore
}

// Frame steps the preparers once and, when every operation is ready, replays
// the plan on dev and waits for the last batch to complete. An operation
// missing from preparers is always ready.
func Frame(ctx context.Context, plan *compiler.Plan, dev Device, rec Recorder, preparers map[ir.Name]Preparer) (*Report, error) {
	progress, err := Prepare(ctx, preparers)
	if err != nil {
		return nil, err
	}
	report := &Report{Progress: progress}
	if !progress.Ready() {
		return report, nil
	}

	order := plan.Order()
	signals := make(map[int][]*Semaphore)
	waits := make(map[int][]*Semaphore)
	for _, s := range order {
		for _, dep := range plan.WaitsFor(s) {
			sem := &Semaphore{From: dep.ID, To: s.ID}
			signals[dep.ID] = append(signals[dep.ID], sem)
			waits[s.ID] = append(waits[s.ID], sem)
			report.Semaphores = append(report.Semaphores, sem)
		}
	}

	var fence *Fence
	for i, s := range order {
		buf, err := record(ctx, plan, rec, s)
		if err != nil {
			return nil, err
		}
		batch := &Batch{Submission: s, Buffers: []CommandBuffer{buf}, Wait: waits[s.ID], Signal: signals[s.ID]}
		if i == len(order)-1 {
			fence = NewFence()
			batch.Fence = fence
		}
		if err := dev.Submit(ctx, s.Queue, batch); err != nil {
			return nil, fmt.Errorf("submitting %s#%d: %w", s.Queue, s.ID, err)
		}
		report.Submitted++
	}
	if fence != nil {
		if err := fence.Wait(ctx); err != nil {
			return nil, err
		}
	}

	ctxlog.FromContext(ctx).Debug("replayed frame",
		"submissions", report.Submitted,
		"semaphores", len(report.Semaphores),
	)
	return report, nil
}

// record fills one command buffer with the commands of s in a dependency
// respecting order.
func record(ctx context.Context, plan *compiler.Plan, rec Recorder, s *syncgraph.Submission) (CommandBuffer, error) {
	order := dag.New[syncgraph.CommandID]()
	for _, c := range plan.CommandsOf(s) {
		order.AddVertex(c.ID())
	}
	for _, e := range plan.Dependencies(s) {
		if err := order.AddEdge(e.From, e.To); err != nil {
			return nil, ir.NewInvariantError("replay", err.Error())
		}
	}

	buf, err := rec.Begin(ctx, s)
	if err != nil {
		return nil, fmt.Errorf("beginning %s#%d: %w", s.Queue, s.ID, err)
	}
	for _, id := range order.TopologicalOrder() {
		if err := buf.Record(ctx, plan.Sync.Graph.Command(id)); err != nil {
			return nil, fmt.Errorf("recording command %d: %w", id, err)
		}
	}
	if err := buf.End(ctx); err != nil {
		return nil, fmt.Errorf("ending %s#%d: %w", s.Queue, s.ID, err)
	}
	return buf, nil
}
