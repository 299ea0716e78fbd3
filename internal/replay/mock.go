package replay

import (
	"context"
	"sync"

	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

// SubmitRecord captures a single Submit invocation for assertions.
type SubmitRecord struct {
	Queue ir.QueueCategory
	Batch *Batch
}

// MockDevice implements Device, records every batch and signals fences
// immediately. Err, when set, is returned from every Submit.
type MockDevice struct {
	mu      sync.Mutex
	submits []SubmitRecord
	Err     error
}

func (d *MockDevice) Submit(ctx context.Context, queue ir.QueueCategory, batch *Batch) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submits = append(d.submits, SubmitRecord{Queue: queue, Batch: batch})
	if d.Err != nil {
		return d.Err
	}
	if batch.Fence != nil {
		batch.Fence.Signal(nil)
	}
	return nil
}

// Submits returns a snapshot of recorded Submit invocations.
func (d *MockDevice) Submits() []SubmitRecord {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]SubmitRecord, len(d.submits))
	copy(out, d.submits)
	return out
}

// MockRecorder implements Recorder with buffers that keep the recorded
// command ids.
type MockRecorder struct{}

func (MockRecorder) Begin(ctx context.Context, s *syncgraph.Submission) (CommandBuffer, error) {
	return &MockCommandBuffer{Submission: s}, nil
}

type MockCommandBuffer struct {
	Submission *syncgraph.Submission
	Commands   []syncgraph.CommandID
	Ended      bool
}

func (b *MockCommandBuffer) Record(ctx context.Context, cmd syncgraph.Command) error {
	b.Commands = append(b.Commands, cmd.ID())
	return nil
}

func (b *MockCommandBuffer) End(ctx context.Context) error {
	b.Ended = true
	return nil
}

// MockPreparer returns the seeded states in order and repeats the last one.
type MockPreparer struct {
	mu     sync.Mutex
	states []State
	steps  int
}

func NewMockPreparer(states ...State) *MockPreparer {
	cp := make([]State, len(states))
	copy(cp, states)
	return &MockPreparer{states: cp}
}

func (p *MockPreparer) Step(ctx context.Context) State {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.steps++
	if len(p.states) == 0 {
		return Ready{}
	}
	st := p.states[0]
	if len(p.states) > 1 {
		p.states = p.states[1:]
	}
	return st
}

// Steps returns how often Step was called.
func (p *MockPreparer) Steps() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.steps
}
