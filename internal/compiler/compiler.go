// Package compiler runs the frame graph stages in order: checking, primitive
// port expansion, sync graph construction, submission partitioning and queue
// transfer promotion.
package compiler

import (
	"context"
	"log/slog"
	"time"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/eventbus"
	"github.com/hanpama/rendergraph/internal/events"
	"github.com/hanpama/rendergraph/internal/ids"
	"github.com/hanpama/rendergraph/internal/ir"
	"github.com/hanpama/rendergraph/internal/primgraph"
	"github.com/hanpama/rendergraph/internal/submission"
	"github.com/hanpama/rendergraph/internal/syncgraph"
)

// Stage names reported in events.
const (
	StageCheck     = "check"
	StagePrimGraph = "primgraph"
	StageSyncGraph = "syncgraph"
	StagePartition = "partition"
	StagePromote   = "promote"
)

// Context owns the identifier sequences of one compilation.
// A Context must not be shared between concurrent compilations.
type Context struct {
	Commands    ids.Sequence
	Submissions ids.Sequence
	Resources   ids.Sequence
}

type Options struct {
	// Logger receives the Debug lines of every stage. When nil the logger
	// already carried by the context is used.
	Logger *slog.Logger

	// Bus receives compile and stage events. When nil the global bus is used.
	Bus *eventbus.Bus
}

type Option func(*Options)

func WithLogger(l *slog.Logger) Option { return func(o *Options) { o.Logger = l } }
func WithBus(b *eventbus.Bus) Option   { return func(o *Options) { o.Bus = b } }

// Compile runs every stage with a fresh Context.
func Compile(ctx context.Context, disc ir.Discovery, entry string, opts ...Option) (*Plan, error) {
	return new(Context).Compile(ctx, disc, entry, opts...)
}

// Check runs only the graph checker.
func Check(ctx context.Context, disc ir.Discovery, entry string, opts ...Option) (*ir.Graph, error) {
	ctx, op := setup(ctx, opts)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var g *ir.Graph
	err := op.stage(ctx, StageCheck, func() (err error) {
		g, err = ir.Build(ctx, disc, entry)
		return err
	})
	return g, err
}

// Compile checks entry and lowers it into a Plan, drawing identifiers from c.
func (c *Context) Compile(ctx context.Context, disc ir.Discovery, entry string, opts ...Option) (*Plan, error) {
	ctx, op := setup(ctx, opts)
	// Cancellation is observed only before the first stage.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	eventbus.Emit(ctx, op.Bus, events.CompileStart{Entry: entry})

	plan, err := c.compile(ctx, op, disc, entry)

	finish := events.CompileFinish{Entry: entry, Err: err, Duration: time.Since(start)}
	if plan != nil {
		finish.Commands = plan.Sync.Graph.Len()
		finish.Submissions = len(plan.Sync.Submissions)
	}
	eventbus.Emit(ctx, op.Bus, finish)
	if err != nil {
		return nil, err
	}

	ctxlog.FromContext(ctx).Debug("compiled graph",
		"entry", entry,
		"commands", finish.Commands,
		"submissions", finish.Submissions,
		"duration", finish.Duration,
	)
	return plan, nil
}

func (c *Context) compile(ctx context.Context, op *Options, disc ir.Discovery, entry string) (*Plan, error) {
	plan := &Plan{Entry: entry}
	var sg *syncgraph.Graph

	err := op.stage(ctx, StageCheck, func() (err error) {
		plan.Graph, err = ir.Build(ctx, disc, entry)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = op.stage(ctx, StagePrimGraph, func() (err error) {
		plan.Ports, err = primgraph.Build(ctx, plan.Graph, &c.Resources)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = op.stage(ctx, StageSyncGraph, func() (err error) {
		sg, err = syncgraph.Build(ctx, plan.Ports, &c.Commands)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = op.stage(ctx, StagePartition, func() (err error) {
		plan.Sync, err = submission.Partition(ctx, sg, &c.Submissions)
		return err
	})
	if err != nil {
		return nil, err
	}
	err = op.stage(ctx, StagePromote, func() error {
		return submission.Promote(ctx, plan.Sync, &c.Commands)
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func setup(ctx context.Context, opts []Option) (context.Context, *Options) {
	op := &Options{}
	for _, f := range opts {
		f(op)
	}
	if op.Bus == nil {
		op.Bus = eventbus.Current()
	}
	if op.Logger != nil {
		ctx = ctxlog.WithLogger(ctx, op.Logger)
	}
	return ctx, op
}

func (op *Options) stage(ctx context.Context, name string, run func() error) error {
	start := time.Now()
	eventbus.Emit(ctx, op.Bus, events.StageStart{Stage: name})
	err := run()
	eventbus.Emit(ctx, op.Bus, events.StageFinish{Stage: name, Err: err, Duration: time.Since(start)})
	return err
}
