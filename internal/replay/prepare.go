package replay

import (
	"context"
	"fmt"
	"slices"

	"github.com/hanpama/rendergraph/internal/ctxlog"
	"github.com/hanpama/rendergraph/internal/ir"
)

// State is the preparation state of one operation. The set of variants is
// closed: Uninitialized, Preparing, Ready and PreparationFailed.
type State interface {
	isState()
}

type Uninitialized struct{}

// Preparing reports work in progress. Progress is in [0, 1].
type Preparing struct {
	Message  string
	Progress float64
}

type Ready struct{}

type PreparationFailed struct {
	Err error
}

func (Uninitialized) isState()     {}
func (Preparing) isState()         {}
func (Ready) isState()             {}
func (PreparationFailed) isState() {}

// Preparer readies the resources an operation needs before it can be
// recorded, such as pipelines or uploaded assets. Step is called at most
// once per frame and must not block.
type Preparer interface {
	Step(ctx context.Context) State
}

// PreparationError reports the first operation whose preparation failed.
type PreparationError struct {
	Operation ir.Name
	Err       error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("preparing operation %q: %v", e.Operation, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

// Progress summarizes one round of preparation.
type Progress struct {
	// Pending lists the operations that are not ready yet, by name.
	Pending map[ir.Name]State
}

// Ready reports whether every operation is ready.
func (p *Progress) Ready() bool { return len(p.Pending) == 0 }

// Prepare steps every preparer once, in operation name order. It stops at
// the first failure. Operations without a preparer need no preparation and
// never appear in Pending.
func Prepare(ctx context.Context, preparers map[ir.Name]Preparer) (*Progress, error) {
	names := make([]ir.Name, 0, len(preparers))
	for n := range preparers {
		names = append(names, n)
	}
	slices.Sort(names)

	progress := &Progress{Pending: make(map[ir.Name]State)}
	for _, n := range names {
		switch st := preparers[n].Step(ctx).(type) {
		case Ready:
		case Uninitialized, Preparing:
			progress.Pending[n] = st
		case PreparationFailed:
			return nil, &PreparationError{Operation: n, Err: st.Err}
		default:
			panic("unreachable")
		}
	}
	ctxlog.FromContext(ctx).Debug("stepped preparers",
		"operations", len(names),
		"pending", len(progress.Pending),
	)
	return progress, nil
}
