// Package layers implements the escalation stack: a uniform "make progress
// on this page" capability with implementations of increasing cost, and the
// orchestrator that drives them under a budget.
package layers

import (
	"context"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/adapter"
	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
	"github.com/formpilot/formpilot/internal/recorder"
)

// Attempt is one layer invocation's outcome. Advanced means the page state
// progressed and the stack should restart from the cheapest layer; Done
// means the task's terminal condition was reached during the attempt.
type Attempt struct {
	Advanced bool
	Done     bool
	Cost     float64
	Executed int
	Verified int
	Failed   int
}

// Hand is one automation backend in the escalation stack.
type Hand interface {
	Name() string
	// MaxAttemptCost is the worst case one Attempt can charge for the
	// given context. The orchestrator refuses to invoke a hand the
	// remaining budget cannot cover, so the reported total spend never
	// overshoots the budget.
	MaxAttemptCost(lc *Context) float64
	Attempt(ctx context.Context, lc *Context) (Attempt, error)
}

// Context is the per-invocation state shared between the orchestrator and
// the layers it drives. It is owned by exactly one Run call and never
// shared across concurrent tasks.
type Context struct {
	Page     page.Page
	Adapter  adapter.Adapter
	Mutex    *adapter.ActMutex
	Profile  map[string]string
	Platform string
	Goal     string
	Seed     *manual.Manual
	Recorder *recorder.Recorder
	Tracker  adapter.CostTracker
	Log      *zap.Logger

	BudgetRemaining float64
	CostSpent       float64
}

func (lc *Context) logger() *zap.Logger {
	if lc.Log == nil {
		return zap.NewNop()
	}
	return lc.Log
}

// record captures a resolved step into the trace when a recorder is
// attached.
func (lc *Context) record(loc manual.LocatorDescriptor, action manual.Action, value string) {
	if lc.Recorder != nil {
		lc.Recorder.RecordStep(loc, action, value)
	}
}
