// Package engine composes the cache-first execution flow: replay a stored
// manual when one matches, otherwise escalate through the layer stack, and
// record successful runs back into the cache.
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/adapter"
	"github.com/formpilot/formpilot/internal/cookbook"
	"github.com/formpilot/formpilot/internal/layers"
	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/manualstore"
	"github.com/formpilot/formpilot/internal/page"
	"github.com/formpilot/formpilot/internal/recorder"
)

// Mode says which path completed the task.
type Mode string

const (
	// ModeCookbook: a cached manual replayed successfully.
	ModeCookbook Mode = "cookbook"
	// ModeLayered: the cheapest layer handled every page.
	ModeLayered Mode = "layered"
	// ModeEscalated: at least one page needed a higher layer.
	ModeEscalated Mode = "escalated"
)

// DefaultBudget is the per-task spend ceiling when the caller does not
// override it.
const DefaultBudget = 0.50

// Params describes one task.
type Params struct {
	Page     page.Page
	Adapter  adapter.Adapter
	Mutex    *adapter.ActMutex
	Tracker  adapter.CostTracker
	URL      string
	TaskType string
	Platform string
	Goal     string
	Profile  map[string]string
	// Seed, when set, is tried before any store lookup.
	Seed   *manual.Manual
	Budget float64
}

// Result is the sole contract exposed to the surrounding job executor.
type Result struct {
	Success         bool
	Mode            Mode
	State           layers.State
	TotalCost       float64
	PagesProcessed  int
	ActionsExecuted int
	ActionsVerified int
	ActionsFailed   int
	Errors          []string
}

// Engine wires the store, replay executor and orchestrator together.
type Engine struct {
	store    manualstore.Store
	cookbook *cookbook.Executor
	orch     *layers.Orchestrator
	log      *zap.Logger
}

// New builds an engine. store may be nil to disable the cache entirely.
func New(store manualstore.Store, orch *layers.Orchestrator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:    store,
		cookbook: cookbook.New(store, log),
		orch:     orch,
		log:      log,
	}
}

// Execute runs one task to a structured result. It never lets an internal
// failure escape: panics and orchestrator errors land in Errors, because
// the calling job executor expects a result, not a stack trace.
func (e *Engine) Execute(ctx context.Context, params Params) (res *Result) {
	res = &Result{}
	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Errors = append(res.Errors, fmt.Sprintf("internal error: %v", r))
			e.log.Error("recovered from panic during execution", zap.Any("panic", r))
		}
	}()

	budget := params.Budget
	if budget <= 0 {
		budget = DefaultBudget
	}
	if params.Tracker != nil {
		params.Tracker.SetMode("auto")
	}

	// Cache-first: a matching manual replays at near-zero cost.
	m := params.Seed
	if m == nil && e.store != nil {
		found, err := e.store.Lookup(params.URL, params.TaskType, params.Platform)
		if err != nil {
			e.log.Warn("manual lookup failed, falling through to layers", zap.Error(err))
		} else {
			m = found
		}
	}
	if m != nil {
		if params.Tracker != nil {
			params.Tracker.RecordModeStep(string(ModeCookbook))
		}
		cr := e.cookbook.Execute(ctx, params.Page, m, params.Profile)
		res.TotalCost += cr.CostIncurred
		if cr.Success {
			res.Success = true
			res.Mode = ModeCookbook
			res.State = layers.StateSucceeded
			res.PagesProcessed = 1
			res.ActionsExecuted = cr.ActionsAttempted
			res.ActionsVerified = cr.ActionsVerified
			res.ActionsFailed = cr.ActionsFailed
			return res
		}
		// Replay failure is a cache miss, not a task failure.
		if cr.Err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("manual replay failed: %v", cr.Err))
		}
		e.log.Info("manual replay missed, escalating to layers",
			zap.String("manual", m.ID),
			zap.Int("failed", cr.ActionsFailed))
	}

	rec := recorder.New(params.Page, params.Profile, e.log)
	rec.Start()

	lc := &layers.Context{
		Page:     params.Page,
		Adapter:  params.Adapter,
		Mutex:    params.Mutex,
		Profile:  params.Profile,
		Platform: params.Platform,
		Goal:     params.Goal,
		Seed:     m,
		Recorder: rec,
		Tracker:  params.Tracker,
		Log:      e.log,
	}
	rr := e.orch.Run(ctx, lc, budget)
	rec.StopRecording()

	res.Success = rr.Success
	res.State = rr.State
	res.TotalCost += rr.TotalCost
	res.PagesProcessed = rr.PagesProcessed
	res.ActionsExecuted = rr.ActionsExecuted
	res.ActionsVerified = rr.ActionsVerified
	res.ActionsFailed = rr.ActionsFailed
	res.Errors = append(res.Errors, rr.Errors...)
	if rr.Escalated {
		res.Mode = ModeEscalated
	} else {
		res.Mode = ModeLayered
	}

	if rr.Success {
		e.saveTrace(rec, params)
	}
	return res
}

// saveTrace turns a successful session's captured actions into a new
// manual. Failure here never fails the task.
func (e *Engine) saveTrace(rec *recorder.Recorder, params Params) {
	if e.store == nil {
		return
	}
	m, err := rec.BuildManual(params.URL, params.TaskType, params.Platform)
	if err != nil {
		e.log.Warn("could not build manual from trace", zap.Error(err))
		return
	}
	if m == nil {
		return
	}
	if err := e.store.Save(m); err != nil {
		e.log.Warn("could not persist recorded manual", zap.Error(err))
		return
	}
	e.log.Info("recorded new manual",
		zap.String("manual", m.ID),
		zap.String("pattern", m.URLPattern),
		zap.Int("steps", len(m.Steps)))
}
