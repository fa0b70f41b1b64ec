// Package recorder converts a live automation session's primitive actions
// into a replayable manual. It consumes a typed action feed (it does not own
// the event source), resolves acted-upon elements through the page driver,
// and templatizes values that match known profile fields.
package recorder

import (
	"sync"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
)

// Kind discriminates primitive session actions.
type Kind string

const (
	KindClick    Kind = "click"
	KindType     Kind = "type"
	KindKey      Kind = "key"
	KindScroll   Kind = "scroll"
	KindNavigate Kind = "navigate"
)

// Primitive is one observed session action. Only the fields relevant to its
// Kind are set.
type Primitive struct {
	Kind   Kind
	X, Y   int     // click hit-test coordinates
	Text   string  // typed text
	Key    string  // pressed key name
	URL    string  // navigation target
	DeltaY float64 // scroll distance
}

// rootLocator is the conventional target for page-level steps (navigate,
// scroll) that have no element of their own.
var rootLocator = manual.LocatorDescriptor{CSS: "body"}

// Recorder accumulates steps in capture order. It degrades gracefully:
// events whose element cannot be resolved are skipped, and a partial trace
// is still usable.
type Recorder struct {
	mu        sync.Mutex
	page      page.Page
	profile   map[string]string
	log       *zap.Logger
	recording bool
	steps     []manual.Step
	next      int
}

// New returns a recorder bound to one page and one caller profile.
func New(p page.Page, profile map[string]string, log *zap.Logger) *Recorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Recorder{page: p, profile: profile, log: log}
}

// Start begins (or resumes) capturing.
func (r *Recorder) Start() {
	r.mu.Lock()
	r.recording = true
	r.mu.Unlock()
}

// StopRecording ends capture; the accumulated trace stays available.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	r.recording = false
	r.mu.Unlock()
}

// IsRecording reports whether Observe currently captures events.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Trace returns the captured steps in order.
func (r *Recorder) Trace() []manual.Step {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]manual.Step, len(r.steps))
	copy(out, r.steps)
	return out
}

// Observe converts one primitive action into a step. Mouse actions resolve
// their element by point hit-testing; keyboard actions use the focused
// element. Extraction failures skip the event rather than aborting the
// session.
func (r *Recorder) Observe(a Primitive) {
	if !r.IsRecording() {
		return
	}
	switch a.Kind {
	case KindClick:
		info, err := r.page.ElementFromPoint(a.X, a.Y)
		if err != nil || info == nil {
			r.log.Debug("skip click event, hit-test failed", zap.Error(err))
			return
		}
		loc, ok := locatorFromInfo(*info)
		if !ok {
			r.log.Debug("skip click event, no usable locator")
			return
		}
		r.append(manual.Step{Locator: loc, Action: manual.ActionClick})
	case KindType:
		info, err := r.page.FocusedElement()
		if err != nil || info == nil {
			r.log.Debug("skip type event, no focused element", zap.Error(err))
			return
		}
		loc, ok := locatorFromInfo(*info)
		if !ok {
			r.log.Debug("skip type event, no usable locator")
			return
		}
		r.append(manual.Step{
			Locator:      loc,
			Action:       manual.ActionFill,
			Value:        manual.Templatize(a.Text, r.profile),
			Verification: "value",
		})
	case KindKey:
		info, err := r.page.FocusedElement()
		if err != nil || info == nil {
			r.log.Debug("skip key event, no focused element", zap.Error(err))
			return
		}
		loc, ok := locatorFromInfo(*info)
		if !ok {
			return
		}
		r.append(manual.Step{Locator: loc, Action: manual.ActionPress, Value: a.Key})
	case KindScroll:
		r.append(manual.Step{Locator: rootLocator, Action: manual.ActionScroll})
	case KindNavigate:
		r.append(manual.Step{Locator: rootLocator, Action: manual.ActionNavigate, Value: a.URL})
	default:
		r.log.Debug("skip unknown primitive", zap.String("kind", string(a.Kind)))
	}
}

// RecordStep captures a step whose element the caller already resolved
// (used by layers that act through selectors rather than raw input events).
func (r *Recorder) RecordStep(loc manual.LocatorDescriptor, action manual.Action, value string) {
	if !r.IsRecording() {
		return
	}
	if loc.Empty() {
		switch action {
		case manual.ActionNavigate, manual.ActionScroll, manual.ActionWait:
			loc = rootLocator
		default:
			return
		}
	}
	step := manual.Step{Locator: loc, Action: action, Value: manual.Templatize(value, r.profile)}
	if action == manual.ActionFill {
		step.Verification = "value"
	}
	r.append(step)
}

// BuildManual converts the trace into a manual for the given task. Returns
// nil when nothing was captured.
func (r *Recorder) BuildManual(url, taskType, platform string) (*manual.Manual, error) {
	steps := r.Trace()
	if len(steps) == 0 {
		return nil, nil
	}
	return manual.New(url, taskType, platform, steps)
}

func (r *Recorder) append(step manual.Step) {
	r.mu.Lock()
	step.Order = r.next
	step.HealthScore = 1.0
	r.next++
	r.steps = append(r.steps, step)
	r.mu.Unlock()
}

// locatorFromInfo builds a descriptor from observed attributes, preferring
// stable automation attributes over computed structural paths.
func locatorFromInfo(info page.ElementInfo) (manual.LocatorDescriptor, bool) {
	d := manual.LocatorDescriptor{}
	switch {
	case info.TestID != "":
		d.TestID = info.TestID
	case info.ID != "":
		d.ID = info.ID
	case info.Name != "":
		d.Name = info.Name
	case info.AriaLabel != "":
		d.AriaLabel = info.AriaLabel
	case info.CSSPath != "":
		d.CSS = info.CSSPath
	case info.XPath != "":
		d.XPath = info.XPath
	default:
		return d, false
	}
	return d, true
}
