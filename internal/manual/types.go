// Package manual defines the cached interaction-sequence model: ordered
// replayable steps keyed by a generalized URL pattern, task type and
// platform, with a health score gating cache eligibility.
package manual

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Action is the kind of interaction a step performs.
type Action string

const (
	ActionClick    Action = "click"
	ActionFill     Action = "fill"
	ActionSelect   Action = "select"
	ActionCheck    Action = "check"
	ActionUncheck  Action = "uncheck"
	ActionHover    Action = "hover"
	ActionPress    Action = "press"
	ActionNavigate Action = "navigate"
	ActionWait     Action = "wait"
	ActionScroll   Action = "scroll"
)

var knownActions = map[Action]bool{
	ActionClick: true, ActionFill: true, ActionSelect: true,
	ActionCheck: true, ActionUncheck: true, ActionHover: true,
	ActionPress: true, ActionNavigate: true, ActionWait: true,
	ActionScroll: true,
}

// Valid reports whether a is one of the persisted action kinds.
func (a Action) Valid() bool { return knownActions[a] }

// Source records how a manual entered the cache.
type Source string

const (
	SourceRecorded Source = "recorded"
	SourceImported Source = "imported"
	SourceTemplate Source = "template"
)

// PlatformOther is the generic platform sentinel; manuals tagged with it
// match lookups for any platform.
const PlatformOther = "other"

// ImportedSeedHealth is the initial trust given to manuals converted from a
// third-party catalog, lower than the 1.0 of a directly recorded trace.
const ImportedSeedHealth = 0.8

// LocatorDescriptor describes how to find an element through independent
// strategies, tried in a fixed priority order by the resolver. At least one
// field must be set.
type LocatorDescriptor struct {
	TestID    string `json:"testId,omitempty"`
	Role      string `json:"role,omitempty"`
	Name      string `json:"name,omitempty"`
	AriaLabel string `json:"ariaLabel,omitempty"`
	ID        string `json:"id,omitempty"`
	Text      string `json:"text,omitempty"`
	CSS       string `json:"css,omitempty"`
	XPath     string `json:"xpath,omitempty"`
}

// Empty reports whether no strategy is set.
func (d LocatorDescriptor) Empty() bool {
	return d.TestID == "" && d.Role == "" && d.Name == "" && d.AriaLabel == "" &&
		d.ID == "" && d.Text == "" && d.CSS == "" && d.XPath == ""
}

// Validate rejects descriptors with no usable strategy.
func (d LocatorDescriptor) Validate() error {
	if d.Empty() {
		return errors.New("locator descriptor has no strategy set")
	}
	return nil
}

// Step is one ordered action in a manual. Value may contain a {{field}}
// placeholder substituted with caller profile data at replay time.
type Step struct {
	Order        int               `json:"order"`
	Locator      LocatorDescriptor `json:"locator"`
	Action       Action            `json:"action"`
	Value        string            `json:"value,omitempty"`
	WaitAfter    int               `json:"waitAfter,omitempty"` // milliseconds
	Verification string            `json:"verification,omitempty"`
	HealthScore  float64           `json:"healthScore"`
}

// Validate checks a single step in isolation.
func (s Step) Validate() error {
	if s.Order < 0 {
		return fmt.Errorf("step order %d is negative", s.Order)
	}
	if !s.Action.Valid() {
		return fmt.Errorf("unknown action %q", s.Action)
	}
	if s.HealthScore < 0 || s.HealthScore > 1 {
		return fmt.Errorf("step health score %v out of [0,1]", s.HealthScore)
	}
	// Navigate, wait and scroll steps act on the page itself; everything
	// else needs a resolvable target.
	switch s.Action {
	case ActionNavigate, ActionWait, ActionScroll:
		return nil
	}
	return s.Locator.Validate()
}

// Manual is a cached, ordered sequence of interaction steps proven to
// accomplish a task on a class of pages.
type Manual struct {
	ID          string    `json:"id"`
	URLPattern  string    `json:"url_pattern"`
	TaskPattern string    `json:"task_pattern"`
	Platform    string    `json:"platform"`
	Steps       []Step    `json:"steps"`
	HealthScore float64   `json:"health_score"`
	Source      Source    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// New builds a recorded manual from a concrete URL, generalizing the URL
// into a reusable pattern and seeding full trust.
func New(rawURL, taskType, platform string, steps []Step) (*Manual, error) {
	pattern, err := URLToPattern(rawURL)
	if err != nil {
		return nil, fmt.Errorf("generalize url: %w", err)
	}
	if platform == "" {
		platform = PlatformOther
	}
	now := time.Now().UTC()
	m := &Manual{
		ID:          uuid.NewString(),
		URLPattern:  pattern,
		TaskPattern: taskType,
		Platform:    platform,
		Steps:       steps,
		HealthScore: 1.0,
		Source:      SourceRecorded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Validate enforces the manual invariants: non-empty ordered steps with
// unique order values, known enums and bounded health scores.
func (m *Manual) Validate() error {
	if m.ID == "" {
		return errors.New("manual id is empty")
	}
	if m.URLPattern == "" {
		return errors.New("manual url_pattern is empty")
	}
	if m.TaskPattern == "" {
		return errors.New("manual task_pattern is empty")
	}
	if len(m.Steps) == 0 {
		return errors.New("manual has no steps")
	}
	if m.HealthScore < 0 || m.HealthScore > 1 {
		return fmt.Errorf("manual health score %v out of [0,1]", m.HealthScore)
	}
	switch m.Source {
	case SourceRecorded, SourceImported, SourceTemplate:
	default:
		return fmt.Errorf("unknown manual source %q", m.Source)
	}
	seen := make(map[int]bool, len(m.Steps))
	for i, s := range m.Steps {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
		if seen[s.Order] {
			return fmt.Errorf("duplicate step order %d", s.Order)
		}
		seen[s.Order] = true
	}
	return nil
}

// OrderedSteps returns the steps sorted by replay order.
func (m *Manual) OrderedSteps() []Step {
	out := make([]Step, len(m.Steps))
	copy(out, m.Steps)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}

var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// Render substitutes {{field}} placeholders in value with the caller's
// profile data. A referenced field missing from userData is an error so the
// replaying step can be recorded as failed rather than typing the raw
// placeholder into a form.
func Render(value string, userData map[string]string) (string, error) {
	var missing error
	out := placeholderRe.ReplaceAllStringFunc(value, func(tok string) string {
		field := placeholderRe.FindStringSubmatch(tok)[1]
		v, ok := userData[field]
		if !ok {
			if missing == nil {
				missing = fmt.Errorf("profile field %q not supplied", field)
			}
			return tok
		}
		return v
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// Templatize replaces a literal value with a {{field}} placeholder when it
// exactly matches a known profile field, so recorded traces stay reusable
// across people. Field names are checked in sorted order to keep the result
// deterministic when two fields hold the same value.
func Templatize(value string, userData map[string]string) string {
	if value == "" {
		return value
	}
	fields := make([]string, 0, len(userData))
	for k := range userData {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for _, f := range fields {
		if userData[f] == value {
			return "{{" + f + "}}"
		}
	}
	return value
}
