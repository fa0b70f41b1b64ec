// Package manualstore persists manuals and answers generalized-key lookups.
// Three implementations share the contract: an in-memory store for tests and
// single runs, a filesystem JSON store, and a SQLite store.
package manualstore

import (
	"sort"

	"github.com/formpilot/formpilot/internal/manual"
)

// Store is the read/write contract the engine depends on. Save is an
// idempotent upsert keyed by manual ID; Lookup returns nil (not an error)
// when nothing matches. Concurrent saves of the same manual are
// last-writer-wins; health drift from an occasional lost update is
// self-correcting.
type Store interface {
	Lookup(url, taskType, platform string) (*manual.Manual, error)
	Save(m *manual.Manual) error
	GetAll() ([]*manual.Manual, error)
	Remove(id string) (bool, error)
}

// bestMatch applies the lookup rule over candidates that are already in
// store iteration order: exact task match, platform match or the generic
// sentinel, positive health, URL pattern match; then the highest health
// wins, ties keeping iteration order.
func bestMatch(candidates []*manual.Manual, url, taskType, platform string) *manual.Manual {
	var matched []*manual.Manual
	for _, m := range candidates {
		if m.TaskPattern != taskType {
			continue
		}
		if m.Platform != platform && m.Platform != manual.PlatformOther {
			continue
		}
		if m.HealthScore <= 0 {
			continue
		}
		if !manual.MatchesPattern(url, m.URLPattern) {
			continue
		}
		matched = append(matched, m)
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].HealthScore > matched[j].HealthScore
	})
	return matched[0]
}

func clone(m *manual.Manual) *manual.Manual {
	cp := *m
	cp.Steps = make([]manual.Step, len(m.Steps))
	copy(cp.Steps, m.Steps)
	return &cp
}
