package manual

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

// CatalogEntry is a third-party action-catalog record describing the
// elements of a known form and the order constraints between them. Entries
// are converted into manuals seeded below full trust.
type CatalogEntry struct {
	URL      string           `json:"url"`
	TaskType string           `json:"task_type"`
	Platform string           `json:"platform,omitempty"`
	Elements []CatalogElement `json:"elements"`
}

// CatalogElement is one element of a catalog entry. DependsOn names other
// elements that must be acted on first.
type CatalogElement struct {
	Name      string            `json:"name"`
	Locator   LocatorDescriptor `json:"locator"`
	Action    Action            `json:"action"`
	Value     string            `json:"value,omitempty"`
	DependsOn []string          `json:"depends_on,omitempty"`
}

// FromCatalog converts a catalog entry into an imported manual. Elements
// are ordered by their dependencies (stable within a dependency rank) and
// the manual is seeded at ImportedSeedHealth.
func FromCatalog(e CatalogEntry) (*Manual, error) {
	if len(e.Elements) == 0 {
		return nil, fmt.Errorf("catalog entry for %q has no elements", e.URL)
	}
	ordered, err := sortByDependency(e.Elements)
	if err != nil {
		return nil, err
	}

	pattern, err := URLToPattern(e.URL)
	if err != nil {
		return nil, fmt.Errorf("generalize url: %w", err)
	}
	platform := e.Platform
	if platform == "" {
		platform = PlatformOther
	}

	steps := make([]Step, len(ordered))
	for i, el := range ordered {
		steps[i] = Step{
			Order:       i,
			Locator:     el.Locator,
			Action:      el.Action,
			Value:       el.Value,
			HealthScore: ImportedSeedHealth,
		}
	}

	now := time.Now().UTC()
	m := &Manual{
		ID:          uuid.NewString(),
		URLPattern:  pattern,
		TaskPattern: e.TaskType,
		Platform:    platform,
		Steps:       steps,
		HealthScore: ImportedSeedHealth,
		Source:      SourceImported,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// sortByDependency performs a stable topological sort (Kahn's algorithm,
// breaking ties by catalog order).
func sortByDependency(elements []CatalogElement) ([]CatalogElement, error) {
	index := make(map[string]int, len(elements))
	for i, el := range elements {
		if el.Name == "" {
			return nil, fmt.Errorf("catalog element %d has no name", i)
		}
		if _, dup := index[el.Name]; dup {
			return nil, fmt.Errorf("duplicate catalog element %q", el.Name)
		}
		index[el.Name] = i
	}

	indegree := make([]int, len(elements))
	dependents := make([][]int, len(elements))
	for i, el := range elements {
		for _, dep := range el.DependsOn {
			j, ok := index[dep]
			if !ok {
				return nil, fmt.Errorf("element %q depends on unknown %q", el.Name, dep)
			}
			indegree[i]++
			dependents[j] = append(dependents[j], i)
		}
	}

	ready := make([]int, 0, len(elements))
	for i, d := range indegree {
		if d == 0 {
			ready = append(ready, i)
		}
	}
	sort.Ints(ready)

	out := make([]CatalogElement, 0, len(elements))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		out = append(out, elements[i])
		for _, j := range dependents[i] {
			indegree[j]--
			if indegree[j] == 0 {
				ready = append(ready, j)
			}
		}
		sort.Ints(ready)
	}
	if len(out) != len(elements) {
		return nil, fmt.Errorf("catalog entry has a dependency cycle")
	}
	return out, nil
}
