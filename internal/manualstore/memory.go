package manualstore

import (
	"sync"

	"github.com/formpilot/formpilot/internal/manual"
)

// Memory is an in-process Store. Insertion order is preserved so lookup
// ties resolve deterministically.
type Memory struct {
	mu    sync.RWMutex
	byID  map[string]*manual.Manual
	order []string
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{byID: make(map[string]*manual.Manual)}
}

func (s *Memory) Lookup(url, taskType, platform string) (*manual.Manual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m := bestMatch(s.all(), url, taskType, platform)
	if m == nil {
		return nil, nil
	}
	return clone(m), nil
}

func (s *Memory) Save(m *manual.Manual) error {
	if err := m.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.byID[m.ID] = clone(m)
	return nil
}

func (s *Memory) GetAll() ([]*manual.Manual, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*manual.Manual, 0, len(s.byID))
	for _, m := range s.all() {
		out = append(out, clone(m))
	}
	return out, nil
}

func (s *Memory) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return false, nil
	}
	delete(s.byID, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true, nil
}

// all returns live entries in insertion order. Caller holds the lock.
func (s *Memory) all() []*manual.Manual {
	out := make([]*manual.Manual, 0, len(s.order))
	for _, id := range s.order {
		if m, ok := s.byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
