package manualstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/formpilot/formpilot/internal/manual"
)

// File stores one JSON document per manual in a directory. A corrupted file
// is skipped (and logged), never fatal to the lookup.
type File struct {
	dir string
	mu  sync.Mutex
	log *zap.Logger
}

// NewFile creates the directory if needed.
func NewFile(dir string, log *zap.Logger) (*File, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create manual store dir: %w", err)
	}
	return &File{dir: dir, log: log}, nil
}

func (s *File) Lookup(url, taskType, platform string) (*manual.Manual, error) {
	all, err := s.GetAll()
	if err != nil {
		return nil, err
	}
	return bestMatch(all, url, taskType, platform), nil
}

func (s *File) Save(m *manual.Manual) error {
	if err := m.Validate(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.path(m.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manual %s: %w", m.ID, err)
	}
	return os.Rename(tmp, path)
}

func (s *File) GetAll() ([]*manual.Manual, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read manual store dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*manual.Manual, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			s.log.Warn("skipping unreadable manual", zap.String("file", name), zap.Error(err))
			continue
		}
		var m manual.Manual
		if err := json.Unmarshal(data, &m); err != nil {
			s.log.Warn("skipping corrupt manual", zap.String("file", name), zap.Error(err))
			continue
		}
		if err := m.Validate(); err != nil {
			s.log.Warn("skipping invalid manual", zap.String("file", name), zap.Error(err))
			continue
		}
		out = append(out, &m)
	}
	return out, nil
}

func (s *File) Remove(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path(id))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *File) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
