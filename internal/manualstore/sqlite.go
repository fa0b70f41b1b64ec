package manualstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/formpilot/formpilot/internal/manual"
)

// SQLite stores manuals in a single table, steps as a JSON column. rowid
// order stands in for insertion order on lookup ties.
type SQLite struct {
	db  *sql.DB
	log *zap.Logger
}

// NewSQLite opens (or creates) the database at path. Use ":memory:" in
// tests.
func NewSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open manual db: %w", err)
	}
	s := &SQLite{db: db, log: log}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS manuals (
		id TEXT PRIMARY KEY,
		url_pattern TEXT NOT NULL,
		task_pattern TEXT NOT NULL,
		platform TEXT NOT NULL,
		source TEXT NOT NULL,
		health_score REAL NOT NULL,
		steps TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_manuals_task ON manuals(task_pattern, platform);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize manual schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Lookup(url, taskType, platform string) (*manual.Manual, error) {
	rows, err := s.db.Query(`
		SELECT id, url_pattern, task_pattern, platform, source, health_score, steps, created_at, updated_at
		FROM manuals
		WHERE task_pattern = ? AND (platform = ? OR platform = ?) AND health_score > 0
		ORDER BY rowid ASC`,
		taskType, platform, manual.PlatformOther)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	candidates, err := s.scan(rows)
	if err != nil {
		return nil, err
	}
	return bestMatch(candidates, url, taskType, platform), nil
}

func (s *SQLite) Save(m *manual.Manual) error {
	if err := m.Validate(); err != nil {
		return err
	}
	steps, err := json.Marshal(m.Steps)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO manuals (id, url_pattern, task_pattern, platform, source, health_score, steps, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url_pattern = excluded.url_pattern,
			task_pattern = excluded.task_pattern,
			platform = excluded.platform,
			source = excluded.source,
			health_score = excluded.health_score,
			steps = excluded.steps,
			updated_at = excluded.updated_at`,
		m.ID, m.URLPattern, m.TaskPattern, m.Platform, string(m.Source),
		m.HealthScore, string(steps),
		m.CreatedAt.UTC().Format(time.RFC3339Nano),
		m.UpdatedAt.UTC().Format(time.RFC3339Nano))
	return err
}

func (s *SQLite) GetAll() ([]*manual.Manual, error) {
	rows, err := s.db.Query(`
		SELECT id, url_pattern, task_pattern, platform, source, health_score, steps, created_at, updated_at
		FROM manuals ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.scan(rows)
}

func (s *SQLite) Remove(id string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM manuals WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// scan decodes rows, skipping entries whose steps column no longer parses.
func (s *SQLite) scan(rows *sql.Rows) ([]*manual.Manual, error) {
	var out []*manual.Manual
	for rows.Next() {
		var m manual.Manual
		var source, steps, created, updated string
		if err := rows.Scan(&m.ID, &m.URLPattern, &m.TaskPattern, &m.Platform,
			&source, &m.HealthScore, &steps, &created, &updated); err != nil {
			return nil, err
		}
		m.Source = manual.Source(source)
		if err := json.Unmarshal([]byte(steps), &m.Steps); err != nil {
			s.log.Warn("skipping manual with corrupt steps", zap.String("id", m.ID), zap.Error(err))
			continue
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			m.CreatedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, updated); err == nil {
			m.UpdatedAt = t
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}
