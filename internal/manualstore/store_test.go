package manualstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/manual"
)

func newManual(t *testing.T, url, task, platform string, health float64) *manual.Manual {
	t.Helper()
	m, err := manual.New(url, task, platform, []manual.Step{
		{Order: 0, Locator: manual.LocatorDescriptor{CSS: "#firstName"}, Action: manual.ActionFill, Value: "{{firstName}}", HealthScore: 1},
		{Order: 1, Locator: manual.LocatorDescriptor{CSS: "#submit"}, Action: manual.ActionClick, HealthScore: 1},
	})
	require.NoError(t, err)
	m.HealthScore = health
	return m
}

// eachStore runs fn against every Store implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("file", func(t *testing.T) {
		s, err := NewFile(t.TempDir(), nil)
		require.NoError(t, err)
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLite(":memory:", nil)
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		fn(t, s)
	})
}

func TestSaveIsIdempotentUpsert(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		m := newManual(t, "https://example.com/apply", "job_application", "workday", 1)
		require.NoError(t, s.Save(m))
		require.NoError(t, s.Save(m))

		all, err := s.GetAll()
		require.NoError(t, err)
		require.Len(t, all, 1)

		m.HealthScore = 0.6
		require.NoError(t, s.Save(m))
		all, err = s.GetAll()
		require.NoError(t, err)
		require.Len(t, all, 1)
		assert.InDelta(t, 0.6, all[0].HealthScore, 1e-9)
	})
}

func TestLookup(t *testing.T) {
	const url = "https://acme.myworkdayjobs.com/en-US/careers/job/NYC/apply"

	eachStore(t, func(t *testing.T, s Store) {
		weak := newManual(t, url, "job_application", "workday", 0.5)
		strong := newManual(t, url, "job_application", "workday", 0.9)
		otherTask := newManual(t, url, "newsletter_signup", "workday", 1)
		otherPlatform := newManual(t, url, "job_application", "greenhouse", 1)
		generic := newManual(t, "https://example.com/forms/apply", "job_application", "", 1)
		dead := newManual(t, url, "job_application", "workday", 0)

		for _, m := range []*manual.Manual{weak, strong, otherTask, otherPlatform, generic, dead} {
			// Validate rejects zero health only below the bound, not at it.
			require.NoError(t, s.Save(m))
		}

		t.Run("highest health wins", func(t *testing.T) {
			got, err := s.Lookup(url, "job_application", "workday")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, strong.ID, got.ID)
		})

		t.Run("task must match exactly", func(t *testing.T) {
			got, err := s.Lookup(url, "unknown_task", "workday")
			require.NoError(t, err)
			assert.Nil(t, got)
		})

		t.Run("platform mismatch excluded, generic platform allowed", func(t *testing.T) {
			got, err := s.Lookup("https://example.com/forms/apply", "job_application", "lever")
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, generic.ID, got.ID)
		})

		t.Run("url outside the pattern misses", func(t *testing.T) {
			got, err := s.Lookup("https://acme.myworkdayjobs.com/en-US/careers", "job_application", "workday")
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	})
}

func TestLookupExcludesZeroHealth(t *testing.T) {
	const url = "https://example.com/apply"

	eachStore(t, func(t *testing.T, s Store) {
		dead := newManual(t, url, "job_application", "workday", 0)
		require.NoError(t, s.Save(dead))

		got, err := s.Lookup(url, "job_application", "workday")
		require.NoError(t, err)
		assert.Nil(t, got, "zero-health manuals never come back from lookup")
	})
}

func TestRemove(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		m := newManual(t, "https://example.com/apply", "job_application", "", 1)
		require.NoError(t, s.Save(m))

		ok, err := s.Remove(m.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Remove(m.ID)
		require.NoError(t, err)
		assert.False(t, ok, "second remove reports nothing deleted")

		all, err := s.GetAll()
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestSaveRejectsInvalidManual(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		m := newManual(t, "https://example.com/apply", "job_application", "", 1)
		m.Steps = nil
		assert.Error(t, s.Save(m))
	})
}

func TestLookupReturnsCopy(t *testing.T) {
	s := NewMemory()
	m := newManual(t, "https://example.com/apply", "job_application", "", 1)
	require.NoError(t, s.Save(m))

	got, err := s.Lookup("https://example.com/apply", "job_application", "")
	require.NoError(t, err)
	require.NotNil(t, got)
	got.Steps[0].Value = "mutated"

	again, err := s.Lookup("https://example.com/apply", "job_application", "")
	require.NoError(t, err)
	assert.Equal(t, "{{firstName}}", again.Steps[0].Value, "caller mutations do not leak into the store")
}
