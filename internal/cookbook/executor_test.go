package cookbook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/manualstore"
	"github.com/formpilot/formpilot/internal/page/pagetest"
)

func applyManual(t *testing.T) *manual.Manual {
	t.Helper()
	m, err := manual.New("https://example.com/apply", "job_application", "", []manual.Step{
		{Order: 0, Locator: manual.LocatorDescriptor{CSS: "#firstName"}, Action: manual.ActionFill, Value: "{{firstName}}", Verification: "value", HealthScore: 1},
		{Order: 1, Locator: manual.LocatorDescriptor{CSS: "#submit"}, Action: manual.ActionClick, HealthScore: 1},
	})
	require.NoError(t, err)
	return m
}

func TestExecuteCacheHit(t *testing.T) {
	firstName := &pagetest.Element{}
	submit := &pagetest.Element{}
	p := pagetest.New("https://example.com/apply").
		Add("#firstName", firstName).
		Add("#submit", submit)

	store := manualstore.NewMemory()
	m := applyManual(t)
	require.NoError(t, store.Save(m))

	res := New(store, nil).Execute(context.Background(), p, m, map[string]string{"firstName": "John"})

	assert.True(t, res.Success)
	assert.Equal(t, 2, res.ActionsAttempted)
	assert.Equal(t, 2, res.ActionsSucceeded)
	assert.Equal(t, 1, res.ActionsVerified)
	assert.Equal(t, 0, res.ActionsFailed)
	assert.Equal(t, []string{"John"}, firstName.Fills, "placeholder rendered from the profile")
	assert.Equal(t, 1, submit.Clicks)

	saved, err := store.Lookup("https://example.com/apply", "job_application", "")
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, 1.0, saved.HealthScore, "a clean replay keeps full health")
}

func TestExecuteMissingProfileFieldFailsStep(t *testing.T) {
	firstName := &pagetest.Element{}
	submit := &pagetest.Element{}
	p := pagetest.New("https://example.com/apply").
		Add("#firstName", firstName).
		Add("#submit", submit)

	m := applyManual(t)
	res := New(nil, nil).Execute(context.Background(), p, m, map[string]string{})

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ActionsFailed)
	assert.Empty(t, firstName.Fills, "the raw placeholder is never typed into the form")
	assert.Equal(t, 0, submit.Clicks, "an immediate failure majority aborts the replay")
	assert.Less(t, m.HealthScore, 1.0)
	assert.Less(t, m.Steps[0].HealthScore, 1.0, "the failed step decays")
}

func TestExecuteAbortsAfterFailureBudget(t *testing.T) {
	p := pagetest.New("https://example.com/apply") // nothing resolvable

	steps := make([]manual.Step, 6)
	for i := range steps {
		steps[i] = manual.Step{
			Order:       i,
			Locator:     manual.LocatorDescriptor{CSS: "#missing"},
			Action:      manual.ActionClick,
			HealthScore: 1,
		}
	}
	m, err := manual.New("https://example.com/apply", "job_application", "", steps)
	require.NoError(t, err)

	res := New(nil, nil).Execute(context.Background(), p, m, nil)

	assert.False(t, res.Success)
	assert.Equal(t, 1, res.ActionsAttempted, "more than half failing aborts immediately")
	assert.Equal(t, 1, res.ActionsFailed)
	assert.Error(t, res.Err)
}

func TestExecuteToleratesScatteredFailures(t *testing.T) {
	ok := &pagetest.Element{}
	p := pagetest.New("https://example.com/apply").Add("#ok", ok)

	// Failures stay under both abort conditions until the last one tips
	// the absolute cap.
	steps := []manual.Step{
		{Order: 0, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 1, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 2, Locator: manual.LocatorDescriptor{CSS: "#missing"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 3, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 4, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 5, Locator: manual.LocatorDescriptor{CSS: "#missing"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 6, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 7, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 8, Locator: manual.LocatorDescriptor{CSS: "#missing"}, Action: manual.ActionClick, HealthScore: 1},
		{Order: 9, Locator: manual.LocatorDescriptor{CSS: "#ok"}, Action: manual.ActionClick, HealthScore: 1},
	}
	m, err := manual.New("https://example.com/apply", "job_application", "", steps)
	require.NoError(t, err)

	res := New(nil, nil).Execute(context.Background(), p, m, nil)

	assert.False(t, res.Success)
	assert.Equal(t, 9, res.ActionsAttempted, "third failure hits the absolute cap")
	assert.Equal(t, 3, res.ActionsFailed)
	assert.Equal(t, 6, res.ActionsSucceeded)
}

func TestExecuteVerificationMismatchFails(t *testing.T) {
	// Element that silently drops the fill.
	stubborn := &pagetest.Element{}
	p := pagetest.New("https://example.com/apply").Add("#firstName", stubborn)

	m, err := manual.New("https://example.com/apply", "job_application", "", []manual.Step{
		{Order: 0, Locator: manual.LocatorDescriptor{CSS: "#firstName"}, Action: manual.ActionFill, Value: "John", Verification: "value", HealthScore: 1},
	})
	require.NoError(t, err)

	// A fill that lands passes verification.
	res := New(nil, nil).Execute(context.Background(), p, m, nil)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.ActionsVerified)

	// Force the readback to disagree.
	stubborn.Value = "autofilled garbage"
	verErr := verify(stubborn, m.Steps[0], "John")
	assert.Error(t, verErr)
}

func TestExecutePageLevelSteps(t *testing.T) {
	p := pagetest.New("https://example.com/start")

	m, err := manual.New("https://example.com/start", "job_application", "", []manual.Step{
		{Order: 0, Action: manual.ActionNavigate, Value: "https://example.com/apply", HealthScore: 1},
		{Order: 1, Action: manual.ActionScroll, Value: "800", HealthScore: 1},
		{Order: 2, Action: manual.ActionWait, Value: "1", HealthScore: 1},
	})
	require.NoError(t, err)

	res := New(nil, nil).Execute(context.Background(), p, m, nil)

	assert.True(t, res.Success)
	assert.Equal(t, []string{"https://example.com/apply"}, p.Navigations)
	assert.Equal(t, 1, p.ScrollCount)
}

func TestExecuteCancelledContext(t *testing.T) {
	p := pagetest.New("https://example.com/apply").
		Add("#submit", &pagetest.Element{})

	m, err := manual.New("https://example.com/apply", "job_application", "", []manual.Step{
		{Order: 0, Locator: manual.LocatorDescriptor{CSS: "#submit"}, Action: manual.ActionClick, HealthScore: 1},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := New(nil, nil).Execute(ctx, p, m, nil)
	assert.False(t, res.Success)
	assert.True(t, errors.Is(res.Err, context.Canceled))
	assert.Equal(t, 0, res.ActionsAttempted)
}

func TestExecuteHealthTrendsAcrossReplays(t *testing.T) {
	good := pagetest.New("https://example.com/apply").
		Add("#firstName", &pagetest.Element{}).
		Add("#submit", &pagetest.Element{})
	bad := pagetest.New("https://example.com/apply")

	m := applyManual(t)
	ex := New(nil, nil)
	profile := map[string]string{"firstName": "John"}

	ex.Execute(context.Background(), good, m, profile)
	healthy := m.HealthScore

	ex.Execute(context.Background(), bad, m, profile)
	degraded := m.HealthScore
	assert.Less(t, degraded, healthy, "failed replay lowers health")

	ex.Execute(context.Background(), good, m, profile)
	assert.Greater(t, m.HealthScore, degraded, "recovery raises it again")
}
