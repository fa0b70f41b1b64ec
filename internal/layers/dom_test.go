package layers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formpilot/formpilot/internal/manual"
	"github.com/formpilot/formpilot/internal/page"
	"github.com/formpilot/formpilot/internal/page/pagetest"
	"github.com/formpilot/formpilot/internal/recorder"
)

func TestDOMLayerFillsAndAdvances(t *testing.T) {
	firstName := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", Name: "first_name"}}
	email := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", ID: "email"}}
	unrelated := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", Name: "coupon_code"}}
	submit := &pagetest.Element{Attrs: page.ElementInfo{Tag: "button", ID: "submit", Text: "Submit Application"}}

	p := pagetest.New("https://example.com/apply").
		Add(fieldSelector, firstName, email, unrelated).
		Add(buttonSelector, submit)

	rec := recorder.New(p, map[string]string{"firstName": "John", "email": "john@example.com"}, nil)
	rec.Start()
	lc := &Context{
		Page:     p,
		Profile:  map[string]string{"firstName": "John", "email": "john@example.com"},
		Recorder: rec,
	}

	att, err := DOMLayer{}.Attempt(context.Background(), lc)
	require.NoError(t, err)

	assert.True(t, att.Advanced)
	assert.Equal(t, []string{"John"}, firstName.Fills, "snake_case attribute matches camelCase profile key")
	assert.Equal(t, []string{"john@example.com"}, email.Fills)
	assert.Empty(t, unrelated.Fills, "fields without a profile match are left alone")
	assert.Equal(t, 1, submit.Clicks)
	assert.Equal(t, 3, att.Executed)
	assert.Equal(t, 2, att.Verified)
	assert.Zero(t, att.Cost, "direct DOM work is free")

	trace := rec.Trace()
	require.Len(t, trace, 3, "fills and the advance click are captured")
	assert.Equal(t, manual.ActionClick, trace[2].Action)
	assert.Equal(t, "{{firstName}}", trace[0].Value)
}

func TestDOMLayerNoMatchMeansNoAdvance(t *testing.T) {
	field := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", Name: "security_question"}}
	submit := &pagetest.Element{Attrs: page.ElementInfo{Tag: "button", Text: "Continue"}}
	p := pagetest.New("https://example.com/apply").
		Add(fieldSelector, field).
		Add(buttonSelector, submit)

	lc := &Context{Page: p, Profile: map[string]string{"firstName": "John"}}
	att, err := DOMLayer{}.Attempt(context.Background(), lc)
	require.NoError(t, err)

	assert.False(t, att.Advanced, "clicking ahead with nothing filled would skip required fields")
	assert.Zero(t, submit.Clicks)
}

func TestDOMLayerFilledButNoButton(t *testing.T) {
	field := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", Name: "firstName"}}
	p := pagetest.New("https://example.com/apply").Add(fieldSelector, field)

	lc := &Context{Page: p, Profile: map[string]string{"firstName": "John"}}
	att, err := DOMLayer{}.Attempt(context.Background(), lc)
	require.NoError(t, err)

	assert.False(t, att.Advanced)
	assert.Equal(t, []string{"John"}, field.Fills)
}

func TestDOMLayerControlKinds(t *testing.T) {
	country := &pagetest.Element{Attrs: page.ElementInfo{Tag: "select", Name: "country"}}
	remote := &pagetest.Element{Attrs: page.ElementInfo{Tag: "input", Type: "checkbox", Name: "remote_ok"}}
	submit := &pagetest.Element{Attrs: page.ElementInfo{Tag: "button", Text: "Next"}}
	p := pagetest.New("https://example.com/apply").
		Add(fieldSelector, country, remote).
		Add(buttonSelector, submit)

	lc := &Context{Page: p, Profile: map[string]string{
		"country":  "Canada",
		"remoteOk": "yes",
	}}
	att, err := DOMLayer{}.Attempt(context.Background(), lc)
	require.NoError(t, err)

	assert.True(t, att.Advanced)
	assert.Equal(t, []string{"Canada"}, country.Selects)
	assert.Equal(t, []bool{true}, remote.Checks)
}

func TestDOMLayerSkipsHiddenFields(t *testing.T) {
	hidden := &pagetest.Element{Hidden: true, Attrs: page.ElementInfo{Tag: "input", Name: "firstName"}}
	p := pagetest.New("https://example.com/apply").Add(fieldSelector, hidden)

	lc := &Context{Page: p, Profile: map[string]string{"firstName": "John"}}
	att, err := DOMLayer{}.Attempt(context.Background(), lc)
	require.NoError(t, err)

	assert.Empty(t, hidden.Fills)
	assert.Zero(t, att.Executed)
}

func TestMatchProfileField(t *testing.T) {
	profile := map[string]string{"firstName": "John", "phoneNumber": "555-0100"}

	tests := []struct {
		name string
		info page.ElementInfo
		want string
	}{
		{"exact name", page.ElementInfo{Name: "firstName"}, "firstName"},
		{"snake case", page.ElementInfo{Name: "first_name"}, "firstName"},
		{"kebab id", page.ElementInfo{ID: "phone-number"}, "phoneNumber"},
		{"aria label with spaces", page.ElementInfo{AriaLabel: "First Name"}, "firstName"},
		{"placeholder", page.ElementInfo{Placeholder: "first name"}, "firstName"},
		{"no match", page.ElementInfo{Name: "lastName"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, _ := matchProfileField(tt.info, profile)
			assert.Equal(t, tt.want, key)
		})
	}
}
