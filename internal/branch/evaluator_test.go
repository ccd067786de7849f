package branch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
)

// condState is a standalone ConditionState for tests; in the engine the
// navigation controller plays this role.
type condState struct {
	conditions map[string]string
}

func newCondState() *condState {
	return &condState{conditions: make(map[string]string)}
}

func (c *condState) SetCondition(target, value string) { c.conditions[target] = value }
func (c *condState) ClearCondition(target string)      { delete(c.conditions, target) }
func (c *condState) ConditionValue(target string) string {
	return c.conditions[target]
}
func (c *condState) Conditions() map[string]string {
	out := make(map[string]string, len(c.conditions))
	for k, v := range c.conditions {
		out[k] = v
	}
	return out
}

type recordingClearer struct {
	cleared map[string][]string
}

func (r *recordingClearer) ClearFields(stepID string, fields []string) {
	if r.cleared == nil {
		r.cleared = make(map[string][]string)
	}
	r.cleared[stepID] = append(r.cleared[stepID], fields...)
}

func branchDef() *forms.Definition {
	return &forms.Definition{Steps: []forms.StepDef{
		{ID: "payment", Fields: []forms.FieldDef{
			{Name: "method", Input: "radio", Options: []forms.OptionDef{
				{Value: "card", GoTo: "card-details"},
				{Value: "bank", GoTo: "bank-details"},
				{Value: "cash"},
			}},
		}},
		{ID: "card-details", ShowIf: "card-details", Fields: []forms.FieldDef{
			{Name: "card_number"},
		}},
		{ID: "bank-details", ShowIf: "bank-details", Fields: []forms.FieldDef{
			{Name: "iban"},
		}},
		{ID: "summary"},
	}}
}

func newEvaluator(t *testing.T) (*Evaluator, *condState, *recordingClearer, *bus.Bus) {
	t.Helper()
	state := newCondState()
	clearer := &recordingClearer{}
	b := bus.New()
	e := New(registry.Build(branchDef()), b, state, clearer)
	return e, state, clearer, b
}

func TestActivateAndDeactivate(t *testing.T) {
	e, state, clearer, _ := newEvaluator(t)

	e.Activate("card-details", "card")
	assert.True(t, e.IsActive("card-details"))
	assert.Equal(t, "card", state.ConditionValue("card-details"))

	e.Deactivate("card-details")
	assert.False(t, e.IsActive("card-details"))
	assert.Equal(t, []string{"card_number"}, clearer.cleared["card-details"])
}

func TestActivateAuthoringErrors(t *testing.T) {
	e, state, _, _ := newEvaluator(t)

	e.Activate("", "x")
	e.Activate("card-details", "")
	e.Activate("no-such-step", "x")

	assert.Empty(t, state.conditions)
}

func TestDeactivateInactiveIsNoop(t *testing.T) {
	e, _, clearer, _ := newEvaluator(t)

	e.Deactivate("card-details")
	assert.Empty(t, clearer.cleared)
}

func TestSelectOptionMutualExclusion(t *testing.T) {
	e, _, clearer, _ := newEvaluator(t)

	require.True(t, e.SelectOption("method", "card"))
	assert.True(t, e.IsActive("card-details"))

	require.True(t, e.SelectOption("method", "bank"))
	assert.False(t, e.IsActive("card-details"), "card branch must drop when bank is chosen")
	assert.True(t, e.IsActive("bank-details"))
	assert.Equal(t, []string{"card_number"}, clearer.cleared["card-details"])
}

func TestSelectOptionUnknowns(t *testing.T) {
	e, _, _, _ := newEvaluator(t)

	assert.False(t, e.SelectOption("no-such-group", "card"))
	assert.False(t, e.SelectOption("method", "no-such-value"))
}

func TestSelectOptionWithoutTargetDeactivatesOthers(t *testing.T) {
	e, _, _, _ := newEvaluator(t)

	require.True(t, e.SelectOption("method", "card"))
	// "cash" declares no go_to, so it is not a group entry; choosing it is
	// rejected but the existing activation survives.
	assert.False(t, e.SelectOption("method", "cash"))
	assert.True(t, e.IsActive("card-details"))
}

func TestVisibilityEvents(t *testing.T) {
	e, _, _, b := newEvaluator(t)

	var shows, hides []string
	b.Subscribe(domain.EventBranchShow, func(p any) {
		shows = append(shows, p.(domain.BranchVisibility).StepID)
	})
	b.Subscribe(domain.EventBranchHide, func(p any) {
		hides = append(hides, p.(domain.BranchVisibility).StepID)
	})

	// First computation establishes the baseline: hidden steps emit nothing.
	e.RecomputeVisibility()
	assert.Empty(t, shows)
	assert.Empty(t, hides)

	e.Activate("card-details", "card")
	assert.Equal(t, []string{"card-details"}, shows)

	e.Deactivate("card-details")
	assert.Equal(t, []string{"card-details"}, hides)

	// Unchanged visibility emits nothing.
	shows, hides = nil, nil
	e.RecomputeVisibility()
	assert.Empty(t, shows)
	assert.Empty(t, hides)
}

func TestVisible(t *testing.T) {
	e, _, _, _ := newEvaluator(t)
	e.RecomputeVisibility()

	assert.True(t, e.Visible("summary"), "steps without show_if are always visible")
	assert.False(t, e.Visible("card-details"))
	assert.False(t, e.Visible("no-such-step"))

	e.Activate("card-details", "card")
	assert.True(t, e.Visible("card-details"))
}

func TestConditionsChangedEvent(t *testing.T) {
	e, _, _, b := newEvaluator(t)

	var payloads []domain.ConditionsChanged
	b.Subscribe(domain.EventConditionsChanged, func(p any) {
		payloads = append(payloads, p.(domain.ConditionsChanged))
	})

	e.Activate("card-details", "card")
	require.Len(t, payloads, 1)
	assert.Equal(t, "card", payloads[0].Active["card-details"])

	// Re-activating with the same value changes nothing.
	e.Activate("card-details", "card")
	assert.Len(t, payloads, 1)

	e.Deactivate("card-details")
	require.Len(t, payloads, 2)
	assert.Empty(t, payloads[1].Active)
}

func TestEvaluateExpr(t *testing.T) {
	e, _, _, _ := newEvaluator(t)

	e.Activate("card-details", "card")
	assert.True(t, e.EvaluateExpr("card-details"))
	assert.False(t, e.EvaluateExpr("bank-details"))
	assert.True(t, e.EvaluateExpr("!bank-details"))
	assert.True(t, e.EvaluateExpr("card-details,bank-details"))
	assert.False(t, e.EvaluateExpr(""))
}

func TestReentrantMutationIsDropped(t *testing.T) {
	state := newCondState()
	b := bus.New()
	e := New(registry.Build(branchDef()), b, state, nil)

	// A listener reacting to the change by re-activating the same target
	// must not recurse.
	b.Subscribe(domain.EventConditionsChanged, func(p any) {
		e.Activate("card-details", "other")
	})

	require.NotPanics(t, func() { e.Activate("card-details", "card") })
	assert.Equal(t, "card", state.ConditionValue("card-details"))
}

func TestReset(t *testing.T) {
	e, _, _, b := newEvaluator(t)

	e.Activate("card-details", "card")
	e.Reset()

	// After reset the first recompute re-establishes the baseline, so a
	// still-active step emits show again.
	var shows []string
	b.Subscribe(domain.EventBranchShow, func(p any) {
		shows = append(shows, p.(domain.BranchVisibility).StepID)
	})
	e.RecomputeVisibility()
	assert.Equal(t, []string{"card-details"}, shows)
}
