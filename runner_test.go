package stepflow

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillform/stepflow/pkg/forms"
)

func runScript(t *testing.T, def *forms.Definition, script ...string) string {
	t.Helper()
	eng, err := New(def, WithDebounce(5*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(eng.Destroy)

	var out strings.Builder
	r := NewRunner()
	r.Input = strings.NewReader(strings.Join(script, "\n") + "\n")
	r.Output = &out
	require.NoError(t, r.Run(eng))
	return out.String()
}

func TestRunnerRequiresIO(t *testing.T) {
	eng, err := New(checkoutDef())
	require.NoError(t, err)
	defer eng.Destroy()

	r := NewRunner()
	assert.Error(t, r.Run(eng))
	r.Input = strings.NewReader("")
	assert.Error(t, r.Run(eng))
}

func TestRunnerWalksSteps(t *testing.T) {
	out := runScript(t, checkoutDef(),
		"email=a@b.c",
		"next",
		"method=cash",
		"next",
		"quit",
	)

	assert.Contains(t, out, "## contact")
	assert.Contains(t, out, "email = <Email> (required)")
	assert.Contains(t, out, "## payment")
	assert.Contains(t, out, "## summary")
	assert.Contains(t, out, "Bye!")
}

func TestRunnerCompletesForm(t *testing.T) {
	def := &forms.Definition{Name: "tiny", Steps: []forms.StepDef{
		{ID: "only"},
	}}

	out := runScript(t, def, "next")
	assert.Contains(t, out, "Form complete.")
}

func TestRunnerSelectAndBack(t *testing.T) {
	out := runScript(t, checkoutDef(),
		"email=a@b.c",
		"next",
		"select method card",
		"method=card",
		"next",
		"back",
		"select",
		"bogus command",
		"quit",
	)

	assert.Contains(t, out, "## card-details")
	assert.Contains(t, out, `unknown command "bogus command"`)
}

func TestRunnerSkipAndUndo(t *testing.T) {
	out := runScript(t, checkoutDef(),
		"skip not today",
		"undo contact",
		"undo ghost",
		"quit",
	)

	// contact was skipped from under us, so undo succeeds silently; the
	// unknown step reports.
	assert.Contains(t, out, `cannot undo skip of "ghost"`)
	assert.NotContains(t, out, `cannot undo skip of "contact"`)
}

func TestRunnerHeadless(t *testing.T) {
	def := &forms.Definition{Name: "plain", Steps: []forms.StepDef{
		{ID: "one"},
		{ID: "two"},
		{ID: "three"},
	}}

	eng, err := New(def)
	require.NoError(t, err)
	t.Cleanup(eng.Destroy)

	var out strings.Builder
	r := NewRunner()
	r.Input = strings.NewReader("")
	r.Output = &out
	r.Headless = true
	require.NoError(t, r.Run(eng))

	for _, id := range []string{"## one", "## two", "## three"} {
		assert.Contains(t, out.String(), id)
	}
	assert.Equal(t, "three", eng.CurrentStepID())
}

func TestRunnerRendererApplies(t *testing.T) {
	def := &forms.Definition{Name: "styled", Steps: []forms.StepDef{{ID: "only"}}}
	eng, err := New(def)
	require.NoError(t, err)
	t.Cleanup(eng.Destroy)

	var out strings.Builder
	r := NewRunner()
	r.Input = strings.NewReader("quit\n")
	r.Output = &out
	r.Renderer = func(s string) (string, error) {
		return strings.ToUpper(s), nil
	}
	require.NoError(t, r.Run(eng))

	assert.Contains(t, out.String(), "## ONLY")
}
