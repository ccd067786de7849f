package forms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueMessages(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.Message
	}
	return out
}

func TestValidateCleanDefinition(t *testing.T) {
	def, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	issues := Validate(def)
	assert.Empty(t, issues)
	assert.False(t, HasErrors(issues))
}

func TestValidateEmptyDefinition(t *testing.T) {
	assert.True(t, HasErrors(Validate(nil)))
	assert.True(t, HasErrors(Validate(&Definition{})))
}

func TestValidateDuplicateID(t *testing.T) {
	def := &Definition{Steps: []StepDef{{ID: "a"}, {ID: "a"}}}
	issues := Validate(def)

	require.Len(t, issues, 1)
	assert.Equal(t, SeverityError, issues[0].Severity)
	assert.True(t, HasErrors(issues))
}

func TestValidateDanglingReferences(t *testing.T) {
	def := &Definition{Steps: []StepDef{
		{ID: "a", SkipTo: "ghost"},
		{ID: "b", Parent: "ghost"},
		{ID: "c", Fields: []FieldDef{
			{Name: "f", Options: []OptionDef{{Value: "v", GoTo: "ghost"}}},
		}},
	}}

	issues := Validate(def)
	require.Len(t, issues, 3)
	for _, is := range issues {
		assert.Equal(t, SeverityWarning, is.Severity)
	}
	assert.False(t, HasErrors(issues), "dangling targets are tolerated at runtime")
}

func TestValidateRuleConflicts(t *testing.T) {
	def := &Definition{Steps: []StepDef{
		{ID: "a", SkipIf: "x", SkipUnless: "y"},
		{ID: "b", ShowIf: "x&y,z"},
		{ID: "c", Fields: []FieldDef{
			{Name: "f1", Pattern: "(["},
			{Name: "f2", MinLength: 10, MaxLength: 5},
			{Label: "unnamed"},
		}},
	}}

	msgs := issueMessages(Validate(def))
	require.Len(t, msgs, 5)
	assert.Contains(t, msgs[0], "skip_if wins")
	assert.Contains(t, msgs[1], "mixes")
	assert.Contains(t, msgs[2], "bad pattern")
	assert.Contains(t, msgs[3], "min_length exceeds max_length")
	assert.Contains(t, msgs[4], "field without name")
}

func TestValidateItemWithoutID(t *testing.T) {
	def := &Definition{Steps: []StepDef{
		{ID: "top"},
		{Parent: "top"},
	}}

	issues := Validate(def)
	require.Len(t, issues, 1)
	assert.Equal(t, "top", issues[0].StepID)
	assert.Contains(t, issues[0].Message, "will not be registered")
}

func TestIssueString(t *testing.T) {
	assert.Equal(t, "error: no steps", Issue{Severity: SeverityError, Message: "no steps"}.String())
	assert.Equal(t, `warning: step "a": bad`, Issue{Severity: SeverityWarning, StepID: "a", Message: "bad"}.String())
}
