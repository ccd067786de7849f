package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillform/stepflow/pkg/forms"
)

func TestRequiredField(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "email", Label: "Email", Required: true}

	errs := g.ValidateField(field, nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "required", errs[0].Rule)
	assert.Equal(t, "email", errs[0].Field)
	assert.Contains(t, errs[0].Message, "Email")

	assert.Len(t, g.ValidateField(field, "   "), 1, "whitespace counts as empty")
	assert.Empty(t, g.ValidateField(field, "a@b.c"))
}

func TestOptionalEmptyFieldSkipsRules(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "nick", Pattern: `^[a-z]+$`, MinLength: 3}

	assert.Empty(t, g.ValidateField(field, ""))
	assert.Empty(t, g.ValidateField(field, nil))
}

func TestPatternRule(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "email", Pattern: `^[^@\s]+@[^@\s]+$`}

	assert.Empty(t, g.ValidateField(field, "a@b.c"))

	errs := g.ValidateField(field, "not-an-email")
	require.Len(t, errs, 1)
	assert.Equal(t, "pattern", errs[0].Rule)
}

func TestMalformedPatternIsIgnored(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "x", Pattern: `([`}

	assert.Empty(t, g.ValidateField(field, "anything"))
	// Second call exercises the cached nil entry.
	assert.Empty(t, g.ValidateField(field, "anything else"))
}

func TestLengthRules(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "code", MinLength: 3, MaxLength: 5}

	errs := g.ValidateField(field, "ab")
	require.Len(t, errs, 1)
	assert.Equal(t, "min_length", errs[0].Rule)

	errs = g.ValidateField(field, "abcdef")
	require.Len(t, errs, 1)
	assert.Equal(t, "max_length", errs[0].Rule)

	assert.Empty(t, g.ValidateField(field, "abcd"))
}

func TestLengthCountsRunes(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "name", MinLength: 3}

	assert.Empty(t, g.ValidateField(field, "日本語"))
}

func TestBoolAndSliceValues(t *testing.T) {
	g := NewRuleGate()
	field := forms.FieldDef{Name: "consent", Required: true}

	assert.Empty(t, g.ValidateField(field, true))
	assert.Len(t, g.ValidateField(field, false), 1, "unchecked checkbox is empty")
	assert.Empty(t, g.ValidateField(field, []string{"a"}))
	assert.Len(t, g.ValidateField(field, []string{}), 1)
}

func TestValidateStep(t *testing.T) {
	g := NewRuleGate()
	fields := []forms.FieldDef{
		{Name: "name", Required: true},
		{Name: "email", Required: true, Pattern: `@`},
		{Name: ""}, // unnamed fields are ignored
	}

	errs := g.ValidateStep("contact", fields, map[string]any{"email": "nope"})
	require.Len(t, errs, 2)
	assert.Equal(t, "name", errs[0].Field)
	assert.Equal(t, "email", errs[1].Field)

	errs = g.ValidateStep("contact", fields, map[string]any{"name": "Ada", "email": "a@b"})
	assert.Empty(t, errs)
}
