package ports

import (
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
)

// ValidationGate gates forward navigation. The engine consults it before
// committing a forward transition; a non-empty error list blocks the move.
//
// The gate owns rule evaluation and user-facing error rendering. The engine
// only cares whether the list is empty.
type ValidationGate interface {
	// ValidateField checks one field value against its declared rules.
	ValidateField(field forms.FieldDef, value any) []domain.FieldError

	// ValidateStep checks every field of a step against the entered values.
	ValidateStep(stepID string, fields []forms.FieldDef, values map[string]any) []domain.FieldError
}

// FieldClearer is the collaborator that resets inputs when a branch target
// deactivates or a step is skipped: value reset plus validation-state reset.
// The default implementation clears entries in the engine-owned form data;
// embedders may additionally clear rendered inputs.
type FieldClearer interface {
	ClearFields(stepID string, fields []string)
}
