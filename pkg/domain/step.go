package domain

// StepKind distinguishes top-level steps from nested step items.
type StepKind string

const (
	// KindRegular is a top-level navigable step.
	KindRegular StepKind = "regular"
	// KindItem is a nested variant inside a parent step, mutually exclusive
	// with its siblings.
	KindItem StepKind = "item"
)

// Classification carries opaque tags consumed by summary/validation
// collaborators. The engine stores them but never interprets them.
type Classification struct {
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	Number  string `json:"number,omitempty"`
}

// Step is the identity and placement of one navigable unit.
//
// Index is the position in the flat ordered sequence (0-based, insertion
// order) and is stable for the lifetime of the registry. ParentIndex is nil
// for top-level steps and points at the owning step's Index for items. Ids
// are unique across the whole registry: items and top-level steps share one
// namespace.
type Step struct {
	ID          string         `json:"id"`
	Index       int            `json:"index"`
	ParentIndex *int           `json:"parent_index,omitempty"`
	Kind        StepKind       `json:"kind"`
	Class       Classification `json:"classification,omitempty"`

	// ShowIf is the condition expression controlling visibility, empty when
	// the step is unconditional.
	ShowIf string `json:"show_if,omitempty"`
	// SkipIf / SkipUnless drive conditional skips.
	SkipIf     string `json:"skip_if,omitempty"`
	SkipUnless string `json:"skip_unless,omitempty"`
	// SkipTo is the preferred landing step when this step is skipped.
	SkipTo string `json:"skip_to,omitempty"`
	// AllowSkipUndo is captured at registration and frozen into each
	// SkipEntry at skip time.
	AllowSkipUndo bool `json:"allow_skip_undo"`
}

// IsItem reports whether the step is a nested step item.
func (s *Step) IsItem() bool {
	return s.Kind == KindItem
}
