package forms

// Definition is one complete multi-step form: an ordered list of step
// records in authoring order, plus presentation metadata the core ignores.
type Definition struct {
	Name        string    `json:"name" mapstructure:"name"`
	Description string    `json:"description,omitempty" mapstructure:"description"`
	Steps       []StepDef `json:"steps" mapstructure:"steps"`
}

// StepDef is one declarative step (or step item, when Parent is set).
type StepDef struct {
	ID     string `json:"id,omitempty" mapstructure:"id"`
	Parent string `json:"parent,omitempty" mapstructure:"parent"`

	Title       string `json:"title,omitempty" mapstructure:"title"`
	Description string `json:"description,omitempty" mapstructure:"description"`

	// Classification tags, passed through to collaborators untouched.
	Type    string `json:"type,omitempty" mapstructure:"type"`
	Subtype string `json:"subtype,omitempty" mapstructure:"subtype"`
	Number  string `json:"number,omitempty" mapstructure:"number"`

	// Branch/skip declarations, all optional.
	ShowIf        string `json:"show_if,omitempty" mapstructure:"show_if"`
	SkipIf        string `json:"skip_if,omitempty" mapstructure:"skip_if"`
	SkipUnless    string `json:"skip_unless,omitempty" mapstructure:"skip_unless"`
	SkipTo        string `json:"skip_to,omitempty" mapstructure:"skip_to"`
	AllowSkipUndo *bool  `json:"allow_skip_undo,omitempty" mapstructure:"allow_skip_undo"`

	Fields []FieldDef `json:"fields,omitempty" mapstructure:"fields"`
}

// FieldDef is one input inside a step and its minimal rule set.
type FieldDef struct {
	Name  string `json:"name" mapstructure:"name"`
	Label string `json:"label,omitempty" mapstructure:"label"`

	// Input is the control type: "text", "radio", "checkbox", "select".
	// Anything unrecognized behaves like "text".
	Input string `json:"input,omitempty" mapstructure:"input"`

	// Group names the mutually-exclusive radio group. Defaults to Name.
	Group string `json:"group,omitempty" mapstructure:"group"`

	Required  bool   `json:"required,omitempty" mapstructure:"required"`
	Pattern   string `json:"pattern,omitempty" mapstructure:"pattern"`
	MinLength int    `json:"min_length,omitempty" mapstructure:"min_length"`
	MaxLength int    `json:"max_length,omitempty" mapstructure:"max_length"`

	Options []OptionDef `json:"options,omitempty" mapstructure:"options"`
}

// OptionDef is one selectable value of a radio/select field. GoTo names the
// branch target this option activates when selected.
type OptionDef struct {
	Value string `json:"value" mapstructure:"value"`
	Label string `json:"label,omitempty" mapstructure:"label"`
	GoTo  string `json:"go_to,omitempty" mapstructure:"go_to"`
}

// GroupName returns the radio group for the field.
func (f FieldDef) GroupName() string {
	if f.Group != "" {
		return f.Group
	}
	return f.Name
}

// AllowsUndo resolves the skip-undo declaration; undo is permitted unless
// explicitly disabled.
func (s StepDef) AllowsUndo() bool {
	return s.AllowSkipUndo == nil || *s.AllowSkipUndo
}

// FieldsOf returns the fields declared on stepID, or nil.
func (d *Definition) FieldsOf(stepID string) []FieldDef {
	for i := range d.Steps {
		if d.Steps[i].ID == stepID {
			return d.Steps[i].Fields
		}
	}
	return nil
}

// StepIDs returns every declared step id in authoring order, skipping blanks.
func (d *Definition) StepIDs() []string {
	ids := make([]string, 0, len(d.Steps))
	for i := range d.Steps {
		if d.Steps[i].ID != "" {
			ids = append(ids, d.Steps[i].ID)
		}
	}
	return ids
}

// BranchTargets returns every go_to target declared anywhere in the form.
func (d *Definition) BranchTargets() []string {
	var targets []string
	seen := make(map[string]bool)
	for i := range d.Steps {
		for _, f := range d.Steps[i].Fields {
			for _, opt := range f.Options {
				if opt.GoTo != "" && !seen[opt.GoTo] {
					seen[opt.GoTo] = true
					targets = append(targets, opt.GoTo)
				}
			}
		}
	}
	return targets
}
