package forms

import (
	"fmt"
	"regexp"
	"strings"
)

// Severity levels for authoring diagnostics. Warnings degrade at runtime
// (the offending rule is ignored); errors make the definition unusable.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue is one authoring diagnostic found in a definition.
type Issue struct {
	Severity string
	StepID   string
	Message  string
}

func (i Issue) String() string {
	if i.StepID == "" {
		return fmt.Sprintf("%s: %s", i.Severity, i.Message)
	}
	return fmt.Sprintf("%s: step %q: %s", i.Severity, i.StepID, i.Message)
}

// Validate inspects a definition and reports authoring problems: duplicate
// ids, dangling targets, unusable rules. It mirrors what the registry and
// evaluator will tolerate at runtime, so `stepflow validate` can surface
// the damage before the form goes live.
func Validate(def *Definition) []Issue {
	var issues []Issue
	if def == nil || len(def.Steps) == 0 {
		return append(issues, Issue{Severity: SeverityError, Message: "no steps found"})
	}

	ids := make(map[string]bool)
	for i := range def.Steps {
		s := &def.Steps[i]
		if s.ID == "" {
			if s.Parent != "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					StepID:   s.Parent,
					Message:  "step item without id will not be registered",
				})
			}
			continue
		}
		if ids[s.ID] {
			issues = append(issues, Issue{Severity: SeverityError, StepID: s.ID, Message: "duplicate id"})
		}
		ids[s.ID] = true
	}

	for i := range def.Steps {
		s := &def.Steps[i]
		if s.Parent != "" && !ids[s.Parent] {
			issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: fmt.Sprintf("unknown parent %q", s.Parent)})
		}
		if s.SkipTo != "" && !ids[s.SkipTo] {
			issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: fmt.Sprintf("skip_to target %q not found", s.SkipTo)})
		}
		if s.SkipIf != "" && s.SkipUnless != "" {
			issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: "both skip_if and skip_unless set; skip_if wins"})
		}
		for _, expr := range []string{s.ShowIf, s.SkipIf, s.SkipUnless} {
			if strings.Contains(expr, ",") && strings.Contains(expr, "&") {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					StepID:   s.ID,
					Message:  fmt.Sprintf("expression %q mixes ',' and '&'; only the comma split is honored", expr),
				})
			}
		}
		for _, f := range s.Fields {
			if f.Name == "" {
				issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: "field without name"})
				continue
			}
			if f.Pattern != "" {
				if _, err := regexp.Compile(f.Pattern); err != nil {
					issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: fmt.Sprintf("field %q: bad pattern: %v", f.Name, err)})
				}
			}
			if f.MaxLength > 0 && f.MinLength > f.MaxLength {
				issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: fmt.Sprintf("field %q: min_length exceeds max_length", f.Name)})
			}
			for _, opt := range f.Options {
				if opt.GoTo != "" && !ids[opt.GoTo] {
					issues = append(issues, Issue{Severity: SeverityWarning, StepID: s.ID, Message: fmt.Sprintf("field %q: go_to target %q not found", f.Name, opt.GoTo)})
				}
			}
		}
	}
	return issues
}

// HasErrors reports whether any issue is severity "error".
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
