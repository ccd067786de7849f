// Package registry builds the ordered, indexed model of steps and nested
// step items from a form definition.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
)

// GroupOption is one selectable option of a radio group, flattened for
// mutual-exclusion lookups: selecting one option must deactivate the branch
// targets of every other option in the same group.
type GroupOption struct {
	StepID string
	Field  string
	Value  string
	Target string
}

// Registry is the immutable index of a built form: flat ordered steps,
// id lookup, parent/item links and the field/branch metadata the
// controller and evaluator consult. Indexes are stable for the registry's
// lifetime.
type Registry struct {
	logger *slog.Logger

	steps    []*domain.Step
	topLevel []*domain.Step
	byID     map[string]*domain.Step
	items    map[string][]*domain.Step

	fields  map[string][]forms.FieldDef
	targets map[string][]string
	groups  map[string][]GroupOption
}

// Option configures Build.
type Option func(*Registry)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// Build constructs the registry from a definition, in authoring order.
//
// Recoverable conditions, logged and tolerated:
//   - a top-level step without an id gets a generated "step-<n>" id;
//   - a step item without an id is not registered;
//   - a duplicate id is not registered (first declaration wins);
//   - an item naming an unknown parent is not registered.
//
// A build with zero steps is not an error: the caller must treat the
// library as inactive.
func Build(def *forms.Definition, opts ...Option) *Registry {
	r := &Registry{
		logger:  logging.NewNop(),
		byID:    make(map[string]*domain.Step),
		items:   make(map[string][]*domain.Step),
		fields:  make(map[string][]forms.FieldDef),
		targets: make(map[string][]string),
		groups:  make(map[string][]GroupOption),
	}
	for _, opt := range opts {
		opt(r)
	}
	if def == nil {
		r.logger.Warn("nil form definition: empty registry")
		return r
	}

	for i := range def.Steps {
		r.register(&def.Steps[i])
	}
	if len(r.steps) == 0 {
		r.logger.Warn("no steps found: registry is empty, library inactive")
	}
	return r
}

func (r *Registry) register(sd *forms.StepDef) {
	id := sd.ID
	isItem := sd.Parent != ""

	if id == "" {
		if isItem {
			r.logger.Warn("step item without id skipped", "parent", sd.Parent)
			return
		}
		id = fmt.Sprintf("step-%d", len(r.steps))
		r.logger.Info("step without id assigned generated id", "id", id)
	}
	if _, dup := r.byID[id]; dup {
		r.logger.Warn("duplicate step id skipped", "id", id)
		return
	}

	step := &domain.Step{
		ID:    id,
		Index: len(r.steps),
		Kind:  domain.KindRegular,
		Class: domain.Classification{
			Type:    sd.Type,
			Subtype: sd.Subtype,
			Number:  sd.Number,
		},
		ShowIf:        sd.ShowIf,
		SkipIf:        sd.SkipIf,
		SkipUnless:    sd.SkipUnless,
		SkipTo:        sd.SkipTo,
		AllowSkipUndo: sd.AllowsUndo(),
	}

	if isItem {
		parent, ok := r.byID[sd.Parent]
		if !ok || parent.IsItem() {
			r.logger.Warn("step item with unknown parent skipped", "id", id, "parent", sd.Parent)
			return
		}
		step.Kind = domain.KindItem
		pi := parent.Index
		step.ParentIndex = &pi
		r.items[parent.ID] = append(r.items[parent.ID], step)
	}

	r.steps = append(r.steps, step)
	r.byID[id] = step
	if !step.IsItem() {
		r.topLevel = append(r.topLevel, step)
	}

	r.indexFields(id, sd.Fields)
}

func (r *Registry) indexFields(stepID string, fields []forms.FieldDef) {
	if len(fields) == 0 {
		return
	}
	r.fields[stepID] = fields
	for _, f := range fields {
		for _, opt := range f.Options {
			if opt.GoTo == "" {
				continue
			}
			r.targets[stepID] = append(r.targets[stepID], opt.GoTo)
			group := f.GroupName()
			r.groups[group] = append(r.groups[group], GroupOption{
				StepID: stepID,
				Field:  f.Name,
				Value:  opt.Value,
				Target: opt.GoTo,
			})
		}
	}
}

// Len returns the number of registered steps, items included.
func (r *Registry) Len() int {
	return len(r.steps)
}

// At returns the step at flat index i, or nil when out of range.
func (r *Registry) At(i int) *domain.Step {
	if i < 0 || i >= len(r.steps) {
		return nil
	}
	return r.steps[i]
}

// Get resolves a step by id, items and top-level steps alike.
func (r *Registry) Get(id string) *domain.Step {
	return r.byID[id]
}

// IndexOf returns the flat index of id, or -1.
func (r *Registry) IndexOf(id string) int {
	if s, ok := r.byID[id]; ok {
		return s.Index
	}
	return -1
}

// Steps returns the flat ordered sequence.
func (r *Registry) Steps() []*domain.Step {
	return append([]*domain.Step(nil), r.steps...)
}

// TopLevel returns the ordered top-level steps.
func (r *Registry) TopLevel() []*domain.Step {
	return append([]*domain.Step(nil), r.topLevel...)
}

// First returns the first top-level step, or nil for an empty build.
func (r *Registry) First() *domain.Step {
	if len(r.topLevel) == 0 {
		return nil
	}
	return r.topLevel[0]
}

// NextTop returns the first top-level step after flat index i, or nil at
// the end of the sequence.
func (r *Registry) NextTop(i int) *domain.Step {
	for j := i + 1; j < len(r.steps); j++ {
		if !r.steps[j].IsItem() {
			return r.steps[j]
		}
	}
	return nil
}

// PrevTop returns the last top-level step before flat index i, or nil at
// the start.
func (r *Registry) PrevTop(i int) *domain.Step {
	for j := i - 1; j >= 0; j-- {
		if !r.steps[j].IsItem() {
			return r.steps[j]
		}
	}
	return nil
}

// ItemsOf returns the items owned by a parent step, in order.
func (r *Registry) ItemsOf(parentID string) []*domain.Step {
	return append([]*domain.Step(nil), r.items[parentID]...)
}

// ParentOf returns the owning step of an item, or nil.
func (r *Registry) ParentOf(item *domain.Step) *domain.Step {
	if item == nil || item.ParentIndex == nil {
		return nil
	}
	return r.At(*item.ParentIndex)
}

// FieldsOf returns the fields declared directly on stepID.
func (r *Registry) FieldsOf(stepID string) []forms.FieldDef {
	return r.fields[stepID]
}

// SubtreeFieldNames returns the names of every field in the step and its
// items. This is the clearing scope for skips and branch deactivation.
func (r *Registry) SubtreeFieldNames(stepID string) []string {
	var names []string
	for _, f := range r.fields[stepID] {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	for _, item := range r.items[stepID] {
		for _, f := range r.fields[item.ID] {
			if f.Name != "" {
				names = append(names, f.Name)
			}
		}
	}
	return names
}

// TargetsOf returns the branch targets declared by the fields of a step and
// of its items, in declaration order.
func (r *Registry) TargetsOf(stepID string) []string {
	targets := append([]string(nil), r.targets[stepID]...)
	for _, item := range r.items[stepID] {
		targets = append(targets, r.targets[item.ID]...)
	}
	return targets
}

// GroupOptions returns the flattened options of a radio group.
func (r *Registry) GroupOptions(group string) []GroupOption {
	return append([]GroupOption(nil), r.groups[group]...)
}

// ConditionalSteps returns every step carrying a skip_if or skip_unless
// declaration, in order.
func (r *Registry) ConditionalSteps() []*domain.Step {
	var out []*domain.Step
	for _, s := range r.steps {
		if s.SkipIf != "" || s.SkipUnless != "" {
			out = append(out, s)
		}
	}
	return out
}

// ConditionalVisibilitySteps returns every step carrying a show_if
// expression, in order.
func (r *Registry) ConditionalVisibilitySteps() []*domain.Step {
	var out []*domain.Step
	for _, s := range r.steps {
		if s.ShowIf != "" {
			out = append(out, s)
		}
	}
	return out
}
