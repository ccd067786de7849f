package branch

import (
	"log/slog"
	"sync"

	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/ports"
)

// ConditionState is the slice of navigation state the evaluator is allowed
// to write. It is implemented by the navigation controller so the condition
// map keeps a single writer.
type ConditionState interface {
	SetCondition(target, value string)
	ClearCondition(target string)
	ConditionValue(target string) string
	Conditions() map[string]string
}

// Evaluator owns branch activation and condition-expression evaluation.
//
// It is the only component that calls the ConditionState setters.
// Deactivating a target additionally clears the fields of that target's
// subtree and recomputes conditional visibility.
type Evaluator struct {
	logger  *slog.Logger
	reg     *registry.Registry
	events  *bus.Bus
	state   ConditionState
	clearer ports.FieldClearer

	mu       sync.Mutex
	exprs    map[string]Expr
	visible  map[string]bool
	inFlight map[string]bool
}

// Option configures the Evaluator.
type Option func(*Evaluator)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// New creates an evaluator bound to a registry, bus and condition state.
func New(reg *registry.Registry, events *bus.Bus, state ConditionState, clearer ports.FieldClearer, opts ...Option) *Evaluator {
	e := &Evaluator{
		logger:   logging.NewNop(),
		reg:      reg,
		events:   events,
		state:    state,
		clearer:  clearer,
		exprs:    make(map[string]Expr),
		visible:  make(map[string]bool),
		inFlight: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// IsActive reports whether a branch target currently holds a non-empty
// value.
func (e *Evaluator) IsActive(target string) bool {
	return e.state.ConditionValue(target) != ""
}

// Activate marks a branch target active with the given value. Unknown
// targets and empty values are authoring errors: logged, ignored.
func (e *Evaluator) Activate(target, value string) {
	if target == "" || value == "" {
		e.logger.Warn("branch activation ignored", "target", target, "value", value)
		return
	}
	if e.reg.Get(target) == nil {
		e.logger.Warn("branch target not found, activation ignored", "target", target)
		return
	}
	if e.guard(target) {
		e.logger.Warn("re-entrant branch activation ignored", "target", target)
		return
	}
	defer e.unguard(target)

	if e.state.ConditionValue(target) == value {
		return
	}
	e.state.SetCondition(target, value)
	e.conditionsChanged()
}

// Deactivate clears a branch target. Clearing an inactive target is a
// no-op. On success the fields belonging to the target's subtree are
// cleared and conditional visibility is recomputed.
func (e *Evaluator) Deactivate(target string) {
	if e.state.ConditionValue(target) == "" {
		return
	}
	if e.guard(target) {
		e.logger.Warn("re-entrant branch deactivation ignored", "target", target)
		return
	}
	defer e.unguard(target)

	e.state.ClearCondition(target)
	if e.clearer != nil {
		if fields := e.reg.SubtreeFieldNames(target); len(fields) > 0 {
			e.clearer.ClearFields(target, fields)
		}
	}
	e.conditionsChanged()
}

// SelectOption applies radio mutual exclusion for a group: the branch
// targets of every other option in the group are deactivated before the
// chosen option's target is activated. Returns false when the group or
// value is unknown.
func (e *Evaluator) SelectOption(group, value string) bool {
	options := e.reg.GroupOptions(group)
	if len(options) == 0 {
		e.logger.Warn("unknown radio group", "group", group)
		return false
	}

	var chosen *registry.GroupOption
	for i := range options {
		if options[i].Value == value {
			chosen = &options[i]
			break
		}
	}
	if chosen == nil {
		e.logger.Warn("unknown option value in radio group", "group", group, "value", value)
		return false
	}

	for _, opt := range options {
		if opt.Target != chosen.Target && e.IsActive(opt.Target) {
			e.Deactivate(opt.Target)
		}
	}
	e.Activate(chosen.Target, value)
	return true
}

// EvaluateExpr parses (with caching) and evaluates a condition expression
// against the current active set.
func (e *Evaluator) EvaluateExpr(expr string) bool {
	return Evaluate(e.parse(expr), e.state.Conditions())
}

// RecomputeVisibility re-evaluates every show_if step and emits
// branch:show / branch:hide for the ones whose visibility flipped.
func (e *Evaluator) RecomputeVisibility() {
	active := e.state.Conditions()
	for _, step := range e.reg.ConditionalVisibilitySteps() {
		now := Evaluate(e.parse(step.ShowIf), active)

		e.mu.Lock()
		was, known := e.visible[step.ID]
		e.visible[step.ID] = now
		e.mu.Unlock()

		if known && was == now {
			continue
		}
		if now {
			e.events.Publish(domain.EventBranchShow, domain.BranchVisibility{StepID: step.ID})
		} else if known {
			e.events.Publish(domain.EventBranchHide, domain.BranchVisibility{StepID: step.ID})
		}
	}
}

// Visible reports the last computed visibility of a show_if step.
// Steps without a show_if expression are always visible.
func (e *Evaluator) Visible(stepID string) bool {
	step := e.reg.Get(stepID)
	if step == nil || step.ShowIf == "" {
		return step != nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.visible[stepID]; ok {
		return v
	}
	return false
}

// Reset forgets cached visibility, for engine reset.
func (e *Evaluator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = make(map[string]bool)
	e.inFlight = make(map[string]bool)
}

func (e *Evaluator) conditionsChanged() {
	e.RecomputeVisibility()
	e.events.Publish(domain.EventConditionsChanged, domain.ConditionsChanged{
		Active: e.state.Conditions(),
	})
}

func (e *Evaluator) parse(expr string) Expr {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.exprs[expr]; ok {
		return cached
	}
	parsed := Parse(expr)
	e.exprs[expr] = parsed
	return parsed
}

// guard marks target as mid-mutation; a true return means the target is
// already being mutated higher up the call stack and the operation must be
// dropped instead of recursing.
func (e *Evaluator) guard(target string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[target] {
		return true
	}
	e.inFlight[target] = true
	return false
}

func (e *Evaluator) unguard(target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inFlight, target)
}
