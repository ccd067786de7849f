package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/quillform/stepflow/internal/branch"
	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/internal/registry"
	skipmgr "github.com/quillform/stepflow/internal/skip"
	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/ports"
	"github.com/quillform/stepflow/pkg/validate"
)

// Controller is the single writer of navigation state. It owns the
// lifecycle, the current-step invariant and the history discipline; branch
// activation and skip bookkeeping live in collaborators that reach the
// state only through the setters the controller exposes.
type Controller struct {
	logger    *slog.Logger
	reg       *registry.Registry
	events    *bus.Bus
	gate      ports.ValidationGate
	form      *FormStore
	branches  *branch.Evaluator
	skips     *skipmgr.Manager
	debouncer *validate.Debouncer

	// mu guards state and status only; it is never held across a
	// collaborator or bus call, so event listeners may re-enter the
	// controller freely.
	mu     sync.Mutex
	state  *domain.NavigationState
	status domain.LifecycleStatus

	unsubs []func()
}

// Option configures the Controller.
type Option func(*Controller)

// WithLogger sets the diagnostic logger shared with the collaborators.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithGate replaces the default rule gate.
func WithGate(gate ports.ValidationGate) Option {
	return func(c *Controller) {
		c.gate = gate
	}
}

// WithDebounce overrides the input-validation debounce delay.
func WithDebounce(delay time.Duration) Option {
	return func(c *Controller) {
		c.debouncer = validate.NewDebouncer(delay)
	}
}

// New wires a controller and its collaborators over a built registry. The
// controller starts Uninitialized; nothing moves until Init.
func New(reg *registry.Registry, events *bus.Bus, opts ...Option) *Controller {
	c := &Controller{
		logger: logging.NewNop(),
		reg:    reg,
		events: events,
		state:  domain.NewNavigationState(),
		status: domain.StatusUninitialized,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.gate == nil {
		c.gate = validate.NewRuleGate(validate.WithLogger(c.logger))
	}
	if c.debouncer == nil {
		c.debouncer = validate.NewDebouncer(validate.DefaultDebounce)
	}
	c.form = NewFormStore(c.logger)

	// Condition mutations and skip requests only make sense once the
	// controller registered itself; until then they are dropped.
	events.Require(domain.EventConditionsChanged, domain.ModuleNavigation)
	events.Require(domain.EventSkipRequest, domain.ModuleNavigation)

	c.branches = branch.New(reg, events, c, c.form, branch.WithLogger(c.logger))
	c.skips = skipmgr.New(reg, events, c.form, c, skipmgr.WithLogger(c.logger))
	return c
}

// Status returns the lifecycle status.
func (c *Controller) Status() domain.LifecycleStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Init moves the controller to Ready positioned on the first step. Calling
// Init on a Ready controller is a no-op; a Destroyed controller stays
// destroyed. A form with no steps leaves the controller Uninitialized.
func (c *Controller) Init() error {
	c.mu.Lock()
	switch c.status {
	case domain.StatusReady:
		c.mu.Unlock()
		return nil
	case domain.StatusDestroyed:
		c.mu.Unlock()
		return domain.ErrDestroyed
	}
	first := c.reg.First()
	if first == nil {
		c.mu.Unlock()
		c.logger.Warn("form has no steps, staying uninitialized")
		return fmt.Errorf("init: form has no steps")
	}
	c.status = domain.StatusReady
	c.state.CurrentStepID = first.ID
	c.state.Visited[first.ID] = true
	c.mu.Unlock()

	c.events.RegisterModule(domain.ModuleNavigation)
	c.unsubs = append(c.unsubs, c.events.Subscribe(domain.EventSkipRequest, c.onSkipRequest))

	c.branches.RecomputeVisibility()
	c.publishStepChange(first)
	// A conditional skip of the first step navigates off it here, publishing
	// its own step:change after the initial one.
	c.skips.EvaluateConditionalSkips(c.Conditions())
	return nil
}

// Destroy releases subscriptions and timers. Idempotent; every operation
// after Destroy is a logged no-op.
func (c *Controller) Destroy() {
	c.mu.Lock()
	if c.status == domain.StatusDestroyed {
		c.mu.Unlock()
		return
	}
	c.status = domain.StatusDestroyed
	c.mu.Unlock()

	for _, unsub := range c.unsubs {
		unsub()
	}
	c.unsubs = nil
	c.skips.Close()
	c.debouncer.Stop()
	c.events.UnregisterModule(domain.ModuleNavigation)
	c.logger.Debug("controller destroyed")
}

// CurrentStepID returns the id of the active step, empty before Init.
func (c *Controller) CurrentStepID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.CurrentStepID
}

// CurrentStep returns the active step, nil before Init.
func (c *Controller) CurrentStep() *domain.Step {
	return c.reg.Get(c.CurrentStepID())
}

// CurrentIndex returns the flat index of the active step, -1 before Init.
func (c *Controller) CurrentIndex() int {
	return c.reg.IndexOf(c.CurrentStepID())
}

// History returns a copy of the back-navigation stack.
func (c *Controller) History() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.state.History...)
}

// Visited returns the visited step ids in definition order.
func (c *Controller) Visited() []string {
	c.mu.Lock()
	visited := make(map[string]bool, len(c.state.Visited))
	for id := range c.state.Visited {
		visited[id] = true
	}
	c.mu.Unlock()

	out := make([]string, 0, len(visited))
	for _, step := range c.reg.Steps() {
		if visited[step.ID] {
			out = append(out, step.ID)
		}
	}
	return out
}

// GoToIndex navigates to the step at a flat index. Out-of-range indexes,
// skipped steps and hidden steps are refused with a diagnostic.
func (c *Controller) GoToIndex(i int) bool {
	if !c.ready("go_to_index") {
		return false
	}
	step := c.reg.At(i)
	if step == nil {
		c.logger.Warn("step index out of range", "index", i, "steps", c.reg.Len())
		return false
	}
	return c.goTo(step, true)
}

// GoToID navigates to a step by id.
func (c *Controller) GoToID(id string) bool {
	if !c.ready("go_to_id") {
		return false
	}
	step := c.reg.Get(id)
	if step == nil {
		c.logger.Warn("unknown step id", "step", id)
		return false
	}
	return c.goTo(step, true)
}

// Next advances to the following step: the current step's active branch
// target when one exists, otherwise the next visible non-skipped top-level
// step. Validation of the current step's fields runs first and a failure
// blocks the transition. At the last step Next is a logged no-op.
func (c *Controller) Next() bool {
	if !c.ready("next") {
		return false
	}
	cur := c.CurrentStep()
	if cur == nil {
		return false
	}
	if !c.validateCurrent(cur) {
		return false
	}

	anchor := c.topOf(cur)
	for _, target := range c.reg.TargetsOf(anchor.ID) {
		if c.branches.IsActive(target) && target != cur.ID {
			if step := c.reg.Get(target); step != nil && !c.skips.IsSkipped(target) {
				return c.goTo(step, true)
			}
		}
	}

	next := c.nextAvailable(anchor.Index)
	if next == nil {
		c.logger.Debug("already at last step", "step", cur.ID)
		return false
	}
	return c.goTo(next, true)
}

// Previous returns to the step on top of the history stack; with an empty
// stack it falls back to the preceding top-level step. At the first step
// Previous is a logged no-op. Going back never validates.
func (c *Controller) Previous() bool {
	if !c.ready("previous") {
		return false
	}

	for {
		c.mu.Lock()
		if len(c.state.History) == 0 {
			c.mu.Unlock()
			break
		}
		top := c.state.History[len(c.state.History)-1]
		c.state.History = c.state.History[:len(c.state.History)-1]
		c.mu.Unlock()

		step := c.reg.Get(top)
		if step == nil || !c.available(step) {
			continue
		}
		return c.goTo(step, false)
	}

	cur := c.CurrentStep()
	if cur == nil {
		return false
	}
	prev := c.prevAvailable(c.topOf(cur).Index)
	if prev == nil {
		c.logger.Debug("already at first step", "step", cur.ID)
		return false
	}
	return c.goTo(prev, false)
}

// SetField stores a field value and schedules debounced validation for it.
func (c *Controller) SetField(name string, value any) {
	if !c.ready("set_field") {
		return
	}
	field, stepID, ok := c.fieldDef(name)
	if !ok {
		c.logger.Warn("value set for unknown field", "field", name)
		return
	}
	c.form.Set(name, value)
	c.debouncer.Trigger("field:"+name, func() {
		current, _ := c.form.Get(name)
		if errs := c.gate.ValidateField(field, current); len(errs) > 0 {
			c.events.Publish(domain.EventValidationFailed, domain.ValidationFailure{
				StepID: stepID,
				Errors: errs,
			})
		}
	})
}

// ValidateForm validates every step's fields against the stored values and
// returns the accumulated errors. A validation:failed event is published
// per failing step.
func (c *Controller) ValidateForm() []domain.FieldError {
	if !c.ready("validate_form") {
		return nil
	}
	values := c.form.All()
	var all []domain.FieldError
	for _, step := range c.reg.Steps() {
		fields := c.reg.FieldsOf(step.ID)
		if len(fields) == 0 || c.skips.IsSkipped(step.ID) {
			continue
		}
		if step.ShowIf != "" && !c.branches.EvaluateExpr(step.ShowIf) {
			continue
		}
		if errs := c.gate.ValidateStep(step.ID, fields, values); len(errs) > 0 {
			all = append(all, errs...)
			c.events.Publish(domain.EventValidationFailed, domain.ValidationFailure{
				StepID: step.ID,
				Errors: errs,
			})
		}
	}
	return all
}

// ResetForm cancels pending validation timers, drops every entered value,
// skip entry and active condition, and repositions on the first step.
func (c *Controller) ResetForm() {
	if !c.ready("reset_form") {
		return
	}
	c.debouncer.CancelAll()
	c.form.Reset()
	c.skips.Reset()
	c.branches.Reset()

	first := c.reg.First()
	c.mu.Lock()
	c.state = domain.NewNavigationState()
	c.state.CurrentStepID = first.ID
	c.state.Visited[first.ID] = true
	c.mu.Unlock()

	c.branches.RecomputeVisibility()
	c.publishStepChange(first)
}

// Branches exposes the branch evaluator for option selection and explicit
// activation.
func (c *Controller) Branches() *branch.Evaluator {
	return c.branches
}

// Skips exposes the skip manager.
func (c *Controller) Skips() *skipmgr.Manager {
	return c.skips
}

// Form exposes the value store.
func (c *Controller) Form() *FormStore {
	return c.form
}

// ActiveItem returns the revealed item id for a parent step, empty when
// none is active.
func (c *Controller) ActiveItem(parentID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveItems[parentID]
}

// Snapshot captures the full session state.
func (c *Controller) Snapshot() *domain.Snapshot {
	c.mu.Lock()
	snap := &domain.Snapshot{
		Status:           c.status,
		CurrentStepID:    c.state.CurrentStepID,
		CurrentStepIndex: -1,
		History:          append([]string(nil), c.state.History...),
		ActiveConditions: make(map[string]string, len(c.state.ActiveConditions)),
		ActiveItems:      make(map[string]string, len(c.state.ActiveItems)),
	}
	for k, v := range c.state.ActiveConditions {
		snap.ActiveConditions[k] = v
	}
	for k, v := range c.state.ActiveItems {
		snap.ActiveItems[k] = v
	}
	c.mu.Unlock()

	snap.Visited = c.Visited()
	snap.CurrentStepIndex = c.reg.IndexOf(snap.CurrentStepID)
	snap.Skipped = c.skips.Entries()
	snap.FormData = c.form.All()
	return snap
}

// Restore rehydrates a Ready controller from a snapshot. The snapshot's
// current step must exist in this form.
func (c *Controller) Restore(snap *domain.Snapshot) error {
	if c.Status() != domain.StatusReady {
		return domain.ErrNotReady
	}
	step := c.reg.Get(snap.CurrentStepID)
	if step == nil {
		return fmt.Errorf("restore: unknown step %q", snap.CurrentStepID)
	}

	c.mu.Lock()
	state := domain.NewNavigationState()
	state.CurrentStepID = snap.CurrentStepID
	state.History = append([]string(nil), snap.History...)
	for _, id := range snap.Visited {
		state.Visited[id] = true
	}
	state.Visited[snap.CurrentStepID] = true
	for k, v := range snap.ActiveConditions {
		state.ActiveConditions[k] = v
	}
	for k, v := range snap.ActiveItems {
		state.ActiveItems[k] = v
	}
	c.state = state
	c.mu.Unlock()

	c.form.Replace(snap.FormData)
	c.skips.Restore(snap.Skipped)
	c.branches.Reset()
	c.branches.RecomputeVisibility()
	c.publishStepChange(step)
	return nil
}

// SetCondition implements branch.ConditionState.
func (c *Controller) SetCondition(target, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.ActiveConditions[target] = value
}

// ClearCondition implements branch.ConditionState.
func (c *Controller) ClearCondition(target string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.state.ActiveConditions, target)
}

// ConditionValue implements branch.ConditionState.
func (c *Controller) ConditionValue(target string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.ActiveConditions[target]
}

// Conditions implements branch.ConditionState.
func (c *Controller) Conditions() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.state.ActiveConditions))
	for k, v := range c.state.ActiveConditions {
		out[k] = v
	}
	return out
}

func (c *Controller) ready(op string) bool {
	switch c.Status() {
	case domain.StatusReady:
		return true
	case domain.StatusDestroyed:
		c.logger.Warn("operation on destroyed controller ignored", "op", op)
	default:
		c.logger.Warn("operation before init ignored", "op", op)
	}
	return false
}

// goTo commits a transition. push selects the forward history discipline:
// the departed id is pushed unless it already tops the stack. Back
// navigation passes push=false after popping.
func (c *Controller) goTo(step *domain.Step, push bool) bool {
	if c.skips.IsSkipped(step.ID) {
		c.logger.Warn("navigation to skipped step refused", "step", step.ID)
		return false
	}
	if step.ShowIf != "" && !c.branches.EvaluateExpr(step.ShowIf) {
		c.logger.Warn("navigation to hidden step refused", "step", step.ID)
		return false
	}

	c.mu.Lock()
	from := c.state.CurrentStepID
	if from == step.ID {
		c.mu.Unlock()
		return true
	}
	if push && from != "" {
		if n := len(c.state.History); n == 0 || c.state.History[n-1] != from {
			c.state.History = append(c.state.History, from)
		}
	}
	if step.IsItem() {
		if parent := c.reg.ParentOf(step); parent != nil {
			c.state.ActiveItems[parent.ID] = step.ID
		}
	}
	c.state.CurrentStepID = step.ID
	c.state.Visited[step.ID] = true
	c.mu.Unlock()

	c.publishStepChange(step)
	return true
}

func (c *Controller) publishStepChange(step *domain.Step) {
	c.events.Publish(domain.EventStepChange, domain.StepChange{
		CurrentStepIndex: step.Index,
		CurrentStepID:    step.ID,
		NavigatedSteps:   c.Visited(),
	})
}

// topOf resolves a step to its top-level anchor: the step itself, or the
// parent when the step is an item.
func (c *Controller) topOf(step *domain.Step) *domain.Step {
	if step.IsItem() {
		if parent := c.reg.ParentOf(step); parent != nil {
			return parent
		}
	}
	return step
}

func (c *Controller) nextAvailable(fromIndex int) *domain.Step {
	idx := fromIndex
	for {
		cand := c.reg.NextTop(idx)
		if cand == nil {
			return nil
		}
		if c.available(cand) {
			return cand
		}
		idx = cand.Index
	}
}

func (c *Controller) prevAvailable(fromIndex int) *domain.Step {
	idx := fromIndex
	for {
		cand := c.reg.PrevTop(idx)
		if cand == nil {
			return nil
		}
		if c.available(cand) {
			return cand
		}
		idx = cand.Index
	}
}

func (c *Controller) available(step *domain.Step) bool {
	if c.skips.IsSkipped(step.ID) {
		return false
	}
	if step.ShowIf != "" && !c.branches.EvaluateExpr(step.ShowIf) {
		return false
	}
	return true
}

// validateCurrent runs the gate over the current step's fields, plus the
// active item's fields when the step has one revealed.
func (c *Controller) validateCurrent(cur *domain.Step) bool {
	fields := append([]forms.FieldDef(nil), c.reg.FieldsOf(cur.ID)...)
	if item := c.ActiveItem(cur.ID); item != "" {
		fields = append(fields, c.reg.FieldsOf(item)...)
	}
	if len(fields) == 0 {
		return true
	}
	errs := c.gate.ValidateStep(cur.ID, fields, c.form.All())
	if len(errs) == 0 {
		return true
	}
	c.events.Publish(domain.EventValidationFailed, domain.ValidationFailure{
		StepID: cur.ID,
		Errors: errs,
	})
	return false
}

func (c *Controller) fieldDef(name string) (forms.FieldDef, string, bool) {
	for _, step := range c.reg.Steps() {
		for _, field := range c.reg.FieldsOf(step.ID) {
			if field.Name == name {
				return field, step.ID, true
			}
		}
	}
	return forms.FieldDef{}, "", false
}

// onSkipRequest moves off a just-skipped current step. An empty target
// means "next available"; a named target that cannot be reached falls back
// to the same.
func (c *Controller) onSkipRequest(payload any) {
	req, ok := payload.(domain.SkipRequest)
	if !ok {
		c.logger.Warn("unexpected skip:request payload", "payload", payload)
		return
	}
	if req.TargetStepID != "" {
		if step := c.reg.Get(req.TargetStepID); step != nil && c.available(step) {
			c.goTo(step, true)
			return
		}
		c.logger.Warn("skip target unavailable, using next step", "target", req.TargetStepID)
	}
	cur := c.CurrentStep()
	if cur == nil {
		return
	}
	if next := c.nextAvailable(c.topOf(cur).Index); next != nil {
		c.goTo(next, true)
	}
}
