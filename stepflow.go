package stepflow

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/internal/runtime"
	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
	"github.com/quillform/stepflow/pkg/ports"
)

// Engine is the high-level entry point for the stepflow library. It wraps
// the internal navigation controller and exposes a simplified API for
// consumers.
type Engine struct {
	controller *runtime.Controller
	events     *bus.Bus
	def        *forms.Definition
	logger     *slog.Logger

	gate     ports.ValidationGate
	debounce time.Duration
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithValidationGate replaces the built-in rule gate.
func WithValidationGate(gate ports.ValidationGate) Option {
	return func(e *Engine) {
		e.gate = gate
	}
}

// WithDebounce overrides the input-validation debounce delay.
func WithDebounce(delay time.Duration) Option {
	return func(e *Engine) {
		e.debounce = delay
	}
}

// New builds an engine for a form definition. Definition errors (duplicate
// ids, dangling branch targets, contradictory skip conditions) are
// rejected here; warnings are logged and tolerated.
func New(def *forms.Definition, opts ...Option) (*Engine, error) {
	if def == nil {
		return nil, fmt.Errorf("definition is required")
	}

	eng := &Engine{
		def:  def,
		Name: def.Name,
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = slog.Default()
	}

	issues := forms.Validate(def)
	for _, issue := range issues {
		if issue.Severity == forms.SeverityWarning {
			eng.logger.Warn("form definition warning", "step", issue.StepID, "issue", issue.Message)
		}
	}
	if forms.HasErrors(issues) {
		for _, issue := range issues {
			if issue.Severity == forms.SeverityError {
				eng.logger.Error("form definition error", "step", issue.StepID, "issue", issue.Message)
			}
		}
		return nil, fmt.Errorf("definition %q has errors", def.Name)
	}

	reg := registry.Build(def, registry.WithLogger(eng.logger))
	eng.events = bus.New(bus.WithLogger(eng.logger))

	ctrlOpts := []runtime.Option{runtime.WithLogger(eng.logger)}
	if eng.gate != nil {
		ctrlOpts = append(ctrlOpts, runtime.WithGate(eng.gate))
	}
	if eng.debounce > 0 {
		ctrlOpts = append(ctrlOpts, runtime.WithDebounce(eng.debounce))
	}
	eng.controller = runtime.New(reg, eng.events, ctrlOpts...)
	return eng, nil
}

// Load reads a YAML form definition from disk and builds an engine for it.
func Load(path string, opts ...Option) (*Engine, error) {
	def, err := forms.Load(path)
	if err != nil {
		return nil, err
	}
	return New(def, opts...)
}

// Init readies the engine on the first step. See Controller.Init.
func (e *Engine) Init() error {
	return e.controller.Init()
}

// Destroy releases subscriptions and timers. The engine is unusable
// afterwards.
func (e *Engine) Destroy() {
	e.controller.Destroy()
}

// Status returns the lifecycle status.
func (e *Engine) Status() domain.LifecycleStatus {
	return e.controller.Status()
}

// Definition returns the form definition the engine was built from.
func (e *Engine) Definition() *forms.Definition {
	return e.def
}

// CurrentStepID returns the id of the active step, empty before Init.
func (e *Engine) CurrentStepID() string {
	return e.controller.CurrentStepID()
}

// CurrentStep returns the active step, nil before Init.
func (e *Engine) CurrentStep() *domain.Step {
	return e.controller.CurrentStep()
}

// GoToStep navigates to the step at a flat index. Returns false when the
// transition was refused; the reason is logged, never panicked.
func (e *Engine) GoToStep(i int) bool {
	return e.controller.GoToIndex(i)
}

// GoToStepByID navigates to a step by id.
func (e *Engine) GoToStepByID(id string) bool {
	return e.controller.GoToID(id)
}

// Next advances to the following step, honoring active branch targets,
// skips and visibility. Current-step validation runs first.
func (e *Engine) Next() bool {
	return e.controller.Next()
}

// Previous returns to the previously visited step.
func (e *Engine) Previous() bool {
	return e.controller.Previous()
}

// SelectOption chooses a radio-group option, activating its branch target
// and deactivating the targets of the group's other options.
func (e *Engine) SelectOption(group, value string) bool {
	return e.controller.Branches().SelectOption(group, value)
}

// ActivateBranch marks a branch target active with the given value.
func (e *Engine) ActivateBranch(target, value string) {
	e.controller.Branches().Activate(target, value)
}

// DeactivateBranch clears a branch target and the form fields of its
// subtree.
func (e *Engine) DeactivateBranch(target string) {
	e.controller.Branches().Deactivate(target)
}

// BranchActive reports whether a branch target is active.
func (e *Engine) BranchActive(target string) bool {
	return e.controller.Branches().IsActive(target)
}

// Skip marks a step skipped. Skipping the current step also moves off it.
func (e *Engine) Skip(stepID, reason string) bool {
	return e.controller.Skips().Skip(stepID, reason)
}

// SkipSection skips a top-level step together with its items.
func (e *Engine) SkipSection(sectionID, reason string) bool {
	return e.controller.Skips().SkipSection(sectionID, reason)
}

// UndoSkip reverses a skip, when the skip was recorded as undoable.
// Cleared field values are not restored.
func (e *Engine) UndoSkip(stepID string) bool {
	return e.controller.Skips().UndoSkip(stepID)
}

// IsSkipped reports whether a step carries a skip entry.
func (e *Engine) IsSkipped(stepID string) bool {
	return e.controller.Skips().IsSkipped(stepID)
}

// SetField stores one field value and schedules debounced validation.
func (e *Engine) SetField(name string, value any) {
	e.controller.SetField(name, value)
}

// Field returns a stored field value.
func (e *Engine) Field(name string) (any, bool) {
	return e.controller.Form().Get(name)
}

// FormData returns a copy of every entered value.
func (e *Engine) FormData() map[string]any {
	return e.controller.Form().All()
}

// SetFormData replaces the entered values wholesale.
func (e *Engine) SetFormData(values map[string]any) {
	e.controller.Form().Replace(values)
}

// ValidateForm validates the whole form and returns the accumulated field
// errors.
func (e *Engine) ValidateForm() []domain.FieldError {
	return e.controller.ValidateForm()
}

// ResetForm clears entered values, skips and conditions and repositions on
// the first step.
func (e *Engine) ResetForm() {
	e.controller.ResetForm()
}

// Snapshot captures the full session state for persistence or debugging.
func (e *Engine) Snapshot() *domain.Snapshot {
	return e.controller.Snapshot()
}

// Restore rehydrates a Ready engine from a snapshot.
func (e *Engine) Restore(snap *domain.Snapshot) error {
	return e.controller.Restore(snap)
}

// Subscribe registers a listener for an engine event and returns its
// unsubscribe function. Delivery is synchronous in subscription order; a
// panicking listener is isolated and logged.
func (e *Engine) Subscribe(event string, fn bus.Listener) func() {
	return e.events.Subscribe(event, fn)
}

// Events exposes the underlying bus for adapters.
func (e *Engine) Events() *bus.Bus {
	return e.events
}
