package domain

// Event names published on the bus. Ordering is guaranteed only among
// listeners of the same event; see pkg/bus.
const (
	// EventStepChange fires after the controller commits a transition.
	EventStepChange = "step:change"
	// EventBranchShow / EventBranchHide fire when visibility recomputation
	// flips a conditional step.
	EventBranchShow = "branch:show"
	EventBranchHide = "branch:hide"
	// EventSkipRequest fires when a skip wants the controller to move off the
	// skipped step. Requires the navigation module to be ready.
	EventSkipRequest = "skip:request"
	// EventSkipApplied / EventSkipUndone report skip bookkeeping. Styling of
	// skipped steps is a collaborator concern driven by these events.
	EventSkipApplied = "skip:applied"
	EventSkipUndone  = "skip:undone"
	// EventValidationFailed carries the field errors that blocked a forward
	// transition.
	EventValidationFailed = "validation:failed"
	// EventConditionsChanged fires after the active condition set mutates.
	// Requires the navigation module to be ready; emissions during partial
	// initialization are dropped, not queued.
	EventConditionsChanged = "branch:change"
)

// ModuleNavigation is the bus module name the navigation controller
// registers once it is ready. Events that only make sense with a ready
// controller declare it as a requirement.
const ModuleNavigation = "navigation"

// StepChange is the payload of EventStepChange.
type StepChange struct {
	CurrentStepIndex int      `json:"current_step_index"`
	CurrentStepID    string   `json:"current_step_id"`
	NavigatedSteps   []string `json:"navigated_steps"`
}

// BranchVisibility is the payload of EventBranchShow / EventBranchHide.
type BranchVisibility struct {
	StepID string `json:"step_id"`
}

// SkipRequest is the payload of EventSkipRequest.
type SkipRequest struct {
	TargetStepID string `json:"target_step_id"`
}

// SkipNotice is the payload of EventSkipApplied / EventSkipUndone.
type SkipNotice struct {
	StepID string `json:"step_id"`
	Reason string `json:"reason,omitempty"`
}

// ConditionsChanged is the payload of EventConditionsChanged.
type ConditionsChanged struct {
	Active map[string]string `json:"active"`
}

// FieldError describes one failed validation rule on one field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationFailure is the payload of EventValidationFailed.
type ValidationFailure struct {
	StepID string       `json:"step_id"`
	Errors []FieldError `json:"errors"`
}
