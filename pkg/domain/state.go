package domain

// LifecycleStatus defines the current mode of the navigation controller.
type LifecycleStatus string

const (
	// StatusUninitialized means Init has not succeeded; mutators are no-ops.
	StatusUninitialized LifecycleStatus = "uninitialized"
	// StatusReady is the only state in which transitions are accepted.
	StatusReady LifecycleStatus = "ready"
	// StatusDestroyed means the controller released its subscriptions and
	// timers; it never accepts transitions again.
	StatusDestroyed LifecycleStatus = "destroyed"
)

// NavigationState is the single source of truth for "where are we".
//
// It is owned exclusively by the navigation controller. The branch evaluator
// and skip manager mutate the condition and skip sub-fields only through
// controller-exposed setters, keeping one writer per invariant.
type NavigationState struct {
	// CurrentStepID is empty until the controller enters Ready.
	CurrentStepID string

	// History holds departed step ids, pushed on every distinct step change
	// and popped by back-navigation. LIFO.
	History []string

	// Visited records every step id that has been current at least once.
	// CurrentStepID is always a member once set.
	Visited map[string]bool

	// ActiveConditions maps branch target id to the activating value. A
	// target is active iff its value is non-empty; deactivation removes the
	// entry.
	ActiveConditions map[string]string

	// ActiveItems maps a parent step id to the currently revealed item id.
	// At most one item per parent is visible at a time.
	ActiveItems map[string]string
}

// NewNavigationState creates an empty state positioned nowhere.
func NewNavigationState() *NavigationState {
	return &NavigationState{
		Visited:          make(map[string]bool),
		ActiveConditions: make(map[string]string),
		ActiveItems:      make(map[string]string),
	}
}

// ConditionActive reports whether target holds a non-empty value.
func (s *NavigationState) ConditionActive(target string) bool {
	return s.ActiveConditions[target] != ""
}

// Clone returns a deep copy, used by snapshotting and stores so callers
// cannot mutate engine state through a shared pointer.
func (s *NavigationState) Clone() *NavigationState {
	if s == nil {
		return nil
	}
	out := &NavigationState{
		CurrentStepID:    s.CurrentStepID,
		History:          append([]string(nil), s.History...),
		Visited:          make(map[string]bool, len(s.Visited)),
		ActiveConditions: make(map[string]string, len(s.ActiveConditions)),
		ActiveItems:      make(map[string]string, len(s.ActiveItems)),
	}
	for k, v := range s.Visited {
		out.Visited[k] = v
	}
	for k, v := range s.ActiveConditions {
		out.ActiveConditions[k] = v
	}
	for k, v := range s.ActiveItems {
		out.ActiveItems[k] = v
	}
	return out
}
