package domain

// Snapshot is the JSON-serializable debug/persistence view of a form
// session: navigation state, skip bookkeeping and entered field values.
// Stores persist snapshots; the engine can be rehydrated from one.
type Snapshot struct {
	Status           LifecycleStatus       `json:"status"`
	CurrentStepID    string                `json:"current_step_id,omitempty"`
	CurrentStepIndex int                   `json:"current_step_index"`
	History          []string              `json:"history,omitempty"`
	Visited          []string              `json:"visited,omitempty"`
	ActiveConditions map[string]string     `json:"active_conditions,omitempty"`
	ActiveItems      map[string]string     `json:"active_items,omitempty"`
	Skipped          map[string]*SkipEntry `json:"skipped,omitempty"`
	FormData         map[string]any        `json:"form_data,omitempty"`
}
