package domain

import "time"

// SkipEntry records one skip action. Entries are reversible while the step
// stays skipped and CanUndo is true; CanUndo flips to false permanently once
// the entry is undone, so the same entry can never be re-applied.
type SkipEntry struct {
	StepID        string    `json:"step_id"`
	Reason        string    `json:"reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	CanUndo       bool      `json:"can_undo"`
	FieldsCleared []string  `json:"fields_cleared,omitempty"`

	// Conditional marks entries created by conditional skip evaluation, so
	// re-evaluation can distinguish them from manual skips.
	Conditional bool `json:"conditional,omitempty"`
}
