package skip

import (
	"log/slog"
	"sync"
	"time"

	"github.com/quillform/stepflow/internal/branch"
	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/internal/registry"
	"github.com/quillform/stepflow/pkg/bus"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/ports"
)

// ConditionalReasonPrefix marks skip reasons produced by condition
// evaluation rather than an explicit request.
const ConditionalReasonPrefix = "condition:"

// StepSource exposes the controller's notion of the active step. The
// manager only asks for navigation when the step being skipped is the one
// the user is standing on.
type StepSource interface {
	CurrentStepID() string
}

// Manager tracks which steps are skipped and why.
//
// A skip clears the step's form fields, records an entry, and emits
// skip:applied. When the skipped step is the current one a skip:request is
// published so the controller moves off it; that event is gated on the
// navigation module, so requests fired during partial initialization are
// dropped rather than queued.
type Manager struct {
	logger  *slog.Logger
	reg     *registry.Registry
	events  *bus.Bus
	clearer ports.FieldClearer
	source  StepSource

	mu      sync.Mutex
	skipped map[string]*domain.SkipEntry
	exprs   map[string]branch.Expr
	unsub   func()
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// New creates a skip manager. It subscribes itself to branch:change so
// conditional skips are re-evaluated whenever the active condition set
// mutates.
func New(reg *registry.Registry, events *bus.Bus, clearer ports.FieldClearer, source StepSource, opts ...Option) *Manager {
	m := &Manager{
		logger:  logging.NewNop(),
		reg:     reg,
		events:  events,
		clearer: clearer,
		source:  source,
		skipped: make(map[string]*domain.SkipEntry),
		exprs:   make(map[string]branch.Expr),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsub = events.Subscribe(domain.EventConditionsChanged, func(payload any) {
		changed, ok := payload.(domain.ConditionsChanged)
		if !ok {
			m.logger.Warn("unexpected branch:change payload", "payload", payload)
			return
		}
		m.EvaluateConditionalSkips(changed.Active)
	})
	return m
}

// IsSkipped reports whether the step currently carries a skip entry.
func (m *Manager) IsSkipped(stepID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.skipped[stepID]
	return ok
}

// Entry returns a copy of the step's skip entry, or nil.
func (m *Manager) Entry(stepID string) *domain.SkipEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.skipped[stepID]
	if !ok {
		return nil
	}
	clone := *entry
	return &clone
}

// Entries returns a copy of the full skip map, for snapshots.
func (m *Manager) Entries() map[string]*domain.SkipEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]*domain.SkipEntry, len(m.skipped))
	for id, entry := range m.skipped {
		clone := *entry
		out[id] = &clone
	}
	return out
}

// Skip records an explicit skip for a step. Returns false when the step is
// unknown or already skipped; skipping a skipped step never changes the
// existing entry.
func (m *Manager) Skip(stepID, reason string) bool {
	step := m.reg.Get(stepID)
	if step == nil {
		m.logger.Warn("skip of unknown step ignored", "step", stepID)
		return false
	}
	return m.apply(step, reason, false)
}

// SkipSection skips a top-level step together with its items. Item entries
// inherit the section's reason. Returns false when the section is unknown
// or is itself an item.
func (m *Manager) SkipSection(sectionID, reason string) bool {
	section := m.reg.Get(sectionID)
	if section == nil || section.IsItem() {
		m.logger.Warn("skip of unknown section ignored", "section", sectionID)
		return false
	}
	ok := m.apply(section, reason, false)
	for _, item := range m.reg.ItemsOf(sectionID) {
		m.apply(item, reason, false)
	}
	return ok
}

// UndoSkip removes a skip entry. Returns false when the step is not
// skipped or its entry was recorded without undo permission. Cleared field
// values are not restored.
func (m *Manager) UndoSkip(stepID string) bool {
	m.mu.Lock()
	entry, ok := m.skipped[stepID]
	if !ok {
		m.mu.Unlock()
		return false
	}
	if !entry.CanUndo {
		m.mu.Unlock()
		m.logger.Warn("skip is not undoable", "step", stepID, "reason", entry.Reason)
		return false
	}
	delete(m.skipped, stepID)
	m.mu.Unlock()

	m.events.Publish(domain.EventSkipUndone, domain.SkipNotice{StepID: stepID, Reason: entry.Reason})
	return true
}

// EvaluateConditionalSkips reconciles the skip map with the active
// condition set. Steps whose skip_if holds (or skip_unless fails) get a
// conditional entry; conditional entries whose condition no longer holds
// are undone. Manual entries are never touched, and the evaluation is
// idempotent: a step already skipped for the same condition stays as-is.
func (m *Manager) EvaluateConditionalSkips(active map[string]string) {
	for _, step := range m.reg.ConditionalSteps() {
		expr := step.SkipIf
		want := false
		if expr != "" {
			want = branch.Evaluate(m.parse(expr), active)
		} else {
			expr = step.SkipUnless
			want = !branch.Evaluate(m.parse(expr), active)
		}

		if want {
			m.mu.Lock()
			_, already := m.skipped[step.ID]
			m.mu.Unlock()
			if !already {
				m.apply(step, ConditionalReasonPrefix+expr, true)
			}
			continue
		}

		m.mu.Lock()
		entry, ok := m.skipped[step.ID]
		conditional := ok && entry.Conditional
		m.mu.Unlock()
		if conditional {
			// Undo permission was frozen when the entry was recorded; a
			// non-undoable conditional skip stays applied.
			m.UndoSkip(step.ID)
		}
	}
}

// Close releases the manager's bus subscription.
func (m *Manager) Close() {
	if m.unsub != nil {
		m.unsub()
		m.unsub = nil
	}
}

// Reset drops all skip entries without emitting events, for engine reset.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = make(map[string]*domain.SkipEntry)
}

// Restore replaces the skip map from a snapshot.
func (m *Manager) Restore(entries map[string]*domain.SkipEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped = make(map[string]*domain.SkipEntry, len(entries))
	for id, entry := range entries {
		clone := *entry
		m.skipped[id] = &clone
	}
}

func (m *Manager) apply(step *domain.Step, reason string, conditional bool) bool {
	m.mu.Lock()
	if _, ok := m.skipped[step.ID]; ok {
		m.mu.Unlock()
		return false
	}
	entry := &domain.SkipEntry{
		StepID:      step.ID,
		Reason:      reason,
		Timestamp:   time.Now(),
		CanUndo:     step.AllowSkipUndo,
		Conditional: conditional,
	}
	if fields := m.reg.SubtreeFieldNames(step.ID); len(fields) > 0 {
		entry.FieldsCleared = fields
	}
	m.skipped[step.ID] = entry
	m.mu.Unlock()

	if len(entry.FieldsCleared) > 0 && m.clearer != nil {
		m.clearer.ClearFields(step.ID, entry.FieldsCleared)
	}
	m.events.Publish(domain.EventSkipApplied, domain.SkipNotice{StepID: step.ID, Reason: reason})

	if m.source != nil && m.source.CurrentStepID() == step.ID {
		// Empty target means "next available step" to the controller.
		m.events.Publish(domain.EventSkipRequest, domain.SkipRequest{TargetStepID: step.SkipTo})
	}
	return true
}

func (m *Manager) parse(expr string) branch.Expr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.exprs[expr]; ok {
		return cached
	}
	parsed := branch.Parse(expr)
	m.exprs[expr] = parsed
	return parsed
}
