// Package validate implements the minimal required/pattern/length rule gate
// and the debouncer that coalesces rapid-fire input validation.
package validate

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/quillform/stepflow/internal/logging"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
)

// RuleGate is the built-in ValidationGate: required, pattern and length
// checks. Anything richer is a different collaborator behind the same port.
type RuleGate struct {
	logger *slog.Logger

	mu       sync.Mutex
	patterns map[string]*regexp.Regexp
}

// Option configures the RuleGate.
type Option func(*RuleGate)

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *RuleGate) {
		g.logger = logger
	}
}

// NewRuleGate creates a gate with an empty pattern cache.
func NewRuleGate(opts ...Option) *RuleGate {
	g := &RuleGate{
		logger:   logging.NewNop(),
		patterns: make(map[string]*regexp.Regexp),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ValidateField checks a single value against the field's declared rules.
func (g *RuleGate) ValidateField(field forms.FieldDef, value any) []domain.FieldError {
	var errs []domain.FieldError

	text, empty := asText(value)

	if field.Required && empty {
		errs = append(errs, domain.FieldError{
			Field:   field.Name,
			Rule:    "required",
			Message: fmt.Sprintf("%s is required", displayName(field)),
		})
		return errs
	}
	if empty {
		return nil
	}

	if field.Pattern != "" {
		re := g.compile(field.Pattern, field.Name)
		if re != nil && !re.MatchString(text) {
			errs = append(errs, domain.FieldError{
				Field:   field.Name,
				Rule:    "pattern",
				Message: fmt.Sprintf("%s has an invalid format", displayName(field)),
			})
		}
	}

	if field.MinLength > 0 && len([]rune(text)) < field.MinLength {
		errs = append(errs, domain.FieldError{
			Field:   field.Name,
			Rule:    "min_length",
			Message: fmt.Sprintf("%s must be at least %d characters", displayName(field), field.MinLength),
		})
	}
	if field.MaxLength > 0 && len([]rune(text)) > field.MaxLength {
		errs = append(errs, domain.FieldError{
			Field:   field.Name,
			Rule:    "max_length",
			Message: fmt.Sprintf("%s must be at most %d characters", displayName(field), field.MaxLength),
		})
	}
	return errs
}

// ValidateStep checks every declared field of a step against the entered
// values. Fields absent from values are treated as empty.
func (g *RuleGate) ValidateStep(stepID string, fields []forms.FieldDef, values map[string]any) []domain.FieldError {
	var errs []domain.FieldError
	for _, f := range fields {
		if f.Name == "" {
			continue
		}
		errs = append(errs, g.ValidateField(f, values[f.Name])...)
	}
	if len(errs) > 0 {
		g.logger.Debug("step validation failed", "step", stepID, "errors", len(errs))
	}
	return errs
}

// compile returns the cached pattern, or nil when the pattern is malformed.
// A malformed pattern is an authoring error: logged once, rule skipped.
func (g *RuleGate) compile(pattern, field string) *regexp.Regexp {
	g.mu.Lock()
	defer g.mu.Unlock()
	if re, ok := g.patterns[pattern]; ok {
		return re
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		g.logger.Warn("invalid field pattern ignored", "field", field, "pattern", pattern, "err", err)
		g.patterns[pattern] = nil
		return nil
	}
	g.patterns[pattern] = re
	return re
}

func displayName(f forms.FieldDef) string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// asText normalizes a field value for rule checks. Only scalar text is
// validated; anything else is judged solely on emptiness.
func asText(value any) (text string, empty bool) {
	switch v := value.(type) {
	case nil:
		return "", true
	case string:
		trimmed := strings.TrimSpace(v)
		return v, trimmed == ""
	case bool:
		if v {
			return "true", false
		}
		return "", true
	case []string:
		return strings.Join(v, ","), len(v) == 0
	case []any:
		return fmt.Sprint(v), len(v) == 0
	default:
		s := fmt.Sprint(v)
		return s, strings.TrimSpace(s) == ""
	}
}
