// Package branch tracks the active condition set, evaluates boolean
// condition expressions and activates/deactivates branch targets.
package branch

import "strings"

// Expr is a parsed condition expression, evaluated against the active
// condition map (target id -> activating value; active iff non-empty).
type Expr interface {
	Eval(active map[string]string) bool
	String() string
}

// Key is a bare condition key: true iff the key holds a non-empty value.
type Key struct {
	Name string
}

func (k Key) Eval(active map[string]string) bool {
	return active[k.Name] != ""
}

func (k Key) String() string { return k.Name }

// Not negates its operand.
type Not struct {
	X Expr
}

func (n Not) Eval(active map[string]string) bool {
	if n.X == nil {
		return true
	}
	return !n.X.Eval(active)
}

func (n Not) String() string {
	if n.X == nil {
		return "!"
	}
	return "!" + n.X.String()
}

// Or is true when any term is.
type Or struct {
	Terms []Expr
}

func (o Or) Eval(active map[string]string) bool {
	for _, t := range o.Terms {
		if t.Eval(active) {
			return true
		}
	}
	return false
}

func (o Or) String() string { return join(o.Terms, ",") }

// And is true only when every term is.
type And struct {
	Terms []Expr
}

func (a And) Eval(active map[string]string) bool {
	for _, t := range a.Terms {
		if !t.Eval(active) {
			return false
		}
	}
	return len(a.Terms) > 0
}

func (a And) String() string { return join(a.Terms, "&") }

func join(terms []Expr, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, sep)
}

// Parse builds the expression tree for a condition string.
//
// Grammar, evaluated left-to-right with no precedence beyond these forms:
//
//	!expr    negation (recursive)
//	a,b,c    OR
//	a&b&c    AND
//	key      bare key
//
// Comma and ampersand in the same expression are intentionally not
// supported: the string is split once, on the comma when present, else on
// the ampersand. A term still containing the other operator is kept as an
// opaque key, which can never be active.
//
// An empty expression parses to nil; nil never evaluates true (see
// Evaluate).
func Parse(s string) Expr {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if rest, ok := strings.CutPrefix(s, "!"); ok {
		return Not{X: Parse(rest)}
	}
	if strings.Contains(s, ",") {
		return Or{Terms: parseTerms(s, ",")}
	}
	if strings.Contains(s, "&") {
		return And{Terms: parseTerms(s, "&")}
	}
	return Key{Name: s}
}

// parseTerms splits once on sep; each term only honors a leading negation.
func parseTerms(s, sep string) []Expr {
	parts := strings.Split(s, sep)
	terms := make([]Expr, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(p, "!"); ok {
			terms = append(terms, Not{X: Key{Name: strings.TrimSpace(rest)}})
			continue
		}
		terms = append(terms, Key{Name: p})
	}
	return terms
}

// Evaluate runs a parsed expression against the active condition map.
// A nil expression is false: an absent condition never matches.
func Evaluate(e Expr, active map[string]string) bool {
	if e == nil {
		return false
	}
	return e.Eval(active)
}
