package graph

import (
	"fmt"
	"strings"

	"github.com/quillform/stepflow/pkg/forms"
)

// Overlay contains dynamic session state to visualize on the graph.
type Overlay struct {
	VisitedSteps []string
	CurrentStep  string
	SkippedSteps []string
}

// GenerateMermaid produces a Mermaid flowchart from a form definition.
// Shapes carry the step semantics:
//   - first step: ((circle))
//   - step item: [[subroutine]]
//   - step with fields: [/parallelogram/] (input)
//   - default: [rectangle]
//
// Sequential flow uses solid arrows, branch activations dashed ones
// labeled with the activating option, conditional skips dashed ones
// labeled with the expression. Overlay styles mark visited, current and
// skipped steps.
func GenerateMermaid(def *forms.Definition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	known := make(map[string]bool)
	for _, s := range def.Steps {
		if s.ID != "" {
			known[s.ID] = true
		}
	}

	var prevTop string
	for _, s := range def.Steps {
		if s.ID == "" {
			continue
		}
		safeID := sanitizeMermaidID(s.ID)

		opener, closer := "[", "]"
		switch {
		case prevTop == "" && s.Parent == "":
			opener, closer = "((", "))"
		case s.Parent != "":
			opener, closer = "[[", "]]"
		case len(s.Fields) > 0:
			opener, closer = "[/", "/]"
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, s.ID, closer))

		if s.Parent != "" {
			// Item membership
			sb.WriteString(fmt.Sprintf("    %s --- %s\n", sanitizeMermaidID(s.Parent), safeID))
		} else {
			if prevTop != "" {
				sb.WriteString(fmt.Sprintf("    %s --> %s\n", sanitizeMermaidID(prevTop), safeID))
			}
			prevTop = s.ID
		}

		for _, f := range s.Fields {
			for _, opt := range f.Options {
				if opt.GoTo == "" || !known[opt.GoTo] {
					continue
				}
				label := escapeMermaidLabel(opt.Value)
				sb.WriteString(fmt.Sprintf("    %s -. \"%s\" .-> %s\n", safeID, label, sanitizeMermaidID(opt.GoTo)))
			}
		}

		if expr := skipExpr(s); expr != "" && s.SkipTo != "" && known[s.SkipTo] {
			label := escapeMermaidLabel(expr)
			sb.WriteString(fmt.Sprintf("    %s -. \"skip: %s\" .-> %s\n", safeID, label, sanitizeMermaidID(s.SkipTo)))
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text for contrast regardless of the renderer theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef skipped fill:#eceff1,stroke:#90a4ae,stroke-dasharray: 5 5,color:#000;\n")

		seen := make(map[string]bool)
		for _, id := range overlay.VisitedSteps {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !seen[safeID] {
				seen[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s visited;\n", safeID))
			}
		}
		for _, id := range overlay.SkippedSteps {
			if safeID := sanitizeMermaidID(id); safeID != "" {
				sb.WriteString(fmt.Sprintf("    class %s skipped;\n", safeID))
			}
		}
		if overlay.CurrentStep != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentStep)))
		}
	}

	return sb.String()
}

func skipExpr(s forms.StepDef) string {
	if s.SkipIf != "" {
		return s.SkipIf
	}
	if s.SkipUnless != "" {
		return "!" + s.SkipUnless
	}
	return ""
}

func escapeMermaidLabel(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
