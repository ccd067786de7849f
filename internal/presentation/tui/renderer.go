package tui

import (
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function rendering markdown step text with glamour,
// auto-detecting light/dark terminal backgrounds.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}
