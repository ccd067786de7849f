package stepflow

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/quillform/stepflow/pkg/domain"
)

// Runner drives an Engine through provided IO: it prompts for the current
// step's fields, accepts navigation commands, and loops until the form is
// complete. Using explicit readers and writers keeps it testable and lets
// different frontends (CLI, TUI) reuse the loop.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms step text before it is written, e.g. markdown
// to ANSI for a TUI frontend.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the prompt loop until the last step is confirmed, the input
// hits EOF, or the user quits.
//
// Commands at the prompt: "next", "back", "skip [reason]", "undo <step>",
// "select <group> <value>", "reset", "quit". Anything of the form
// "name=value" is stored as a field value.
func (r *Runner) Run(eng *Engine) error {
	if r.Input == nil {
		return fmt.Errorf("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return fmt.Errorf("output writer must be set (use os.Stdout)")
	}
	lines := bufio.NewReader(r.Input)
	out := r.Output

	if err := eng.Init(); err != nil {
		return err
	}

	unsub := eng.Subscribe(domain.EventValidationFailed, func(payload any) {
		failure, ok := payload.(domain.ValidationFailure)
		if !ok {
			return
		}
		for _, fe := range failure.Errors {
			fmt.Fprintf(out, "! %s\n", fe.Message)
		}
	})
	defer unsub()

	lastPrompted := ""
	for {
		cur := eng.CurrentStep()
		if cur == nil {
			return fmt.Errorf("engine has no current step")
		}
		if cur.ID != lastPrompted {
			r.printStep(out, eng, cur)
			lastPrompted = cur.ID
		}

		if r.Headless {
			if !eng.Next() {
				break
			}
			continue
		}

		fmt.Fprint(out, "> ")
		text, err := lines.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("input error: %w", err)
		}
		input := strings.TrimSpace(text)

		switch {
		case input == "quit" || input == "exit":
			fmt.Fprintln(out, "Bye!")
			return nil
		case input == "next" || input == "":
			if !eng.Next() && eng.CurrentStepID() == cur.ID {
				// Either validation blocked us or this is the last step.
				if len(eng.ValidateForm()) == 0 {
					fmt.Fprintln(out, "Form complete.")
					return nil
				}
			}
		case input == "back":
			eng.Previous()
		case input == "reset":
			eng.ResetForm()
			lastPrompted = ""
		case strings.HasPrefix(input, "skip"):
			reason := strings.TrimSpace(strings.TrimPrefix(input, "skip"))
			eng.Skip(cur.ID, reason)
		case strings.HasPrefix(input, "undo "):
			step := strings.TrimSpace(strings.TrimPrefix(input, "undo "))
			if !eng.UndoSkip(step) {
				fmt.Fprintf(out, "cannot undo skip of %q\n", step)
			}
		case strings.HasPrefix(input, "select "):
			parts := strings.Fields(input)
			if len(parts) == 3 {
				eng.SelectOption(parts[1], parts[2])
			} else {
				fmt.Fprintln(out, "usage: select <group> <value>")
			}
		case strings.Contains(input, "="):
			name, value, _ := strings.Cut(input, "=")
			eng.SetField(strings.TrimSpace(name), strings.TrimSpace(value))
		default:
			fmt.Fprintf(out, "unknown command %q\n", input)
		}
	}
	return nil
}

func (r *Runner) printStep(out io.Writer, eng *Engine, step *domain.Step) {
	header := fmt.Sprintf("## %s", step.ID)
	if r.Renderer != nil {
		if rendered, err := r.Renderer(header); err == nil {
			header = strings.TrimSpace(rendered)
		}
	}
	fmt.Fprintln(out, header)
	for _, field := range eng.Definition().FieldsOf(step.ID) {
		label := field.Label
		if label == "" {
			label = field.Name
		}
		marker := ""
		if field.Required {
			marker = " (required)"
		}
		fmt.Fprintf(out, "  %s = <%s>%s\n", field.Name, label, marker)
	}
}
