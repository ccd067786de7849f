package stepflow_test

import (
	"fmt"

	"github.com/quillform/stepflow"
	"github.com/quillform/stepflow/pkg/domain"
	"github.com/quillform/stepflow/pkg/forms"
)

func Example() {
	def := &forms.Definition{
		Name: "signup",
		Steps: []forms.StepDef{
			{ID: "account", Fields: []forms.FieldDef{
				{Name: "email", Required: true},
			}},
			{ID: "plan", Fields: []forms.FieldDef{
				{Name: "plan", Input: "radio", Options: []forms.OptionDef{
					{Value: "pro", GoTo: "payment"},
					{Value: "free"},
				}},
			}},
			{ID: "payment", ShowIf: "payment"},
			{ID: "done"},
		},
	}

	eng, err := stepflow.New(def)
	if err != nil {
		panic(err)
	}
	if err := eng.Init(); err != nil {
		panic(err)
	}
	defer eng.Destroy()

	eng.Subscribe(domain.EventStepChange, func(p any) {
		fmt.Println("now at", p.(domain.StepChange).CurrentStepID)
	})

	eng.SetField("email", "ada@example.com")
	eng.Next()

	eng.SelectOption("plan", "pro")
	eng.Next()
	eng.Next()

	// Output:
	// now at plan
	// now at payment
	// now at done
}
