// Package stepflow is a state machine for multi-step forms.
//
// A form is a flat ordered sequence of steps, optionally nested one level
// deep (a step may own mutually exclusive "items"). The engine owns the
// single-active-step invariant, a LIFO back-navigation history, condition
// driven branching, skip bookkeeping with undo, and rule-based field
// validation with debounced per-field checks.
//
// Typical usage:
//
//	def, err := forms.Load("checkout.yaml")
//	if err != nil { ... }
//	eng, err := stepflow.New(def, stepflow.WithLogger(logger))
//	if err != nil { ... }
//	if err := eng.Init(); err != nil { ... }
//	defer eng.Destroy()
//
//	eng.SetField("email", "a@b.example")
//	eng.SelectOption("payment", "card")
//	eng.Next()
//
// Everything the engine does is observable: transitions, branch visibility
// flips, skips and validation failures are published on an in-process
// event bus (see Engine.Subscribe). Authoring mistakes never panic across
// the public boundary; they are logged and the operation degrades to a
// no-op.
package stepflow
