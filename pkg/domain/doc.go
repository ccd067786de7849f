/*
Package domain contains the core data model of the stepflow engine: steps,
navigation state, skip entries, lifecycle status and the event vocabulary
shared between the engine and its collaborators.

The types here are plain data. All invariants over them (single visible step,
history discipline, single-writer mutation) are enforced by the navigation
controller, never by the structs themselves.
*/
package domain
