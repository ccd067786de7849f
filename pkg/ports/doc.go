/*
Package ports defines the driven ports (interfaces) for the stepflow engine.

These interfaces decouple the navigation core from external collaborators,
allowing the engine to work with different validation rule engines, field
renderers and persistence backends.

# Key Interfaces

  - ValidationGate: gates forward navigation on per-field rules.
  - FieldClearer: clears field values when a branch deactivates or a step is skipped.
  - StateStore: persists and loads session snapshots.
  - DistributedLocker: distributed locking for concurrent session access.
*/
package ports
