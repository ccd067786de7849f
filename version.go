package stepflow

// Version is the library version reported by the CLI and adapters.
const Version = "1.0.0"
