// Package types defines the core domain model of submitflow: jobs, attempts,
// per-step action logs, model decisions, and the shared error taxonomy.
//
// Everything here is storage- and transport-agnostic. The store package maps
// these types onto relational tables, and the llm package produces Decision
// values from raw model output.
package types
