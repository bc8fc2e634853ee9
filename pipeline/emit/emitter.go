// Package emit provides pluggable observability sinks for pipeline runs.
//
// The message stream itself is the product the consumer sees; emitters carry
// the operational view of the same run (node start/finish, failures, run
// boundaries) to logs or tracing backends.
package emit

// Event is one observability record describing pipeline progress.
type Event struct {
	// RunID identifies the pipeline run that produced this event.
	RunID string `json:"run_id"`

	// Seq is the 1-indexed position of the node within the run's configured
	// order. Zero for run-level events.
	Seq int `json:"seq"`

	// NodeID identifies the node this event concerns. Empty for run-level
	// events.
	NodeID string `json:"node_id,omitempty"`

	// Msg names the transition: run_start, node_start, node_complete,
	// node_failed, run_complete.
	Msg string `json:"msg"`

	// Meta carries additional structured detail, such as the failure kind or
	// the message count of a completed node.
	Meta map[string]any `json:"meta,omitempty"`
}

// Emitter receives pipeline events.
//
// Implementations must be safe for sequential reuse across runs, must not
// panic, and should not block the run; a slow backend belongs behind a
// buffer, not in the execution path.
type Emitter interface {
	Emit(event Event)
}
