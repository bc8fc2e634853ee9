package pipeline

import (
	"fmt"
	"strings"

	"github.com/blackscope/blackscope/browser"
	"github.com/blackscope/blackscope/webclient"
)

// Artifact is the recorded outcome of one node's execution within a run:
// the messages it emitted, in order, plus either its terminal value or the
// captured precondition failure. Artifacts are immutable once appended.
type Artifact struct {
	// NodeID identifies the node this artifact belongs to.
	NodeID string

	// Messages holds every message the node emitted, in emission order.
	Messages []Message

	// Value is the node's terminal value. Nil when the node failed.
	Value any

	// Failure is the captured precondition failure, nil on success.
	// Uncategorized failures never produce an artifact at all.
	Failure *PreconditionFailure
}

// Failed reports whether this artifact records a failure outcome.
func (a Artifact) Failed() bool { return a.Failure != nil }

// ArtifactValue reads a success artifact's value as T.
func ArtifactValue[T any](a Artifact) (T, error) {
	var zero T
	if a.Failed() {
		return zero, a.Failure
	}
	if a.Value == nil {
		return zero, nil
	}
	t, ok := a.Value.(T)
	if !ok {
		return zero, fmt.Errorf("artifact %s holds %T, not %T", a.NodeID, a.Value, zero)
	}
	return t, nil
}

// History is the append-only, per-run record of node outcomes, indexed by
// node identifier. It exists for exactly one orchestrator run and is only
// ever touched by the node currently executing, so it needs no locking.
type History struct {
	ordered []Artifact
	byNode  map[string]Artifact
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{byNode: make(map[string]Artifact)}
}

// Add appends an artifact and indexes it by node identifier. Adding a second
// artifact under an already-used identifier is a programmer error and is
// rejected.
func (h *History) Add(a Artifact) error {
	if a.NodeID == "" {
		return fmt.Errorf("artifact has no node identifier")
	}
	if _, exists := h.byNode[a.NodeID]; exists {
		return fmt.Errorf("artifact for node %q already recorded", a.NodeID)
	}
	h.ordered = append(h.ordered, a)
	h.byNode[a.NodeID] = a
	return nil
}

// Contains reports whether an artifact exists for the given node identifier.
func (h *History) Contains(nodeID string) bool {
	_, ok := h.byNode[nodeID]
	return ok
}

// Get returns the artifact recorded for the given node identifier. Callers
// check Contains first; a miss here is a programmer error.
func (h *History) Get(nodeID string) (Artifact, bool) {
	a, ok := h.byNode[nodeID]
	return a, ok
}

// All returns the recorded artifacts in insertion order.
func (h *History) All() []Artifact {
	out := make([]Artifact, len(h.ordered))
	copy(out, h.ordered)
	return out
}

// Len returns the number of recorded artifacts.
func (h *History) Len() int { return len(h.ordered) }

// RunContext is the per-run shared state handed to every node: the normalized
// target URL, the externally-owned network session and browser handle, and
// the run's History. It is exclusively owned by one orchestrator run; nodes
// execute strictly one at a time, so no synchronization is needed. Nodes must
// not retain the session or browser beyond the run.
type RunContext struct {
	// URL is the protocol-qualified evaluation target.
	URL string

	// Session is the shared HTTP session, created once by the caller.
	Session *webclient.Session

	// Browser is the shared browser-automation handle, created once by the
	// caller.
	Browser browser.Driver

	// History records the outcome of every node that has run so far.
	History *History
}

// NormalizeTarget trims the raw target and prepends https:// when it carries
// no http:// or https:// prefix.
func NormalizeTarget(raw string) string {
	target := strings.TrimSpace(raw)
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		return "https://" + target
	}
	return target
}
