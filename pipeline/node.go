package pipeline

import "context"

// Node is one named, dependency-gated unit of pipeline work.
//
// A node declares a stable identifier, a human-readable title and the
// identifiers of the nodes it depends on. Its Run method performs the
// node-specific work, streaming progress through yield and returning the
// node's terminal value, or an error: a *PreconditionFailure for an expected
// stop scoped to this node, anything else for an uncategorized failure.
//
// Nodes never invoke Run on each other directly; they go through Evaluate or
// ExhaustValue, which enforce the dependency gate first.
type Node interface {
	// Name returns the node's unique, immutable identifier.
	Name() string

	// Title returns the human-readable name used in consumer-facing messages.
	Title() string

	// DependsOn returns the identifiers of the nodes whose artifacts must be
	// present (and successful) in the run's History before this node runs.
	DependsOn() []string

	// Run executes the node's logic. It must observe ctx between yields and
	// stop promptly when yield returns false.
	Run(ctx context.Context, rc *RunContext, yield Yield) (any, error)
}

// Evaluate checks n's declared dependencies against the run's History and, if
// the gate passes, starts the node's work, returning its dual-channel result.
//
// The gate runs before any node-specific side effect: a missing dependency or
// a dependency whose artifact records a failure yields a DependencyFailure
// and the node's logic is never started.
func Evaluate(ctx context.Context, n Node, rc *RunContext) (*Result, error) {
	if err := gate(n, rc.History); err != nil {
		return nil, err
	}
	return NewResult(ctx, func(ctx context.Context, yield Yield) (any, error) {
		return n.Run(ctx, rc, yield)
	}), nil
}

// ExhaustValue evaluates n, drains its message stream discarding every
// message, and returns only the terminal value. Nodes use it to obtain an
// upstream node's value without narrating that node's progress as their own.
func ExhaustValue(ctx context.Context, n Node, rc *RunContext) (any, error) {
	res, err := Evaluate(ctx, n, rc)
	if err != nil {
		return nil, err
	}
	return res.Exhaust()
}

func gate(n Node, h *History) error {
	for _, dep := range n.DependsOn() {
		if !h.Contains(dep) {
			return NewDependencyFailure("dependency %s is required for %s", dep, n.Name())
		}
		artifact, _ := h.Get(dep)
		if artifact.Failed() {
			return NewDependencyFailure("skipping %s since %s run failed", n.Name(), dep)
		}
	}
	return nil
}
