package pipeline

import (
	"errors"
	"fmt"
)

// ErrValueNotAvailable is returned by Result.Value when the terminal value is
// requested before the message stream has been fully drained.
var ErrValueNotAvailable = errors.New("terminal value not available until the message stream is exhausted")

// FailureKind distinguishes the subtypes of a precondition failure.
type FailureKind string

// Precondition failure subtypes.
const (
	// KindAssertion marks a node-local invariant violation, such as an
	// unparsable payload.
	KindAssertion FailureKind = "assertion"

	// KindDependency marks a failure of the dependency gate: a required
	// upstream artifact is missing or itself holds a failure.
	KindDependency FailureKind = "dependency"
)

// PreconditionFailure is an expected, recoverable stop condition scoped to a
// single node. The orchestrator converts it into a recorded failure artifact
// and continues with the next configured node; it never halts the run.
//
// Any error that is not a PreconditionFailure is treated as uncategorized:
// logged internally with full detail, surfaced to the consumer only as one
// opaque orchestrator-attributed notice, and recorded as no artifact at all.
type PreconditionFailure struct {
	// Kind identifies the failure subtype.
	Kind FailureKind

	// Reason describes the condition in consumer-safe terms. It is relayed
	// verbatim in the synthetic error message.
	Reason string
}

// Error implements the error interface.
func (e *PreconditionFailure) Error() string {
	return fmt.Sprintf("%s failure: %s", e.Kind, e.Reason)
}

// NewAssertionFailure reports a node-local invariant violation.
func NewAssertionFailure(format string, args ...any) *PreconditionFailure {
	return &PreconditionFailure{Kind: KindAssertion, Reason: fmt.Sprintf(format, args...)}
}

// NewDependencyFailure reports a missing or failed upstream dependency.
func NewDependencyFailure(format string, args ...any) *PreconditionFailure {
	return &PreconditionFailure{Kind: KindDependency, Reason: fmt.Sprintf(format, args...)}
}

// AsPrecondition extracts a PreconditionFailure from err's chain.
func AsPrecondition(err error) (*PreconditionFailure, bool) {
	var pf *PreconditionFailure
	if errors.As(err, &pf) {
		return pf, true
	}
	return nil, false
}

// IsDependencyFailure reports whether err is a dependency-gate failure.
func IsDependencyFailure(err error) bool {
	pf, ok := AsPrecondition(err)
	return ok && pf.Kind == KindDependency
}

// IsAssertionFailure reports whether err is a node-local assertion failure.
func IsAssertionFailure(err error) bool {
	pf, ok := AsPrecondition(err)
	return ok && pf.Kind == KindAssertion
}
