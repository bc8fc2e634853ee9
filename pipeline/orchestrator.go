package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/blackscope/blackscope/browser"
	"github.com/blackscope/blackscope/pipeline/emit"
	"github.com/blackscope/blackscope/webclient"
)

// OrchestratorID attributes synthetic messages to the orchestrator itself.
const OrchestratorID = "orchestrator"

// Orchestrator executes a statically ordered list of nodes against one
// RunContext, relaying every message live and guaranteeing the run reaches a
// terminal state no matter how individual nodes fail.
//
// Per node, in configured order:
//  1. Emit a state message announcing the node's start.
//  2. Gate and evaluate the node, relaying each message as it is produced
//     (back-filling node attribution when the node left it empty).
//  3. On success, record a success artifact.
//  4. On a precondition failure (including the gate's dependency failures),
//     relay one synthetic error message and record a failure artifact, making
//     the failure visible as data to later dependents.
//  5. On any other failure, log full detail internally, relay exactly one
//     opaque orchestrator-attributed error message, and record no artifact;
//     later dependents then fail their own gate uniformly with a missing
//     dependency.
//
// Nodes never run concurrently: node k always observes the complete, final
// History of nodes 1..k-1. No node is retried within a run. After the last
// node, one final state message marks the run complete.
type Orchestrator struct {
	nodes   []Node
	emitter emit.Emitter
	metrics *Metrics
	logger  *zap.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithEmitter attaches an observability emitter for run/node transitions.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Orchestrator) { o.emitter = e }
}

// WithMetrics attaches Prometheus metrics collection.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger attaches the internal logger used for the full detail of
// uncategorized failures, which is never relayed to the consumer.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// NewOrchestrator builds an orchestrator over nodes in their configured
// execution order. A duplicate node identifier in the list is a configuration
// error.
func NewOrchestrator(nodes []Node, opts ...Option) (*Orchestrator, error) {
	seen := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n == nil {
			return nil, fmt.Errorf("orchestrator configured with a nil node")
		}
		if seen[n.Name()] {
			return nil, fmt.Errorf("node %q configured twice", n.Name())
		}
		seen[n.Name()] = true
	}

	o := &Orchestrator{
		nodes:   nodes,
		emitter: emit.NewNullEmitter(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes the pipeline against target and returns the run's own
// dual-channel result: the relayed message stream, and the run's History as
// the terminal value. The Context and History live exactly as long as this
// run; session and driver are externally owned and must outlive it.
//
// Cancellation of ctx is observed between yield points: the in-flight node's
// producer is stopped, no further artifacts are appended, and the stream
// ends. A consumer that stops reading must Close the returned result.
func (o *Orchestrator) Run(ctx context.Context, runID, target string, session *webclient.Session, driver browser.Driver) *Result {
	return NewResult(ctx, func(ctx context.Context, yield Yield) (any, error) {
		return o.run(ctx, runID, target, session, driver, yield)
	})
}

func (o *Orchestrator) run(ctx context.Context, runID, target string, session *webclient.Session, driver browser.Driver, yield Yield) (any, error) {
	rc := &RunContext{
		URL:     NormalizeTarget(target),
		Session: session,
		Browser: driver,
		History: NewHistory(),
	}

	o.metrics.runStarted()
	defer o.metrics.runFinished()
	o.emitter.Emit(emit.Event{RunID: runID, Msg: "run_start", Meta: map[string]any{"target": rc.URL}})

	relay := func(m Message) bool {
		if !yield(m) {
			return false
		}
		o.metrics.messageRelayed()
		return true
	}

	for seq, node := range o.nodes {
		if ctx.Err() != nil {
			return rc.History, ctx.Err()
		}

		start := StateMessage(
			fmt.Sprintf("Starting evaluation of %s...", node.Name()),
			StateDetails{NodeID: node.Name(), NodeTitle: node.Title()},
		)
		if !relay(start) {
			return rc.History, ctx.Err()
		}
		o.emitter.Emit(emit.Event{RunID: runID, Seq: seq + 1, NodeID: node.Name(), Msg: "node_start"})

		began := time.Now()
		buffered, value, err := o.evaluateNode(ctx, node, rc, relay)
		if err == errConsumerGone {
			return rc.History, ctx.Err()
		}

		switch {
		case err == nil:
			o.record(rc, Artifact{NodeID: node.Name(), Messages: buffered, Value: value})
			o.metrics.nodeFinished(node.Name(), statusSuccess, time.Since(began))
			o.emitter.Emit(emit.Event{
				RunID: runID, Seq: seq + 1, NodeID: node.Name(), Msg: "node_complete",
				Meta: map[string]any{"messages": len(buffered)},
			})

		case isCanceled(ctx, err):
			// Consumer disconnected or the run was canceled mid-node: stop
			// without recording an artifact for the interrupted node.
			return rc.History, ctx.Err()

		default:
			if pf, ok := AsPrecondition(err); ok {
				failure := Message{
					NodeID:    node.Name(),
					NodeTitle: node.Title(),
					Text:      pf.Reason,
					Source:    SourceAgent,
					Type:      TypeEvaluation,
					Level:     LevelError,
					Timestamp: time.Now().UTC(),
				}
				if !relay(failure) {
					return rc.History, ctx.Err()
				}
				o.record(rc, Artifact{NodeID: node.Name(), Messages: buffered, Failure: pf})
				o.metrics.nodeFinished(node.Name(), statusPrecondition, time.Since(began))
				o.emitter.Emit(emit.Event{
					RunID: runID, Seq: seq + 1, NodeID: node.Name(), Msg: "node_failed",
					Meta: map[string]any{"kind": string(pf.Kind), "error": pf.Reason},
				})
				break
			}

			// Uncategorized: full detail stays internal; the consumer gets
			// one opaque notice and no artifact is recorded, so dependents
			// degrade uniformly to a missing dependency.
			o.logger.Error("node failed with uncategorized error",
				zap.String("run_id", runID),
				zap.String("node", node.Name()),
				zap.Error(err),
			)
			notice := Message{
				NodeID:    OrchestratorID,
				Text:      fmt.Sprintf("%s failed to run due to an unexpected error. Please contact support.", node.Name()),
				Source:    SourceOrchestrator,
				Type:      TypeEvaluation,
				Level:     LevelError,
				Timestamp: time.Now().UTC(),
			}
			if !relay(notice) {
				return rc.History, ctx.Err()
			}
			o.metrics.nodeFinished(node.Name(), statusError, time.Since(began))
			o.emitter.Emit(emit.Event{
				RunID: runID, Seq: seq + 1, NodeID: node.Name(), Msg: "node_failed",
				Meta: map[string]any{"kind": "uncategorized"},
			})
		}
	}

	done := StateMessage("Evaluation complete.", StateDetails{IsEndState: true})
	if !relay(done) {
		return rc.History, ctx.Err()
	}
	o.emitter.Emit(emit.Event{RunID: runID, Msg: "run_complete", Meta: map[string]any{"artifacts": rc.History.Len()}})
	return rc.History, nil
}

// errConsumerGone signals that the outer consumer stopped pulling messages.
var errConsumerGone = fmt.Errorf("consumer stopped draining the stream")

// evaluateNode gates and runs one node, relaying its messages live while
// buffering them for the node's artifact. Attribution is back-filled on
// relay: the first writer (the node itself, otherwise the orchestrator) wins.
func (o *Orchestrator) evaluateNode(ctx context.Context, node Node, rc *RunContext, relay func(Message) bool) ([]Message, any, error) {
	res, err := Evaluate(ctx, node, rc)
	if err != nil {
		return nil, nil, err
	}

	var buffered []Message
	for {
		m, ok := res.Next()
		if !ok {
			break
		}
		if m.NodeID == "" {
			m.NodeID = node.Name()
			m.NodeTitle = node.Title()
		}
		buffered = append(buffered, m)
		if !relay(m) {
			res.Close()
			return buffered, nil, errConsumerGone
		}
	}

	value, err := res.Value()
	return buffered, value, err
}

// record appends an artifact; a duplicate here means a node identifier was
// executed twice in one run, which NewOrchestrator rules out.
func (o *Orchestrator) record(rc *RunContext, a Artifact) {
	if err := rc.History.Add(a); err != nil {
		o.logger.Error("failed to record artifact", zap.String("node", a.NodeID), zap.Error(err))
	}
}

func isCanceled(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}
