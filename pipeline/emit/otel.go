package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelEmitter converts pipeline events into OpenTelemetry spans.
//
// Each event becomes one immediately-ended span named after the transition
// (node_start, node_complete, ...) carrying the run, node and metadata as
// attributes. Events whose Meta holds an "error" string get error status.
//
//	tracer := otel.Tracer("blackscope")
//	emitter := emit.NewOTelEmitter(tracer)
type OTelEmitter struct {
	tracer trace.Tracer
}

// NewOTelEmitter returns an emitter creating spans on tracer.
func NewOTelEmitter(tracer trace.Tracer) *OTelEmitter {
	return &OTelEmitter{tracer: tracer}
}

// Emit creates and ends one span describing the event.
func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), event.Msg)
	defer span.End()

	span.SetAttributes(
		attribute.String("pipeline.run_id", event.RunID),
		attribute.Int("pipeline.seq", event.Seq),
		attribute.String("pipeline.node_id", event.NodeID),
	)

	for key, value := range event.Meta {
		switch v := value.(type) {
		case string:
			span.SetAttributes(attribute.String("pipeline.meta."+key, v))
		case int:
			span.SetAttributes(attribute.Int("pipeline.meta."+key, v))
		case int64:
			span.SetAttributes(attribute.Int64("pipeline.meta."+key, v))
		case float64:
			span.SetAttributes(attribute.Float64("pipeline.meta."+key, v))
		case bool:
			span.SetAttributes(attribute.Bool("pipeline.meta."+key, v))
		default:
			span.SetAttributes(attribute.String("pipeline.meta."+key, fmt.Sprintf("%v", v)))
		}
	}

	if errMsg, ok := event.Meta["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}
