package emit

// NullEmitter discards every event. Use it when operational event logging is
// not wanted; the consumer-facing message stream is unaffected.
type NullEmitter struct{}

// NewNullEmitter returns an emitter that drops all events.
func NewNullEmitter() *NullEmitter { return &NullEmitter{} }

// Emit discards the event.
func (n *NullEmitter) Emit(Event) {}
