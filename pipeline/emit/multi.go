package emit

// MultiEmitter fans every event out to each wrapped emitter, in order.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter combines emitters. Nil entries are skipped.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	out := &MultiEmitter{}
	for _, e := range emitters {
		if e != nil {
			out.emitters = append(out.emitters, e)
		}
	}
	return out
}

// Emit implements Emitter.
func (m *MultiEmitter) Emit(event Event) {
	for _, e := range m.emitters {
		e.Emit(event)
	}
}
