package emit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// LogEmitter writes events to a writer, either as human-readable text or as
// one JSON object per line (NDJSON).
//
// Text output:
//
//	[node_start] run=run-001 seq=1 node=access_check
//
// JSON output:
//
//	{"run_id":"run-001","seq":1,"node_id":"access_check","msg":"node_start"}
type LogEmitter struct {
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter returns a LogEmitter writing to writer (os.Stdout when nil).
// With jsonMode set, events are framed as NDJSON.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{writer: writer, jsonMode: jsonMode}
}

// Emit writes one event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	if l.jsonMode {
		data, err := json.Marshal(event)
		if err != nil {
			fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
			return
		}
		fmt.Fprintf(l.writer, "%s\n", data)
		return
	}

	fmt.Fprintf(l.writer, "[%s] run=%s seq=%d node=%s", event.Msg, event.RunID, event.Seq, event.NodeID)
	if len(event.Meta) > 0 {
		if meta, err := json.Marshal(event.Meta); err == nil {
			fmt.Fprintf(l.writer, " meta=%s", meta)
		}
	}
	fmt.Fprintln(l.writer)
}
