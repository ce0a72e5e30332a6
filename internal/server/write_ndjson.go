package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"example.com/spedec/meta"
)

// NDJSONWriter streams one JSON record per line over an HTTP response,
// flushing after every record so long decodes surface violations as they
// are found instead of all at once.
type NDJSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
	out http.ResponseWriter
}

func NewNDJSONWriter(w http.ResponseWriter) *NDJSONWriter {
	return &NDJSONWriter{enc: json.NewEncoder(w), out: w}
}

// WriteViolation writes a single schema violation record.
func (w *NDJSONWriter) WriteViolation(v meta.Violation) error {
	return w.WriteObject(v)
}

// WriteObject encodes v on its own line and pushes it to the client when
// the response writer supports flushing.
func (w *NDJSONWriter) WriteObject(v any) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return err
	}
	if f, ok := w.out.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
