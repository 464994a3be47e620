package output

import (
	"bufio"
	"encoding/json"
	"io"
	"sync"

	"github.com/selimozcann/statuspeek/internal/model"
)

// JSONLWriter writes one result per line as JSON. Safe for concurrent use.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
	mu  sync.Mutex
}

// NewJSONLWriter wraps an io.Writer with buffering.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	return &JSONLWriter{w: bw, enc: enc}
}

// Write writes a single result as a JSON line and flushes it, so consumers
// reading a pipe see results as they complete.
func (j *JSONLWriter) Write(r model.CheckResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.enc.Encode(BuildRecord(r)); err != nil {
		return err
	}
	return j.w.Flush()
}

// Flush flushes the underlying buffer.
func (j *JSONLWriter) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}

// Close flushes the buffer; keep the signature similar to io.Closer.
func (j *JSONLWriter) Close() error {
	return j.Flush()
}
