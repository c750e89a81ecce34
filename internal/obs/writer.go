package obs

import "net/http"

// StatusWriter records the status code written through it. Middleware that
// reports on responses wraps the writer once and reads Status afterwards.
type StatusWriter struct {
	http.ResponseWriter
	code int
}

// NewStatusWriter wraps w, or returns w itself when it already is a StatusWriter.
func NewStatusWriter(w http.ResponseWriter) *StatusWriter {
	if sw, ok := w.(*StatusWriter); ok {
		return sw
	}
	return &StatusWriter{ResponseWriter: w, code: http.StatusOK}
}

func (w *StatusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Status is the code sent to the client, 200 when the handler never called WriteHeader.
func (w *StatusWriter) Status() int { return w.code }

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *StatusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
