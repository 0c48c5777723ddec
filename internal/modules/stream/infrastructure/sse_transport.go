package infrastructure

import (
	"errors"
	"net/http"
	"sync"

	"stockcast/internal/modules/stream/domain"
)

// SSETransport writes frames onto a text/event-stream response. The response
// writer is not safe for concurrent use, so every write goes through the
// transport mutex.
type SSETransport struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

func NewSSETransport(w http.ResponseWriter) (*SSETransport, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}
	return &SSETransport{w: w, flusher: flusher}, nil
}

func (t *SSETransport) WriteFrame(frame domain.Frame) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}
	if _, err := t.w.Write(frame.Encode()); err != nil {
		return err
	}
	t.flusher.Flush()
	return nil
}

// Close only marks the transport; the connection itself is torn down when the
// handler goroutine observes the retired subscription and returns.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
	return nil
}
