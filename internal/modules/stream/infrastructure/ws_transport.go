package infrastructure

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"stockcast/internal/modules/stream/domain"
)

// WSTransport carries frames over a websocket connection for clients that
// prefer it to the event stream. Frames are sent as JSON text messages with
// the same event/data fields.
type WSTransport struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	return &WSTransport{conn: conn}
}

func (t *WSTransport) WriteFrame(frame domain.Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *WSTransport) Close() error {
	return t.conn.Close()
}
