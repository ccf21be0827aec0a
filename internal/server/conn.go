package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla connection to the registry's Sender. All
// writes go through writeMu; gorilla allows one concurrent writer only
// and frames for one connection arrive from several goroutines (the
// owning read loop, chat fan-outs, the liveness monitor).
type wsConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newWSConn(conn *websocket.Conn, writeTimeout time.Duration) *wsConn {
	return &wsConn{conn: conn, writeTimeout: writeTimeout}
}

// Send writes one text frame.
func (w *wsConn) Send(data []byte) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()

	w.conn.SetWriteDeadline(time.Now().Add(w.writeTimeout))
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping sends a transport-level keepalive probe. The reply lands in the
// connection's pong handler.
func (w *wsConn) Ping() error {
	deadline := time.Now().Add(w.writeTimeout)
	return w.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline)
}

// Close sends a close frame carrying reason and tears the transport
// down. Safe to call from any goroutine and more than once; the owning
// read loop observes the closed transport and runs the cleanup path.
func (w *wsConn) Close(reason string) error {
	var err error
	w.closeOnce.Do(func() {
		deadline := time.Now().Add(w.writeTimeout)
		w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason),
			deadline,
		)
		err = w.conn.Close()
	})
	return err
}
