package realtime

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Serve pumps frames between conn and s until either side goes away. It
// blocks until the read side ends and always unregisters s.
func (h *Hub) Serve(conn *websocket.Conn, s *Session) {
	go h.writePump(conn, s)
	h.readPump(conn, s)
}

func (h *Hub) readPump(conn *websocket.Conn, s *Session) {
	defer func() {
		h.Unregister(s)
		_ = conn.Close()
	}()

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		if identity := s.Identity(); identity != nil {
			ctx, cancel := context.WithTimeout(context.Background(), h.cfg.RequestTimeout)
			_ = h.presence.Touch(ctx, identity.ID)
			cancel()
		}
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debugw("websocket read failed", "session", s.ID, "error", err)
			}
			return
		}
		h.Handle(context.Background(), s, data)
	}
}

// writePump is the only writer on conn. A closed queue sends a close frame;
// a write that misses its deadline ends the connection.
func (h *Hub) writePump(conn *websocket.Conn, s *Session) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.Outbound():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
