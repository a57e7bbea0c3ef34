package server

import (
	"net/http"
	"time"

	"github.com/antigravity-labs/reflex-engine/internal/models"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
	wsPongWait   = 60 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleEventsWS upgrades to a WebSocket and streams the event bus to the
// client. A snapshot is sent immediately on connect so a late subscriber does
// not have to wait for the next state change to learn where the engine is.
func (s *Server) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	if s.bus == nil {
		return
	}
	sub := s.bus.Subscribe()
	defer s.bus.Unsubscribe(sub)

	go s.wsReadPump(conn)

	snapshot := models.Event{Type: models.EventSnapshot, Time: time.Now(), Payload: s.engine.Snapshot()}
	if err := conn.WriteJSON(snapshot); err != nil {
		return
	}

	s.wsWritePump(conn, sub.Events)
}

func (s *Server) wsWritePump(conn *websocket.Conn, events <-chan models.Event) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// wsReadPump drains client frames (the only one expected in v1 is a ping) and
// detects disconnection; the monitor subscription never accepts commands.
func (s *Server) wsReadPump(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
