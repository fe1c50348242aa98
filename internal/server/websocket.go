package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"groundlink.klederson.com/internal/telemetry"
)

// handleWebSocket streams snapshots to one client. The current snapshot is
// sent at once; after that at most one per push interval, newest first.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := s.deps.Processor.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		// Drain control frames; any read error means the peer is gone.
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	s.logger.Debug("websocket client connected", "remote", r.RemoteAddr)
	defer s.logger.Debug("websocket client disconnected", "remote", r.RemoteAddr)

	if err := s.send(conn, s.deps.Processor.Snapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.deps.PushInterval)
	defer ticker.Stop()

	var pending *telemetry.Snapshot
	for {
		select {
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		case <-closed:
			return
		case snap := <-updates:
			pending = &snap
		case <-ticker.C:
			if pending == nil {
				continue
			}
			if err := s.send(conn, *pending); err != nil {
				return
			}
			pending = nil
		}
	}
}

func (s *Server) send(conn *websocket.Conn, snap telemetry.Snapshot) error {
	data, err := json.Marshal(s.view(snap))
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
