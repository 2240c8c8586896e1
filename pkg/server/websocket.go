package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clockSocketHandler pushes a ClockFrame every interval until the client
// goes away.
func (s *Server) clockSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ClockConns.Inc()
	defer s.metrics.ClockConns.Dec()

	// The client never sends anything we need; reading only detects close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	lang := s.language()
	if err := conn.WriteJSON(newFrame(s.Engine(), s.now(), lang)); err != nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(newFrame(s.Engine(), s.now(), lang)); err != nil {
				s.logger.Debug("clock socket closed", slog.Any("error", err))
				return
			}
		}
	}
}
