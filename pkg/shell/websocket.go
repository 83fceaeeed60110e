package shell

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/taigrr/showroom/pkg/viewer"
)

const writeWait = 10 * time.Second

// statusEvent is the websocket message for one status change.
type statusEvent struct {
	viewer.Status
	Message string `json:"message"`
}

func newStatusEvent(st viewer.Status) statusEvent {
	return statusEvent{Status: st, Message: st.Message()}
}

// handleWebSocket streams session status to one client. The current status
// is sent immediately on connect.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	n := len(s.clients)
	s.clientsMu.Unlock()
	s.log.Debug("websocket client connected", zap.Int("clients", n))

	updates, unsubscribe := s.session.Subscribe(16)
	defer func() {
		unsubscribe()
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
		s.log.Debug("websocket client disconnected")
	}()

	// Reads only detect disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case st, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(newStatusEvent(st)); err != nil {
				return
			}
		}
	}
}
