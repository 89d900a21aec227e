package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/premsagarkushwaha/RunKaro-backend-2/internal/runner"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS allows every origin
	},
}

// wsIncoming is a run request from the client. ID is echoed back unchanged.
type wsIncoming struct {
	ID string `json:"id,omitempty"`
	runner.RunRequest
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type   string              `json:"type"`
	ID     string              `json:"id,omitempty"`
	Result *runner.RunResponse `json:"result,omitempty"`
	Status int                 `json:"status,omitempty"`
	Detail string              `json:"detail,omitempty"`
}

// handleWebSocket serves /ws. Each text frame is one run request, handled
// in order; the reply is a "result" or "error" frame.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()
	if n := s.cfg.Server.MaxBodyBytes; n > 0 {
		conn.SetReadLimit(n)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "err", err)
			}
			return
		}

		s.metrics.IncrementRequest()

		var msg wsIncoming
		if err := json.Unmarshal(data, &msg); err != nil {
			s.metrics.IncrementError()
			s.wsWriteJSON(conn, wsOutgoing{Type: "error", Status: http.StatusBadRequest, Detail: "invalid JSON: " + err.Error()})
			continue
		}

		resp, err := s.execute(r, msg.RunRequest)
		if err != nil {
			s.wsWriteJSON(conn, wsOutgoing{Type: "error", ID: msg.ID, Status: runner.StatusCode(err), Detail: err.Error()})
			continue
		}
		s.wsWriteJSON(conn, wsOutgoing{Type: "result", ID: msg.ID, Result: resp})
	}
}

func (s *Server) wsWriteJSON(conn *websocket.Conn, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("websocket marshal failed", "err", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Warn("websocket write failed", "err", err)
	}
}
