package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/sabores-reservas/internal/assistant"
)

const emptyMessage = "Escribe un mensaje."

type chatRequest struct {
	Message string `json:"message"`
}

type chatResponse struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

func (s *Server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "chat.html", s.page(r, "Asistente", nil))
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<10)
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: "invalid JSON body"})
		return
	}
	msg := assistant.Sanitize(req.Message)
	if msg == "" {
		writeJSON(w, http.StatusBadRequest, chatResponse{Error: emptyMessage})
		return
	}
	reply := s.Assistant.HandleUtterance(r.Context(), actor(r).UserID, msg)
	writeJSON(w, http.StatusOK, chatResponse{Response: reply})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	socketIdle  = 5 * time.Minute
	socketWrite = 10 * time.Second
)

// handleChatSocket answers one chat message at a time over a websocket,
// for as long as the client keeps the connection open.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log(r).Warn("Web:ChatSocket:UpgradeFailed", "error", err)
		return
	}
	defer conn.Close()

	userID := actor(r).UserID
	log := s.log(r).With("user_id", userID)
	conn.SetReadLimit(16 << 10)

	for {
		_ = conn.SetReadDeadline(time.Now().Add(socketIdle))
		var req chatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("Web:ChatSocket:ReadFailed", "error", err)
			}
			return
		}

		resp := chatResponse{Error: emptyMessage}
		if msg := assistant.Sanitize(req.Message); msg != "" {
			resp = chatResponse{Response: s.Assistant.HandleUtterance(r.Context(), userID, msg)}
		}

		_ = conn.SetWriteDeadline(time.Now().Add(socketWrite))
		if err := conn.WriteJSON(resp); err != nil {
			log.Warn("Web:ChatSocket:WriteFailed", "error", err)
			return
		}
	}
}
