package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/terra-clan/bumpstory/internal/models"
	"github.com/terra-clan/bumpstory/internal/storage"
)

const (
	liveOpTimeout  = 5 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveWriteWait  = 10 * time.Second
)

// KickMessage is exchanged over the live kick-counting socket.
// Clients send "kick" or "finish"; the server answers with "connected",
// "count", "finished" or "error".
type KickMessage struct {
	Type          string                   `json:"type"`
	Count         int                      `json:"count,omitempty"`
	Status        models.KickSessionStatus `json:"status,omitempty"`
	ReachedTarget bool                     `json:"reachedTarget,omitempty"`
	Note          string                   `json:"note,omitempty"`
	Message       string                   `json:"message,omitempty"`
}

func (s *Server) upgrader() *websocket.Upgrader {
	allowed := make(map[string]bool)
	for _, o := range s.config.CORS.Origins() {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

func (s *Server) handleKickLive(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	id, ok := uuidParam(w, r, "kick session")
	if !ok {
		return
	}

	session, err := s.repo.GetKickSession(r.Context(), claims.UserID, id)
	if err != nil {
		respondStorageError(w, err, "kick session")
		return
	}
	if session.IsTerminal() {
		respondStorageError(w, storage.ErrSessionClosed, "kick session")
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade to websocket", "error", err)
		return
	}
	defer conn.Close()

	slog.Info("live kick session connected", "user_id", claims.UserID, "session_id", id)

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go keepAlive(conn, done)

	if err := s.sendKickMessage(conn, countMessage("connected", session)); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("websocket read error", "error", err)
			}
			break
		}

		var msg KickMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.sendKickError(conn, "invalid message format")
			continue
		}

		if finished := s.handleKickMessage(conn, claims.UserID, id, msg); finished {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session finished"),
				time.Now().Add(liveWriteWait))
			break
		}
	}

	slog.Info("live kick session disconnected", "user_id", claims.UserID, "session_id", id)
}

// handleKickMessage applies one client message and reports whether the session ended
func (s *Server) handleKickMessage(conn *websocket.Conn, userID, id uuid.UUID, msg KickMessage) bool {
	ctx, cancel := context.WithTimeout(context.Background(), liveOpTimeout)
	defer cancel()

	switch msg.Type {
	case "kick":
		session, err := s.repo.AddKick(ctx, userID, id, s.now().UTC())
		if err != nil {
			return s.sendKickFailure(conn, err)
		}
		s.sendKickMessage(conn, countMessage("count", session))
		return false

	case "finish":
		if len(msg.Note) > maxKickNote {
			s.sendKickError(conn, "note is too long")
			return false
		}
		session, err := s.finishKickSession(ctx, userID, id, msg.Note)
		if err != nil {
			return s.sendKickFailure(conn, err)
		}
		s.sendKickMessage(conn, countMessage("finished", session))
		return true

	default:
		s.sendKickError(conn, "unknown message type")
		return false
	}
}

// sendKickFailure reports a repository error; a closed session ends the socket
func (s *Server) sendKickFailure(conn *websocket.Conn, err error) bool {
	switch {
	case errors.Is(err, storage.ErrSessionClosed):
		s.sendKickError(conn, "kick session is already closed")
		return true
	case errors.Is(err, storage.ErrNotFound):
		s.sendKickError(conn, "kick session not found")
		return true
	default:
		slog.Error("live kick operation failed", "error", err)
		s.sendKickError(conn, "failed to record kick")
		return false
	}
}

func countMessage(kind string, session *models.KickSession) KickMessage {
	return KickMessage{
		Type:          kind,
		Count:         session.Count(),
		Status:        session.Status,
		ReachedTarget: session.ReachedTarget(),
	}
}

// keepAlive pings the client until done is closed
func keepAlive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(livePingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendKickMessage(conn *websocket.Conn, msg KickMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal kick message", "error", err)
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("failed to send kick message", "error", err)
		return err
	}
	return nil
}

func (s *Server) sendKickError(conn *websocket.Conn, message string) {
	s.sendKickMessage(conn, KickMessage{
		Type:    "error",
		Message: message,
	})
}
