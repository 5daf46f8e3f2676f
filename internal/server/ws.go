package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpcastberg/saym/internal/realtime"
	"github.com/jpcastberg/saym/internal/session"
)

const maxFrameBytes = 4 << 10

func (s *GameServer) UpgradeToWebsocket(writer http.ResponseWriter, request *http.Request) *websocket.Conn {
	conn, err := s.wssUpgrader.Upgrade(writer, request, nil)
	if err != nil {
		s.Logger.Error("Failed to upgrade to WS connection", err)
		return nil
	}
	return conn
}

// HandleRealtime upgrades an authenticated request and keeps the socket
// registered until it closes. Inbound frames refresh its activity; a
// "ping" is answered with "pong".
func (s *GameServer) HandleRealtime(writer http.ResponseWriter, request *http.Request) {
	playerId, err := s.resolvePlayer(request)
	if errors.Is(err, session.ErrNotFound) {
		s.sendResponse(writer, []byte(`{"error":"unauthorized"}`), http.StatusUnauthorized)
		return
	}
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	wssConn := s.UpgradeToWebsocket(writer, request)
	if wssConn == nil {
		return
	}
	wssConn.SetReadLimit(maxFrameBytes)
	conn := realtime.NewConnection(playerId, wssConn)
	s.Registry.Register(playerId, conn)
	s.Logger.Info(fmt.Sprintf("Player %s connected", playerId))
	defer func() {
		s.Registry.Unregister(playerId, conn)
		_ = conn.Close()
		s.Logger.Info(fmt.Sprintf("Player %s disconnected", playerId))
	}()

	for {
		if err := wssConn.SetReadDeadline(time.Now().Add(s.Registry.StaleAfter)); err != nil {
			return
		}
		_, data, err := wssConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.Logger.Debug(fmt.Sprintf("Connection of player %s dropped: %v", playerId, err))
			}
			return
		}
		conn.Touch()
		if string(data) == realtime.PingFrame {
			if err := conn.Write([]byte(realtime.PongFrame)); err != nil {
				return
			}
		}
	}
}
