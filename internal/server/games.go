package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jpcastberg/saym/internal/parser"
	"github.com/jpcastberg/saym/internal/session"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

func (s *GameServer) ListGames(writer http.ResponseWriter, request *http.Request) {
	list, err := s.Service.GetAll(request.Context(), playerFromContext(request.Context()))
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, list, http.StatusOK)
}

func (s *GameServer) CreateNewGame(writer http.ResponseWriter, request *http.Request) {
	playerId := playerFromContext(request.Context())
	s.Logger.Info(fmt.Sprintf("Player %s is creating a new game", playerId))
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	gameRequest, err := parser.ParseCreateGameRequest(data)
	if err != nil {
		s.Logger.Error("Failed to parse new game request", err)
		s.badRequest(writer, request, err)
		return
	}
	game, err := s.Service.Create(request.Context(), playerId, gameRequest.PlayerTwoUserId)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

// GetGame answers 200 with an empty body when the game is missing or the
// caller does not play in it.
func (s *GameServer) GetGame(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	game, err := s.Service.Get(request.Context(), gameId, playerFromContext(request.Context()))
	if errors.Is(err, session.ErrNotFound) {
		s.sendResponse(writer, nil, http.StatusOK)
		return
	}
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) JoinGame(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	playerId := playerFromContext(request.Context())
	s.Logger.Info(fmt.Sprintf("Player %s is joining game %s", playerId, gameId))
	game, err := s.Service.Join(request.Context(), gameId, playerId)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) SubmitTurn(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	turnRequest, err := parser.ParseSubmitTurnRequest(data)
	if err != nil {
		s.Logger.Error("Failed to parse turn request", err)
		s.badRequest(writer, request, err)
		return
	}
	game, err := s.Service.SubmitTurn(request.Context(), gameId, playerFromContext(request.Context()), turnRequest.Turn)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) CompleteGame(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	game, err := s.Service.Complete(request.Context(), gameId, playerFromContext(request.Context()))
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) InvitePlayer(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	inviteRequest, err := parser.ParseInviteRequest(data)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	game, err := s.Service.Invite(request.Context(), gameId, playerFromContext(request.Context()), inviteRequest.PlayerId)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) InviteBot(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	game, err := s.Service.InviteBot(request.Context(), gameId, playerFromContext(request.Context()))
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, game, http.StatusOK)
}

func (s *GameServer) Nudge(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	if err := s.Service.Nudge(request.Context(), gameId, playerFromContext(request.Context())); err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendResponse(writer, nil, http.StatusOK)
}

// InviteQRCode renders the join link of a game the caller plays in as a PNG.
func (s *GameServer) InviteQRCode(writer http.ResponseWriter, request *http.Request) {
	gameId := mux.Vars(request)["gameId"]
	game, err := s.Service.Get(request.Context(), gameId, playerFromContext(request.Context()))
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(game.Id), qrcode.Medium, qrSize)
	if err != nil {
		s.sendError(writer, request, fmt.Errorf("encode invite qr: %w", err))
		return
	}
	writer.Header().Set("Content-Type", "image/png")
	writer.WriteHeader(http.StatusOK)
	if _, err := writer.Write(png); err != nil {
		s.Logger.Error("Failed to write qr code", err)
	}
}

func (s *GameServer) joinURL(gameId string) string {
	return fmt.Sprintf("%s/games/%s/join", s.BaseURL, gameId)
}
