package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jpcastberg/saym/internal/parser"
	"github.com/jpcastberg/saym/internal/session"
)

func (s *GameServer) badRequest(writer http.ResponseWriter, request *http.Request, err error) {
	s.sendError(writer, request, fmt.Errorf("%w: %v", session.ErrInvalidInput, err))
}

func (s *GameServer) GetPlayer(writer http.ResponseWriter, request *http.Request) {
	player, err := s.Service.GetPlayer(request.Context(), playerFromContext(request.Context()))
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, player, http.StatusOK)
}

func (s *GameServer) UpdatePlayer(writer http.ResponseWriter, request *http.Request) {
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	req, err := parser.ParseUpdatePlayerRequest(data)
	if err != nil {
		s.Logger.Error("Failed to parse update player request", err)
		s.badRequest(writer, request, err)
		return
	}
	player, err := s.Service.UpdateProfile(request.Context(), playerFromContext(request.Context()), session.ProfileUpdate{
		Username:          req.Username,
		PhoneNumber:       req.PhoneNumber,
		SendNotifications: req.SendNotifications,
	})
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, player, http.StatusOK)
}

func (s *GameServer) VerifyPhone(writer http.ResponseWriter, request *http.Request) {
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	req, err := parser.ParseVerifyPhoneRequest(data)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	player, err := s.Service.VerifyPhone(request.Context(), playerFromContext(request.Context()), req.Code)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, player, http.StatusOK)
}

func (s *GameServer) AddPushSubscription(writer http.ResponseWriter, request *http.Request) {
	data, err := s.ReadRequestBody(request)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	req, err := parser.ParsePushSubscriptionRequest(data)
	if err != nil {
		s.badRequest(writer, request, err)
		return
	}
	sub, err := s.Service.AddPushSubscription(request.Context(), playerFromContext(request.Context()), req.Endpoint, req.Keys.P256dh, req.Keys.Auth)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendJSON(writer, request, sub, http.StatusOK)
}

func (s *GameServer) RemovePushSubscription(writer http.ResponseWriter, request *http.Request) {
	subscriptionId := mux.Vars(request)["subscriptionId"]
	if err := s.Service.RemovePushSubscription(request.Context(), playerFromContext(request.Context()), subscriptionId); err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendResponse(writer, nil, http.StatusNoContent)
}
