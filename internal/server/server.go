package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/jpcastberg/saym/internal/logger"
	"github.com/jpcastberg/saym/internal/realtime"
	"github.com/jpcastberg/saym/internal/session"
	"golang.org/x/sync/errgroup"
)

const (
	HTTP_API_PREFIX = "/api"
	maxBodyBytes    = 64 << 10
	requestTimeout  = 10 * time.Second
	shutdownTimeout = 5 * time.Second
)

type GameServer struct {
	Service     *session.Service
	Registry    *realtime.Registry
	Logger      logger.Logger
	Router      *mux.Router
	BaseURL     string
	wssUpgrader websocket.Upgrader
}

func NewGameServer(service *session.Service, registry *realtime.Registry, baseURL string) *GameServer {
	gs := &GameServer{
		Service:  service,
		Registry: registry,
		Logger:   logger.New("api_server"),
		Router:   mux.NewRouter(),
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		wssUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	gs.Router.Use(gs.securityHeaders)
	api := gs.Router.PathPrefix(HTTP_API_PREFIX).Subrouter()
	api.HandleFunc("/healthz", gs.HealthCheck).Methods("GET")
	api.HandleFunc("/tokens", gs.IssueToken).Methods("POST")
	api.HandleFunc("/ws", gs.HandleRealtime).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(gs.authenticate)
	authed.HandleFunc("/players/me", gs.GetPlayer).Methods("GET")
	authed.HandleFunc("/players/me", gs.UpdatePlayer).Methods("PUT")
	authed.HandleFunc("/players/me/phone/verify", gs.VerifyPhone).Methods("POST")
	authed.HandleFunc("/players/me/push-subscriptions", gs.AddPushSubscription).Methods("POST")
	authed.HandleFunc("/players/me/push-subscriptions/{subscriptionId}", gs.RemovePushSubscription).Methods("DELETE")
	authed.HandleFunc("/games", gs.ListGames).Methods("GET")
	authed.HandleFunc("/games", gs.CreateNewGame).Methods("POST")
	authed.HandleFunc("/games/{gameId}", gs.GetGame).Methods("GET")
	authed.HandleFunc("/games/{gameId}/invite-qr", gs.InviteQRCode).Methods("GET")
	authed.HandleFunc("/games/{gameId}/join", gs.JoinGame).Methods("POST")
	authed.HandleFunc("/games/{gameId}/turns", gs.SubmitTurn).Methods("POST")
	authed.HandleFunc("/games/{gameId}/complete", gs.CompleteGame).Methods("POST")
	authed.HandleFunc("/games/{gameId}/invite", gs.InvitePlayer).Methods("POST")
	authed.HandleFunc("/games/{gameId}/invite-bot", gs.InviteBot).Methods("POST")
	authed.HandleFunc("/games/{gameId}/nudge", gs.Nudge).Methods("POST")
	return gs
}

// Run serves until ctx is cancelled, then shuts the listener down
// gracefully. TLS is used when both tlsCert and tlsKey are set.
func (s *GameServer) Run(ctx context.Context, addr, tlsCert, tlsKey string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       requestTimeout,
		ReadHeaderTimeout: requestTimeout,
		WriteTimeout:      requestTimeout,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if tlsCert != "" && tlsKey != "" {
			s.Logger.Info(fmt.Sprintf("Starting server on https://%s", addr))
			err = srv.ListenAndServeTLS(tlsCert, tlsKey)
		} else {
			s.Logger.Info(fmt.Sprintf("Starting server on http://%s", addr))
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error(fmt.Sprintf("Failed to start server on %s", addr), err)
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.Logger.Info("Shutting down server....")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *GameServer) ReadRequestBody(request *http.Request) ([]byte, error) {
	bytesRead, err := io.ReadAll(io.LimitReader(request.Body, maxBodyBytes))
	if err != nil {
		s.Logger.Error("Failed to read request body", err)
		return nil, err
	}
	return bytesRead, nil
}

func (s *GameServer) sendResponse(writer http.ResponseWriter, responseBody []byte, status int) {
	if responseBody != nil {
		writer.Header().Set("Content-Type", "application/json")
	}
	writer.WriteHeader(status)
	if responseBody == nil {
		return
	}
	if _, err := writer.Write(responseBody); err != nil {
		s.Logger.Error("Failed to write response body", err)
	}
}

func (s *GameServer) sendJSON(writer http.ResponseWriter, request *http.Request, body any, status int) {
	respBody, err := json.Marshal(body)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.sendResponse(writer, respBody, status)
}

// sendError maps session errors onto status codes. Internal failures are
// logged in full and answered with a generic body.
func (s *GameServer) sendError(writer http.ResponseWriter, request *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrInvalidInput), errors.Is(err, session.ErrInvalidState):
		status = http.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	}
	msg := fmt.Sprintf("%s %s by player %q failed", request.Method, request.URL.Path, playerFromContext(request.Context()))
	if status == http.StatusInternalServerError {
		s.Logger.Error(msg, err)
		s.sendJSON(writer, request, map[string]string{"error": "internal error"}, status)
		return
	}
	s.Logger.Debug(fmt.Sprintf("%s: %v", msg, err))
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	s.sendResponse(writer, body, status)
}

func (s *GameServer) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cross-Origin-Resource-Policy", "same-site")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		if strings.HasPrefix(s.BaseURL, "https://") {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func (s *GameServer) HealthCheck(writer http.ResponseWriter, request *http.Request) {
	s.sendJSON(writer, request, map[string]any{"status": "ok", "connectedPlayers": s.Registry.Len()}, http.StatusOK)
}
