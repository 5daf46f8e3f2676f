package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jpcastberg/saym/internal/parser"
	"github.com/jpcastberg/saym/internal/session"
)

const (
	TokenCookieName = "saym_token"
	tokenCookieAge  = 365 * 24 * time.Hour
)

type contextKey struct{}

func withPlayer(ctx context.Context, playerId string) context.Context {
	return context.WithValue(ctx, contextKey{}, playerId)
}

func playerFromContext(ctx context.Context) string {
	playerId, _ := ctx.Value(contextKey{}).(string)
	return playerId
}

// requestToken reads the session token from the cookie, falling back to a
// bearer Authorization header.
func requestToken(request *http.Request) string {
	if c, err := request.Cookie(TokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	auth := request.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func (s *GameServer) resolvePlayer(request *http.Request) (string, error) {
	return s.Service.ResolveToken(request.Context(), requestToken(request))
}

func (s *GameServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		playerId, err := s.resolvePlayer(r)
		if errors.Is(err, session.ErrNotFound) {
			s.sendResponse(w, []byte(`{"error":"unauthorized"}`), http.StatusUnauthorized)
			return
		}
		if err != nil {
			s.sendError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(withPlayer(r.Context(), playerId)))
	})
}

func (s *GameServer) setTokenCookie(writer http.ResponseWriter, token string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(tokenCookieAge.Seconds()),
		HttpOnly: true,
		Secure:   strings.HasPrefix(s.BaseURL, "https://"),
		SameSite: http.SameSiteLaxMode,
	})
}

// IssueToken refreshes the caller's session when its token is still valid
// and creates a new player otherwise.
func (s *GameServer) IssueToken(writer http.ResponseWriter, request *http.Request) {
	ctx := request.Context()
	token := requestToken(request)
	if playerId, err := s.Service.ResolveToken(ctx, token); err == nil {
		player, err := s.Service.GetPlayer(ctx, playerId)
		if err == nil {
			s.setTokenCookie(writer, token)
			s.sendJSON(writer, request, parser.TokenResponse{Token: token, Player: player}, http.StatusOK)
			return
		}
	}
	token, player, err := s.Service.IssueToken(ctx)
	if err != nil {
		s.sendError(writer, request, err)
		return
	}
	s.setTokenCookie(writer, token)
	s.sendJSON(writer, request, parser.TokenResponse{Token: token, Player: player}, http.StatusOK)
}
