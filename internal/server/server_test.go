package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jpcastberg/saym/internal/bot"
	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/logger"
	"github.com/jpcastberg/saym/internal/notify"
	"github.com/jpcastberg/saym/internal/parser"
	"github.com/jpcastberg/saym/internal/realtime"
	"github.com/jpcastberg/saym/internal/session"
	"github.com/stretchr/testify/suite"
)

type capturedSMS struct {
	mu   sync.Mutex
	sent []string
}

func (c *capturedSMS) SendSMS(_ context.Context, phoneNumber, body string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, phoneNumber+": "+body)
	return nil
}

func (c *capturedSMS) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// stallableSMS forwards to a capturedSMS until stalled, after which every
// text hangs until its context ends.
type stallableSMS struct {
	*capturedSMS
	mu      sync.Mutex
	stalled bool
}

func (s *stallableSMS) Stall() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stalled = true
}

func (s *stallableSMS) SendSMS(ctx context.Context, phoneNumber, body string) error {
	s.mu.Lock()
	stalled := s.stalled
	s.mu.Unlock()
	if stalled {
		<-ctx.Done()
		return ctx.Err()
	}
	return s.capturedSMS.SendSMS(ctx, phoneNumber, body)
}

type GameServerTestSuite struct {
	suite.Suite
	store      *db.SqliteStore
	registry   *realtime.Registry
	scheduler  *bot.Scheduler
	sms        *capturedSMS
	offlineSMS *stallableSMS
	dispatcher *notify.Dispatcher
	gs         *GameServer
	server     *httptest.Server
}

func (suite *GameServerTestSuite) SetupTest() {
	suite.store = &db.SqliteStore{Logger: logger.Discard()}
	suite.Require().NoError(suite.store.SetupConnection(":memory:"))
	suite.registry = realtime.NewRegistry(time.Hour, time.Minute)
	suite.registry.Logger = logger.Discard()
	suite.sms = &capturedSMS{}

	suite.offlineSMS = &stallableSMS{capturedSMS: suite.sms}
	suite.dispatcher = notify.NewDispatcher(suite.registry, suite.store, nil, suite.offlineSMS)
	suite.dispatcher.Logger = logger.Discard()
	suite.dispatcher.Timeout = time.Second
	suite.scheduler = bot.NewScheduler(bot.FallbackGenerator{}, 10*time.Millisecond)
	suite.scheduler.Logger = logger.Discard()
	svc := session.NewService(suite.store, suite.dispatcher, suite.scheduler, suite.sms)
	svc.Logger = logger.Discard()
	suite.scheduler.SetSubmitter(svc)

	suite.gs = NewGameServer(svc, suite.registry, "http://saym.test")
	suite.gs.Logger = logger.Discard()
	suite.server = httptest.NewServer(suite.gs.Router)
}

func (suite *GameServerTestSuite) TearDownTest() {
	suite.scheduler.Stop()
	suite.server.Close()
	suite.dispatcher.Wait()
	suite.registry.Close()
	suite.store.CloseConnection()
}

func TestGameServerSuite(t *testing.T) {
	suite.Run(t, new(GameServerTestSuite))
}

func ReadResponseBody(response *http.Response) ([]byte, error) {
	defer response.Body.Close()
	return io.ReadAll(response.Body)
}

func (suite *GameServerTestSuite) apiCall(method, path, token string, body any) *http.Response {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, suite.server.URL+HTTP_API_PREFIX+path, reader)
	suite.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	return resp
}

func (suite *GameServerTestSuite) decode(resp *http.Response, status int, out any) {
	data, err := ReadResponseBody(resp)
	suite.Require().NoError(err)
	suite.Require().Equal(status, resp.StatusCode, string(data))
	if out != nil {
		suite.Require().NoError(json.Unmarshal(data, out))
	}
}

// newPlayer issues a token and names the player.
func (suite *GameServerTestSuite) newPlayer(name string) (string, string) {
	tokenResp := struct {
		Token  string             `json:"token"`
		Player session.PlayerView `json:"player"`
	}{}
	suite.decode(suite.apiCall("POST", "/tokens", "", nil), http.StatusOK, &tokenResp)
	suite.Require().NotEmpty(tokenResp.Token)
	suite.decode(suite.apiCall("PUT", "/players/me", tokenResp.Token, parser.UpdatePlayerRequest{Username: &name}), http.StatusOK, nil)
	return tokenResp.Token, tokenResp.Player.Id
}

func (suite *GameServerTestSuite) createGame(token string, body any) session.GameView {
	game := session.GameView{}
	suite.decode(suite.apiCall("POST", "/games", token, body), http.StatusOK, &game)
	return game
}

func (suite *GameServerTestSuite) TestTokenSetsCookieAndRefreshes() {
	resp := suite.apiCall("POST", "/tokens", "", nil)
	suite.Equal(http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == TokenCookieName {
			cookie = c
		}
	}
	suite.Require().NotNil(cookie)
	suite.True(cookie.HttpOnly)
	_, _ = ReadResponseBody(resp)

	req, err := http.NewRequest("POST", suite.server.URL+HTTP_API_PREFIX+"/tokens", nil)
	suite.Require().NoError(err)
	req.AddCookie(cookie)
	resp, err = http.DefaultClient.Do(req)
	suite.Require().NoError(err)
	refreshed := parser.TokenResponse{}
	suite.decode(resp, http.StatusOK, &refreshed)
	suite.Equal(cookie.Value, refreshed.Token)
}

func (suite *GameServerTestSuite) TestRequiresToken() {
	resp := suite.apiCall("GET", "/games", "", nil)
	suite.decode(resp, http.StatusUnauthorized, nil)
	resp = suite.apiCall("GET", "/players/me", "bogus", nil)
	suite.decode(resp, http.StatusUnauthorized, nil)
}

func (suite *GameServerTestSuite) TestHealthCheck() {
	resp := suite.apiCall("GET", "/healthz", "", nil)
	suite.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))
	health := map[string]any{}
	suite.decode(resp, http.StatusOK, &health)
	suite.Equal("ok", health["status"])
}

func (suite *GameServerTestSuite) TestGameFlow() {
	aliceToken, alice := suite.newPlayer("alice")
	bobToken, bob := suite.newPlayer("bob")

	game := suite.createGame(aliceToken, nil)
	suite.Equal(alice, game.PlayerOne.Id)
	suite.True(game.NeedToInvitePlayer)

	joined := session.GameView{}
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/join", game.Id), bobToken, nil), http.StatusOK, &joined)
	suite.Equal(bob, joined.PlayerTwo.Id)
	suite.Equal("bob", *joined.PlayerTwo.Username)

	carolToken, _ := suite.newPlayer("carol")
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/join", game.Id), carolToken, nil), http.StatusNotFound, nil)

	turnPath := fmt.Sprintf("/games/%s/turns", game.Id)
	suite.decode(suite.apiCall("POST", turnPath, aliceToken, parser.SubmitTurnRequest{Turn: "apple"}), http.StatusOK, nil)
	suite.decode(suite.apiCall("POST", turnPath, aliceToken, parser.SubmitTurnRequest{Turn: "again"}), http.StatusBadRequest, nil)

	final := session.GameView{}
	suite.decode(suite.apiCall("POST", turnPath, bobToken, parser.SubmitTurnRequest{Turn: "apple "}), http.StatusOK, &final)
	suite.True(final.IsGameComplete)
	suite.Equal([]string{"apple "}, final.PlayerTwoTurns)

	suite.decode(suite.apiCall("POST", turnPath, aliceToken, parser.SubmitTurnRequest{Turn: "pear"}), http.StatusBadRequest, nil)

	list := session.GameList{}
	suite.decode(suite.apiCall("GET", "/games", bobToken, nil), http.StatusOK, &list)
	suite.Empty(list.CurrentGames)
	suite.Len(list.FinishedGames, 1)
}

func (suite *GameServerTestSuite) TestGetGameIsEmptyForOutsiders() {
	aliceToken, _ := suite.newPlayer("alice")
	eveToken, _ := suite.newPlayer("eve")
	game := suite.createGame(aliceToken, nil)

	resp := suite.apiCall("GET", "/games/"+game.Id, eveToken, nil)
	body, err := ReadResponseBody(resp)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Empty(body)

	fetched := session.GameView{}
	suite.decode(suite.apiCall("GET", "/games/"+game.Id, aliceToken, nil), http.StatusOK, &fetched)
	suite.Equal(game.Id, fetched.Id)
}

func (suite *GameServerTestSuite) TestCreateWithUnknownInvitee() {
	aliceToken, _ := suite.newPlayer("alice")
	resp := suite.apiCall("POST", "/games", aliceToken, parser.CreateGameRequest{PlayerTwoUserId: "ghost"})
	suite.decode(resp, http.StatusNotFound, nil)
}

func (suite *GameServerTestSuite) TestInviteAndNudge() {
	aliceToken, _ := suite.newPlayer("alice")
	bobToken, bob := suite.newPlayer("bob")
	phone := "+15550001111"
	suite.decode(suite.apiCall("PUT", "/players/me", bobToken, parser.UpdatePlayerRequest{PhoneNumber: &phone}), http.StatusOK, nil)
	suite.Require().Len(suite.sms.Sent(), 1)

	game := suite.createGame(aliceToken, nil)
	invited := session.GameView{}
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/invite", game.Id), aliceToken, parser.InviteRequest{PlayerId: bob}), http.StatusOK, &invited)
	suite.Equal(bob, invited.PlayerTwo.Id)

	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/turns", game.Id), aliceToken, parser.SubmitTurnRequest{Turn: "sun"}), http.StatusOK, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/nudge", game.Id), aliceToken, nil), http.StatusOK, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/nudge", game.Id), aliceToken, nil), http.StatusOK, nil)

	fetched := session.GameView{}
	suite.decode(suite.apiCall("GET", "/games/"+game.Id, bobToken, nil), http.StatusOK, &fetched)
	suite.True(fetched.NudgeWasSent)
	// bob's phone is unverified, so only the verification code went out
	suite.Len(suite.sms.Sent(), 1)
}

func (suite *GameServerTestSuite) TestCompleteRequiresFinishedRound() {
	aliceToken, _ := suite.newPlayer("alice")
	game := suite.createGame(aliceToken, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/turns", game.Id), aliceToken, parser.SubmitTurnRequest{Turn: "sun"}), http.StatusOK, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/complete", game.Id), aliceToken, nil), http.StatusBadRequest, nil)
	suite.decode(suite.apiCall("POST", "/games/missing/complete", aliceToken, nil), http.StatusNotFound, nil)
}

func (suite *GameServerTestSuite) TestBotAnswers() {
	aliceToken, _ := suite.newPlayer("alice")
	game := suite.createGame(aliceToken, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/invite-bot", game.Id), aliceToken, nil), http.StatusOK, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/turns", game.Id), aliceToken, parser.SubmitTurnRequest{Turn: "sun"}), http.StatusOK, nil)

	suite.Eventually(func() bool {
		g, err := suite.store.GetGameById(context.Background(), game.Id)
		return err == nil && len(g.PlayerTwoTurns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	g, err := suite.store.GetGameById(context.Background(), game.Id)
	suite.Require().NoError(err)
	suite.Equal(db.Turns{bot.FallbackWord}, g.PlayerTwoTurns)
}

func (suite *GameServerTestSuite) TestInviteQRCode() {
	aliceToken, _ := suite.newPlayer("alice")
	eveToken, _ := suite.newPlayer("eve")
	game := suite.createGame(aliceToken, nil)

	resp := suite.apiCall("GET", fmt.Sprintf("/games/%s/invite-qr", game.Id), aliceToken, nil)
	png, err := ReadResponseBody(resp)
	suite.Require().NoError(err)
	suite.Equal(http.StatusOK, resp.StatusCode)
	suite.Equal("image/png", resp.Header.Get("Content-Type"))
	suite.True(bytes.HasPrefix(png, []byte("\x89PNG")))

	suite.decode(suite.apiCall("GET", fmt.Sprintf("/games/%s/invite-qr", game.Id), eveToken, nil), http.StatusNotFound, nil)
}

func (suite *GameServerTestSuite) TestPlayerProfileAndSubscriptions() {
	token, id := suite.newPlayer("alice")
	me := session.PlayerView{}
	suite.decode(suite.apiCall("GET", "/players/me", token, nil), http.StatusOK, &me)
	suite.Equal(id, me.Id)
	suite.Equal("alice", *me.Username)

	bad := "no"
	suite.decode(suite.apiCall("PUT", "/players/me", token, parser.UpdatePlayerRequest{PhoneNumber: &bad}), http.StatusBadRequest, nil)

	keyless := parser.PushSubscriptionRequest{Endpoint: "https://push.example/1"}
	suite.decode(suite.apiCall("POST", "/players/me/push-subscriptions", token, keyless), http.StatusBadRequest, nil)

	req := keyless
	req.Keys.P256dh, req.Keys.Auth = "client-key", "secret"
	sub := session.SubscriptionView{}
	suite.decode(suite.apiCall("POST", "/players/me/push-subscriptions", token, req), http.StatusOK, &sub)
	suite.decode(suite.apiCall("DELETE", "/players/me/push-subscriptions/"+sub.Id, token, nil), http.StatusNoContent, nil)
	suite.decode(suite.apiCall("DELETE", "/players/me/push-subscriptions/missing", token, nil), http.StatusNotFound, nil)
	suite.decode(suite.apiCall("POST", "/players/me/phone/verify", token, parser.VerifyPhoneRequest{Code: "123456"}), http.StatusBadRequest, nil)
}

func (suite *GameServerTestSuite) TestStalledTextingDoesNotDelayTurns() {
	aliceToken, _ := suite.newPlayer("alice")
	bobToken, _ := suite.newPlayer("bob")
	phone := "+15550002222"
	suite.decode(suite.apiCall("PUT", "/players/me", bobToken, parser.UpdatePlayerRequest{PhoneNumber: &phone}), http.StatusOK, nil)
	sent := suite.sms.Sent()
	suite.Require().Len(sent, 1)
	code := sent[0][len(sent[0])-6:]
	suite.decode(suite.apiCall("POST", "/players/me/phone/verify", bobToken, parser.VerifyPhoneRequest{Code: code}), http.StatusOK, nil)

	game := suite.createGame(aliceToken, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/join", game.Id), bobToken, nil), http.StatusOK, nil)
	suite.dispatcher.Wait()
	suite.offlineSMS.Stall()

	start := time.Now()
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/turns", game.Id), aliceToken, parser.SubmitTurnRequest{Turn: "sun"}), http.StatusOK, nil)
	suite.Less(time.Since(start), suite.dispatcher.Timeout/2)
}
