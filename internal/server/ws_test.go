package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpcastberg/saym/internal/parser"
	"github.com/jpcastberg/saym/internal/realtime"
)

func (suite *GameServerTestSuite) dial(token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(suite.server.URL, "http") + HTTP_API_PREFIX + "/ws"
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	return websocket.DefaultDialer.Dial(url, header)
}

func (suite *GameServerTestSuite) readFrame(conn *websocket.Conn) string {
	suite.Require().NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, data, err := conn.ReadMessage()
	suite.Require().NoError(err)
	return string(data)
}

func (suite *GameServerTestSuite) TestRealtimeRejectsUnknownToken() {
	_, resp, err := suite.dial("bogus")
	suite.Error(err)
	suite.Require().NotNil(resp)
	suite.Equal(http.StatusUnauthorized, resp.StatusCode)
	suite.Equal(0, suite.registry.Len())
}

func (suite *GameServerTestSuite) TestRealtimePingPong() {
	token, player := suite.newPlayer("alice")
	conn, _, err := suite.dial(token)
	suite.Require().NoError(err)
	defer conn.Close()

	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(realtime.PingFrame)))
	suite.Equal(realtime.PongFrame, suite.readFrame(conn))
	suite.True(suite.registry.IsConnected(player))

	suite.Require().NoError(conn.Close())
	suite.Eventually(func() bool { return !suite.registry.IsConnected(player) }, time.Second, 10*time.Millisecond)
}

func (suite *GameServerTestSuite) TestOpponentReceivesGameUpdates() {
	aliceToken, _ := suite.newPlayer("alice")
	bobToken, _ := suite.newPlayer("bob")
	game := suite.createGame(aliceToken, nil)
	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/join", game.Id), bobToken, nil), http.StatusOK, nil)

	conn, _, err := suite.dial(bobToken)
	suite.Require().NoError(err)
	defer conn.Close()
	suite.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(realtime.PingFrame)))
	suite.Require().Equal(realtime.PongFrame, suite.readFrame(conn))

	suite.decode(suite.apiCall("POST", fmt.Sprintf("/games/%s/turns", game.Id), aliceToken, parser.SubmitTurnRequest{Turn: "sun"}), http.StatusOK, nil)

	envelope := struct {
		EventType string `json:"eventType"`
		Data      struct {
			Id             string   `json:"_id"`
			PlayerOneTurns []string `json:"playerOneTurns"`
		} `json:"data"`
	}{}
	suite.Require().NoError(json.Unmarshal([]byte(suite.readFrame(conn)), &envelope))
	suite.Equal("gameUpdate", envelope.EventType)
	suite.Equal(game.Id, envelope.Data.Id)
	suite.Equal([]string{"sun"}, envelope.Data.PlayerOneTurns)
}
