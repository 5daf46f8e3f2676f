package db

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BotPlayerID is the reserved identity of the automated opponent. It never
// has a row in the players table.
const BotPlayerID = "bot"

// Turns is stored as a JSON array in a single text column.
type Turns []string

func (t Turns) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (t *Turns) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Turns{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("cannot scan %T into Turns", src)
	}
	out := []string{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*t = out
	return nil
}

type Game struct {
	GameId             string    `db:"game_id"`
	PlayerOne          string    `db:"player_one"`
	PlayerTwo          *string   `db:"player_two"`
	PlayerOneTurns     Turns     `db:"player_one_turns"`
	PlayerTwoTurns     Turns     `db:"player_two_turns"`
	IsGameComplete     bool      `db:"is_game_complete"`
	NeedToInvitePlayer bool      `db:"need_to_invite_player"`
	NudgeWasSent       bool      `db:"nudge_was_sent"`
	Version            int64     `db:"version"`
	LastUpdate         time.Time `db:"last_update"`
}

// HasParticipant reports whether playerId occupies either slot.
func (g *Game) HasParticipant(playerId string) bool {
	if g.PlayerOne == playerId {
		return true
	}
	return g.PlayerTwo != nil && *g.PlayerTwo == playerId
}

// Opponent returns the other participant of playerId, or "" when the
// second slot is still empty.
func (g *Game) Opponent(playerId string) string {
	if g.PlayerOne == playerId {
		if g.PlayerTwo == nil {
			return ""
		}
		return *g.PlayerTwo
	}
	return g.PlayerOne
}

func (g *Game) AgainstBot() bool {
	return g.PlayerTwo != nil && *g.PlayerTwo == BotPlayerID
}

type Player struct {
	PlayerId             string    `db:"player_id"`
	Username             *string   `db:"username"`
	PhoneNumber          *string   `db:"phone_number"`
	PhoneNumberValidated bool      `db:"phone_number_validated"`
	PhoneCodeHash        *string   `db:"phone_code_hash"`
	SendNotifications    bool      `db:"send_notifications"`
	CreatedAt            time.Time `db:"created_at"`
}

type Token struct {
	Token     string    `db:"token"`
	PlayerId  string    `db:"player_id"`
	CreatedAt time.Time `db:"created_at"`
}

type PushSubscription struct {
	SubscriptionId string    `db:"subscription_id"`
	PlayerId       string    `db:"player_id"`
	Endpoint       string    `db:"endpoint"`
	P256dh         string    `db:"p256dh"`
	Auth           string    `db:"auth"`
	IsActive       bool      `db:"is_active"`
	CreatedAt      time.Time `db:"created_at"`
}
