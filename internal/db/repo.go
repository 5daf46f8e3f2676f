package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jpcastberg/saym/internal/logger"
)

var schema = `CREATE TABLE IF NOT EXISTS players (
  player_id varchar(36) PRIMARY KEY,
  username varchar(32),
  phone_number varchar(20),
  phone_number_validated boolean DEFAULT false NOT NULL,
  phone_code_hash varchar(60),
  send_notifications boolean DEFAULT true NOT NULL,
  created_at timestamp NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
  token varchar(36) PRIMARY KEY,
  player_id varchar(36) NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
  created_at timestamp NOT NULL
);

CREATE TABLE IF NOT EXISTS push_subscriptions (
  subscription_id varchar(36) PRIMARY KEY,
  player_id varchar(36) NOT NULL REFERENCES players(player_id) ON DELETE CASCADE,
  endpoint text NOT NULL,
  p256dh text DEFAULT '' NOT NULL,
  auth text DEFAULT '' NOT NULL,
  is_active boolean DEFAULT true NOT NULL,
  created_at timestamp NOT NULL
);

CREATE TABLE IF NOT EXISTS games (
  game_id varchar(36) PRIMARY KEY,
  player_one varchar(36) NOT NULL,
  player_two varchar(36),
  player_one_turns text DEFAULT '[]' NOT NULL,
  player_two_turns text DEFAULT '[]' NOT NULL,
  is_game_complete boolean DEFAULT false NOT NULL,
  need_to_invite_player boolean DEFAULT true NOT NULL,
  nudge_was_sent boolean DEFAULT false NOT NULL,
  version int DEFAULT 0 NOT NULL,
  last_update timestamp NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_games_player_one ON games(player_one);
CREATE INDEX IF NOT EXISTS idx_games_player_two ON games(player_two);
CREATE INDEX IF NOT EXISTS idx_games_last_update ON games(last_update);`

type SqliteStore struct {
	Conn   *sqlx.DB
	Logger logger.Logger
}

func now() time.Time {
	return time.Now().UTC()
}

func (s *SqliteStore) SetupConnection(dbname string) error {
	dsn := dbname
	if dbname != ":memory:" && !strings.HasSuffix(dbname, ".db") {
		dsn = dbname + ".db"
	}
	db, err := sqlx.Connect("sqlite3", dsn+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		s.Logger.Error("Database setup failed", err)
		return err
	}
	// sqlite serializes writers anyway; one connection also keeps :memory:
	// databases shared across queries.
	db.SetMaxOpenConns(1)
	s.Conn = db
	if _, err := s.Conn.Exec(schema); err != nil {
		s.Logger.Error("Failed to apply schema", err)
		return err
	}
	s.Logger.Info(fmt.Sprintf("Database %s setup successfully", dsn))
	return nil
}

func (s *SqliteStore) CloseConnection() {
	s.Logger.Info("Closing database connection")
	if err := s.Conn.Close(); err != nil {
		s.Logger.Error("Failed to tear down database connection", err)
		return
	}
	s.Logger.Info("Database connection closed successfully")
}

func (s *SqliteStore) CreateGame(ctx context.Context, game *Game) error {
	game.LastUpdate = now()
	if game.PlayerOneTurns == nil {
		game.PlayerOneTurns = Turns{}
	}
	if game.PlayerTwoTurns == nil {
		game.PlayerTwoTurns = Turns{}
	}
	sql := `INSERT INTO games(game_id, player_one, player_two, player_one_turns, player_two_turns,
  is_game_complete, need_to_invite_player, nudge_was_sent, version, last_update)
VALUES(:game_id, :player_one, :player_two, :player_one_turns, :player_two_turns,
  :is_game_complete, :need_to_invite_player, :nudge_was_sent, :version, :last_update);`
	if _, err := s.Conn.NamedExecContext(ctx, sql, game); err != nil {
		s.Logger.Error("Failed to create game", err)
		return err
	}
	s.Logger.Debug(fmt.Sprintf("Game %s created", game.GameId))
	return nil
}

func (s *SqliteStore) GetGameById(ctx context.Context, gameId string) (*Game, error) {
	query := `SELECT * FROM games WHERE game_id = ?;`
	game := &Game{}
	if err := s.Conn.GetContext(ctx, game, query, gameId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		s.Logger.Error("Failed to fetch game", err)
		return nil, err
	}
	return game, nil
}

func (s *SqliteStore) UpdateGame(ctx context.Context, game *Game) error {
	next := *game
	next.Version = game.Version + 1
	next.LastUpdate = now()
	query := `UPDATE games SET
  player_two = :player_two,
  player_one_turns = :player_one_turns,
  player_two_turns = :player_two_turns,
  is_game_complete = :is_game_complete,
  need_to_invite_player = :need_to_invite_player,
  nudge_was_sent = :nudge_was_sent,
  version = :version,
  last_update = :last_update
WHERE game_id = :game_id AND version = :expected_version;`
	args := map[string]any{
		"player_two":            next.PlayerTwo,
		"player_one_turns":      next.PlayerOneTurns,
		"player_two_turns":      next.PlayerTwoTurns,
		"is_game_complete":      next.IsGameComplete,
		"need_to_invite_player": next.NeedToInvitePlayer,
		"nudge_was_sent":        next.NudgeWasSent,
		"version":               next.Version,
		"last_update":           next.LastUpdate,
		"game_id":               next.GameId,
		"expected_version":      game.Version,
	}
	res, err := s.Conn.NamedExecContext(ctx, query, args)
	if err != nil {
		s.Logger.Error("Failed to update game", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, err := s.GetGameById(ctx, game.GameId); err != nil {
			return err
		}
		return ErrVersionConflict
	}
	*game = next
	return nil
}

func (s *SqliteStore) AssignPlayerTwo(ctx context.Context, gameId, playerId string) (*Game, error) {
	query := `UPDATE games SET player_two = ?, need_to_invite_player = false,
  version = version + 1, last_update = ?
WHERE game_id = ? AND player_two IS NULL;`
	res, err := s.Conn.ExecContext(ctx, query, playerId, now(), gameId)
	if err != nil {
		s.Logger.Error("Failed to assign player two", err)
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	game, err := s.GetGameById(ctx, gameId)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return game, ErrSlotTaken
	}
	s.Logger.Info(fmt.Sprintf("Player %s joined game %s", playerId, gameId))
	return game, nil
}

func (s *SqliteStore) GetGamesForPlayer(ctx context.Context, playerId string) ([]Game, error) {
	games := []Game{}
	query := `SELECT * FROM games WHERE player_one = ? OR player_two = ? ORDER BY last_update DESC;`
	if err := s.Conn.SelectContext(ctx, &games, query, playerId, playerId); err != nil {
		s.Logger.Error("Failed to list games", err)
		return nil, err
	}
	return games, nil
}

func (s *SqliteStore) CreatePlayer(ctx context.Context, player *Player) error {
	player.CreatedAt = now()
	query := `INSERT INTO players(player_id, username, phone_number, phone_number_validated,
  phone_code_hash, send_notifications, created_at)
VALUES(:player_id, :username, :phone_number, :phone_number_validated,
  :phone_code_hash, :send_notifications, :created_at);`
	if _, err := s.Conn.NamedExecContext(ctx, query, player); err != nil {
		s.Logger.Error("Failed to create player", err)
		return err
	}
	return nil
}

func (s *SqliteStore) GetPlayerById(ctx context.Context, playerId string) (*Player, error) {
	player := &Player{}
	if err := s.Conn.GetContext(ctx, player, `SELECT * FROM players WHERE player_id = ?;`, playerId); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPlayerNotFound
		}
		s.Logger.Error("Failed to fetch player", err)
		return nil, err
	}
	return player, nil
}

func (s *SqliteStore) GetPlayersByIds(ctx context.Context, playerIds []string) ([]Player, error) {
	players := []Player{}
	if len(playerIds) == 0 {
		return players, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM players WHERE player_id IN (?);`, playerIds)
	if err != nil {
		return nil, err
	}
	if err := s.Conn.SelectContext(ctx, &players, s.Conn.Rebind(query), args...); err != nil {
		s.Logger.Error("Failed to fetch players", err)
		return nil, err
	}
	return players, nil
}

func (s *SqliteStore) UpdatePlayer(ctx context.Context, player *Player) error {
	query := `UPDATE players SET username = :username, phone_number = :phone_number,
  phone_number_validated = :phone_number_validated, phone_code_hash = :phone_code_hash,
  send_notifications = :send_notifications
WHERE player_id = :player_id;`
	res, err := s.Conn.NamedExecContext(ctx, query, player)
	if err != nil {
		s.Logger.Error("Failed to update player", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrPlayerNotFound
	}
	return nil
}

func (s *SqliteStore) CreateToken(ctx context.Context, token *Token) error {
	token.CreatedAt = now()
	query := `INSERT INTO tokens(token, player_id, created_at) VALUES(:token, :player_id, :created_at);`
	if _, err := s.Conn.NamedExecContext(ctx, query, token); err != nil {
		s.Logger.Error("Failed to save token", err)
		return err
	}
	return nil
}

func (s *SqliteStore) GetPlayerIdByToken(ctx context.Context, token string) (string, error) {
	var playerId string
	if err := s.Conn.GetContext(ctx, &playerId, `SELECT player_id FROM tokens WHERE token = ?;`, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrTokenNotFound
		}
		s.Logger.Error("Failed to resolve token", err)
		return "", err
	}
	return playerId, nil
}

func (s *SqliteStore) AddPushSubscription(ctx context.Context, sub *PushSubscription) error {
	sub.CreatedAt = now()
	sub.IsActive = true
	query := `INSERT INTO push_subscriptions(subscription_id, player_id, endpoint, p256dh, auth, is_active, created_at)
VALUES(:subscription_id, :player_id, :endpoint, :p256dh, :auth, :is_active, :created_at);`
	if _, err := s.Conn.NamedExecContext(ctx, query, sub); err != nil {
		s.Logger.Error("Failed to save push subscription", err)
		return err
	}
	return nil
}

func (s *SqliteStore) GetActivePushSubscriptions(ctx context.Context, playerId string) ([]PushSubscription, error) {
	subs := []PushSubscription{}
	query := `SELECT * FROM push_subscriptions WHERE player_id = ? AND is_active = true ORDER BY created_at DESC;`
	if err := s.Conn.SelectContext(ctx, &subs, query, playerId); err != nil {
		s.Logger.Error("Failed to fetch push subscriptions", err)
		return nil, err
	}
	return subs, nil
}

func (s *SqliteStore) DeactivatePushSubscription(ctx context.Context, playerId, subscriptionId string) error {
	query := `UPDATE push_subscriptions SET is_active = false WHERE player_id = ? AND subscription_id = ?;`
	res, err := s.Conn.ExecContext(ctx, query, playerId, subscriptionId)
	if err != nil {
		s.Logger.Error("Failed to deactivate push subscription", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}
