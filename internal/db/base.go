package db

import (
	"context"
	"errors"

	"github.com/jpcastberg/saym/internal/logger"

	_ "github.com/mattn/go-sqlite3"
)

var (
	ErrGameNotFound         = errors.New("game not found")
	ErrPlayerNotFound       = errors.New("player not found")
	ErrTokenNotFound        = errors.New("token not found")
	ErrSubscriptionNotFound = errors.New("push subscription not found")
	ErrVersionConflict      = errors.New("game was modified concurrently")
	ErrSlotTaken            = errors.New("player two slot already filled")
)

type Repository interface {
	SetupConnection(database string) error
	CloseConnection()

	CreateGame(ctx context.Context, game *Game) error
	GetGameById(ctx context.Context, gameId string) (*Game, error)
	// UpdateGame writes game only if its stored version still equals
	// game.Version, bumping the version on success.
	UpdateGame(ctx context.Context, game *Game) error
	// AssignPlayerTwo fills the second slot only while it is empty.
	AssignPlayerTwo(ctx context.Context, gameId, playerId string) (*Game, error)
	GetGamesForPlayer(ctx context.Context, playerId string) ([]Game, error)

	CreatePlayer(ctx context.Context, player *Player) error
	GetPlayerById(ctx context.Context, playerId string) (*Player, error)
	GetPlayersByIds(ctx context.Context, playerIds []string) ([]Player, error)
	UpdatePlayer(ctx context.Context, player *Player) error

	CreateToken(ctx context.Context, token *Token) error
	GetPlayerIdByToken(ctx context.Context, token string) (string, error)

	AddPushSubscription(ctx context.Context, sub *PushSubscription) error
	GetActivePushSubscriptions(ctx context.Context, playerId string) ([]PushSubscription, error)
	DeactivatePushSubscription(ctx context.Context, playerId, subscriptionId string) error
}

func SetupDB(dbName string) (Repository, error) {
	var repository Repository = &SqliteStore{
		Logger: logger.New("database"),
	}
	err := repository.SetupConnection(dbName)
	return repository, err
}
