package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jpcastberg/saym/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	store := &SqliteStore{Logger: logger.Discard()}
	require.NoError(t, store.SetupConnection(":memory:"))
	t.Cleanup(store.CloseConnection)
	return store
}

func newTestPlayer(t *testing.T, store *SqliteStore) *Player {
	t.Helper()
	p := &Player{PlayerId: uuid.NewString(), SendNotifications: true}
	require.NoError(t, store.CreatePlayer(context.Background(), p))
	return p
}

func TestTurnsRoundTripThroughStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := &Game{GameId: uuid.NewString(), PlayerOne: "a", NeedToInvitePlayer: true}
	require.NoError(t, store.CreateGame(ctx, g))

	got, err := store.GetGameById(ctx, g.GameId)
	require.NoError(t, err)
	assert.Equal(t, Turns{}, got.PlayerOneTurns)
	assert.Nil(t, got.PlayerTwo)
	assert.True(t, got.NeedToInvitePlayer)

	got.PlayerOneTurns = append(got.PlayerOneTurns, "apple ")
	require.NoError(t, store.UpdateGame(ctx, got))

	again, err := store.GetGameById(ctx, g.GameId)
	require.NoError(t, err)
	assert.Equal(t, Turns{"apple "}, again.PlayerOneTurns)
	assert.Equal(t, int64(1), again.Version)
}

func TestGetGameByIdMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.GetGameById(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestUpdateGameRejectsStaleVersion(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := &Game{GameId: uuid.NewString(), PlayerOne: "a"}
	require.NoError(t, store.CreateGame(ctx, g))

	first, err := store.GetGameById(ctx, g.GameId)
	require.NoError(t, err)
	second, err := store.GetGameById(ctx, g.GameId)
	require.NoError(t, err)

	first.PlayerOneTurns = Turns{"sun"}
	require.NoError(t, store.UpdateGame(ctx, first))

	second.PlayerOneTurns = Turns{"moon"}
	assert.ErrorIs(t, store.UpdateGame(ctx, second), ErrVersionConflict)

	stored, err := store.GetGameById(ctx, g.GameId)
	require.NoError(t, err)
	assert.Equal(t, Turns{"sun"}, stored.PlayerOneTurns)
}

func TestAssignPlayerTwoOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	g := &Game{GameId: uuid.NewString(), PlayerOne: "a", NeedToInvitePlayer: true}
	require.NoError(t, store.CreateGame(ctx, g))

	joined, err := store.AssignPlayerTwo(ctx, g.GameId, "b")
	require.NoError(t, err)
	require.NotNil(t, joined.PlayerTwo)
	assert.Equal(t, "b", *joined.PlayerTwo)
	assert.False(t, joined.NeedToInvitePlayer)

	again, err := store.AssignPlayerTwo(ctx, g.GameId, "c")
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, "b", *again.PlayerTwo)

	_, err = store.AssignPlayerTwo(ctx, "missing", "c")
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestGetGamesForPlayerOrdersByLastUpdate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	older := &Game{GameId: uuid.NewString(), PlayerOne: "a"}
	newer := &Game{GameId: uuid.NewString(), PlayerOne: "b"}
	other := &Game{GameId: uuid.NewString(), PlayerOne: "x"}
	require.NoError(t, store.CreateGame(ctx, older))
	require.NoError(t, store.CreateGame(ctx, newer))
	require.NoError(t, store.CreateGame(ctx, other))
	_, err := store.AssignPlayerTwo(ctx, newer.GameId, "a")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)
	older.PlayerOneTurns = Turns{"first"}
	require.NoError(t, store.UpdateGame(ctx, older))

	games, err := store.GetGamesForPlayer(ctx, "a")
	require.NoError(t, err)
	require.Len(t, games, 2)
	assert.Equal(t, older.GameId, games[0].GameId)
	assert.Equal(t, newer.GameId, games[1].GameId)
}

func TestPlayersAndTokens(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := newTestPlayer(t, store)
	q := newTestPlayer(t, store)

	name := "rookie"
	p.Username = &name
	require.NoError(t, store.UpdatePlayer(ctx, p))

	players, err := store.GetPlayersByIds(ctx, []string{p.PlayerId, q.PlayerId, "ghost"})
	require.NoError(t, err)
	assert.Len(t, players, 2)

	got, err := store.GetPlayerById(ctx, p.PlayerId)
	require.NoError(t, err)
	require.NotNil(t, got.Username)
	assert.Equal(t, "rookie", *got.Username)
	assert.True(t, got.SendNotifications)

	_, err = store.GetPlayerById(ctx, "ghost")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	tok := &Token{Token: uuid.NewString(), PlayerId: p.PlayerId}
	require.NoError(t, store.CreateToken(ctx, tok))
	id, err := store.GetPlayerIdByToken(ctx, tok.Token)
	require.NoError(t, err)
	assert.Equal(t, p.PlayerId, id)

	_, err = store.GetPlayerIdByToken(ctx, "bogus")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestPushSubscriptions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	p := newTestPlayer(t, store)

	sub := &PushSubscription{SubscriptionId: uuid.NewString(), PlayerId: p.PlayerId, Endpoint: "https://push.example/1", P256dh: "client-key", Auth: "secret"}
	require.NoError(t, store.AddPushSubscription(ctx, sub))

	subs, err := store.GetActivePushSubscriptions(ctx, p.PlayerId)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].IsActive)
	assert.Equal(t, "client-key", subs[0].P256dh)
	assert.Equal(t, "secret", subs[0].Auth)

	require.NoError(t, store.DeactivatePushSubscription(ctx, p.PlayerId, sub.SubscriptionId))
	subs, err = store.GetActivePushSubscriptions(ctx, p.PlayerId)
	require.NoError(t, err)
	assert.Empty(t, subs)

	assert.ErrorIs(t, store.DeactivatePushSubscription(ctx, "someone-else", sub.SubscriptionId), ErrSubscriptionNotFound)
}
