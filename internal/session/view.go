package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jpcastberg/saym/internal/db"
)

const botUsername = "Saym Bot"

type PlayerSummary struct {
	Id       string  `json:"_id"`
	Username *string `json:"username"`
}

// GameView is a game as clients see it, with player display data joined in.
type GameView struct {
	Id                 string         `json:"_id"`
	PlayerOne          PlayerSummary  `json:"playerOne"`
	PlayerTwo          *PlayerSummary `json:"playerTwo"`
	PlayerOneTurns     []string       `json:"playerOneTurns"`
	PlayerTwoTurns     []string       `json:"playerTwoTurns"`
	IsGameComplete     bool           `json:"isGameComplete"`
	NeedToInvitePlayer bool           `json:"needToInvitePlayer"`
	NudgeWasSent       bool           `json:"nudgeWasSent"`
	LastUpdate         time.Time      `json:"lastUpdate"`
}

type GameList struct {
	CurrentGames  []GameView `json:"currentGames"`
	FinishedGames []GameView `json:"finishedGames"`
}

func (s *Service) view(ctx context.Context, g *db.Game) (*GameView, error) {
	views, err := s.views(ctx, []db.Game{*g})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) views(ctx context.Context, games []db.Game) ([]GameView, error) {
	ids := make([]string, 0, len(games)*2)
	seen := map[string]bool{db.BotPlayerID: true}
	for _, g := range games {
		for _, id := range []string{g.PlayerOne, deref(g.PlayerTwo)} {
			if id != "" && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	players, err := s.Repo.GetPlayersByIds(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolve players: %w", err)
	}
	names := make(map[string]*string, len(players))
	for _, p := range players {
		names[p.PlayerId] = p.Username
	}
	summary := func(id string) PlayerSummary {
		if id == db.BotPlayerID {
			name := botUsername
			return PlayerSummary{Id: id, Username: &name}
		}
		return PlayerSummary{Id: id, Username: names[id]}
	}

	out := make([]GameView, 0, len(games))
	for _, g := range games {
		v := GameView{
			Id:                 g.GameId,
			PlayerOne:          summary(g.PlayerOne),
			PlayerOneTurns:     nonNil(g.PlayerOneTurns),
			PlayerTwoTurns:     nonNil(g.PlayerTwoTurns),
			IsGameComplete:     g.IsGameComplete,
			NeedToInvitePlayer: g.NeedToInvitePlayer,
			NudgeWasSent:       g.NudgeWasSent,
			LastUpdate:         g.LastUpdate,
		}
		if g.PlayerTwo != nil {
			two := summary(*g.PlayerTwo)
			v.PlayerTwo = &two
		}
		out = append(out, v)
	}
	return out, nil
}

// displayName is used in notification texts.
func displayName(summary PlayerSummary) string {
	if summary.Username == nil || *summary.Username == "" {
		return "Your opponent"
	}
	return *summary.Username
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nonNil(turns db.Turns) []string {
	if turns == nil {
		return []string{}
	}
	return []string(turns)
}
