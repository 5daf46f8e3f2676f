//go:generate mockery --name=Notifier --output=./mocks
//go:generate mockery --name=BotScheduler --output=./mocks
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/game"
	"github.com/jpcastberg/saym/internal/logger"
	"github.com/jpcastberg/saym/internal/notify"
)

var (
	// ErrNotFound covers both missing entities and callers without access.
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidState = errors.New("invalid state")
)

// Conditional writes that lose a race are retried from a fresh read this
// many times.
const maxWriteAttempts = 3

type Notifier interface {
	Notify(ctx context.Context, playerId string, ev notify.Event)
}

type BotScheduler interface {
	Schedule(g *db.Game)
	Cancel(gameId string)
}

type Service struct {
	Repo     db.Repository
	Notifier Notifier
	Bot      BotScheduler
	SMS      notify.SMSSender
	Logger   logger.Logger
}

func NewService(repo db.Repository, notifier Notifier, bot BotScheduler, sms notify.SMSSender) *Service {
	return &Service{
		Repo:     repo,
		Notifier: notifier,
		Bot:      bot,
		SMS:      sms,
		Logger:   logger.New("session"),
	}
}

func (s *Service) loadForParticipant(ctx context.Context, gameId, callerId string) (*db.Game, error) {
	g, err := s.Repo.GetGameById(ctx, gameId)
	if errors.Is(err, db.ErrGameNotFound) {
		return nil, fmt.Errorf("game %s: %w", gameId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameId, err)
	}
	if !g.HasParticipant(callerId) {
		return nil, fmt.Errorf("game %s: %w", gameId, ErrNotFound)
	}
	return g, nil
}

func (s *Service) checkInvitee(ctx context.Context, callerId, inviteeId string) error {
	if inviteeId == "" || inviteeId == callerId {
		return fmt.Errorf("%w: cannot invite %q", ErrInvalidInput, inviteeId)
	}
	if inviteeId == db.BotPlayerID {
		return nil
	}
	_, err := s.Repo.GetPlayerById(ctx, inviteeId)
	if errors.Is(err, db.ErrPlayerNotFound) {
		return fmt.Errorf("player %s: %w", inviteeId, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load player %s: %w", inviteeId, err)
	}
	return nil
}

// Create starts a game led by initiatorId. invitedId may be empty, a player
// id or the bot.
func (s *Service) Create(ctx context.Context, initiatorId, invitedId string) (*GameView, error) {
	if invitedId != "" {
		if err := s.checkInvitee(ctx, initiatorId, invitedId); err != nil {
			return nil, err
		}
	}
	g := &db.Game{
		GameId:             uuid.NewString(),
		PlayerOne:          initiatorId,
		PlayerOneTurns:     db.Turns{},
		PlayerTwoTurns:     db.Turns{},
		NeedToInvitePlayer: invitedId == "",
	}
	if invitedId != "" {
		g.PlayerTwo = &invitedId
	}
	if err := s.Repo.CreateGame(ctx, g); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}
	s.Logger.Info(fmt.Sprintf("Player %s created game %s", initiatorId, g.GameId))
	v, err := s.view(ctx, g)
	if err != nil {
		return nil, err
	}
	if invitedId != "" {
		s.notifyInvite(ctx, invitedId, v)
	}
	return v, nil
}

func (s *Service) Get(ctx context.Context, gameId, callerId string) (*GameView, error) {
	g, err := s.loadForParticipant(ctx, gameId, callerId)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, g)
}

func (s *Service) GetAll(ctx context.Context, playerId string) (*GameList, error) {
	games, err := s.Repo.GetGamesForPlayer(ctx, playerId)
	if err != nil {
		return nil, fmt.Errorf("list games of %s: %w", playerId, err)
	}
	views, err := s.views(ctx, games)
	if err != nil {
		return nil, err
	}
	list := &GameList{CurrentGames: []GameView{}, FinishedGames: []GameView{}}
	for _, v := range views {
		if v.IsGameComplete {
			list.FinishedGames = append(list.FinishedGames, v)
		} else {
			list.CurrentGames = append(list.CurrentGames, v)
		}
	}
	return list, nil
}

// Invite fills the empty second slot with inviteeId. A game whose slot is
// already taken is returned unchanged.
func (s *Service) Invite(ctx context.Context, gameId, callerId, inviteeId string) (*GameView, error) {
	g, err := s.loadForParticipant(ctx, gameId, callerId)
	if err != nil {
		return nil, err
	}
	if err := s.checkInvitee(ctx, callerId, inviteeId); err != nil {
		return nil, err
	}
	if g.PlayerTwo != nil {
		return s.view(ctx, g)
	}
	updated, err := s.Repo.AssignPlayerTwo(ctx, gameId, inviteeId)
	if errors.Is(err, db.ErrSlotTaken) {
		return s.view(ctx, updated)
	}
	if err != nil {
		return nil, fmt.Errorf("invite to game %s: %w", gameId, err)
	}
	v, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	if updated.AgainstBot() {
		s.scheduleBotIfOwed(updated)
	} else {
		s.notifyInvite(ctx, inviteeId, v)
	}
	return v, nil
}

func (s *Service) InviteBot(ctx context.Context, gameId, callerId string) (*GameView, error) {
	return s.Invite(ctx, gameId, callerId, db.BotPlayerID)
}

// Join takes the empty second slot for the caller.
func (s *Service) Join(ctx context.Context, gameId, callerId string) (*GameView, error) {
	g, err := s.Repo.GetGameById(ctx, gameId)
	if errors.Is(err, db.ErrGameNotFound) {
		return nil, fmt.Errorf("game %s: %w", gameId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", gameId, err)
	}
	if g.PlayerOne == callerId {
		return nil, fmt.Errorf("game %s is not joinable by its creator: %w", gameId, ErrNotFound)
	}
	if g.PlayerTwo != nil {
		return nil, fmt.Errorf("game %s is full: %w", gameId, ErrNotFound)
	}
	updated, err := s.Repo.AssignPlayerTwo(ctx, gameId, callerId)
	if errors.Is(err, db.ErrSlotTaken) {
		return nil, fmt.Errorf("game %s is full: %w", gameId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("join game %s: %w", gameId, err)
	}
	v, err := s.view(ctx, updated)
	if err != nil {
		return nil, err
	}
	s.notify(ctx, updated.PlayerOne, notify.Event{
		Type:    notify.EventGameUpdate,
		Data:    v,
		Message: fmt.Sprintf("%s joined your game of Saym!", displayName(*v.PlayerTwo)),
	})
	return v, nil
}

// SubmitTurn plays rawWord for callerId.
func (s *Service) SubmitTurn(ctx context.Context, gameId, callerId, rawWord string) (*GameView, error) {
	word := game.Sanitize(rawWord)
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.loadForParticipant(ctx, gameId, callerId)
		if err != nil {
			return nil, err
		}
		if g.IsGameComplete {
			return nil, fmt.Errorf("game %s is complete: %w", gameId, ErrInvalidState)
		}
		if !game.IsValidWord(word) {
			return nil, fmt.Errorf("%w: %q is not a playable word", ErrInvalidInput, rawWord)
		}

		isPlayerOne := g.PlayerOne == callerId
		mine, opponent := g.PlayerOneTurns, g.PlayerTwoTurns
		if !isPlayerOne {
			mine, opponent = g.PlayerTwoTurns, g.PlayerOneTurns
		}
		if !game.IsValidTurn(word, mine, opponent) || (!isPlayerOne && game.IsLead(mine, opponent)) {
			return nil, fmt.Errorf("%w: not your turn in game %s", ErrInvalidInput, gameId)
		}
		winning := game.IsWinningTurn(word, mine, opponent)

		mine = append(append(db.Turns{}, mine...), word)
		if isPlayerOne {
			g.PlayerOneTurns = mine
		} else {
			g.PlayerTwoTurns = mine
		}
		if winning {
			g.IsGameComplete = true
		}
		if len(mine)-len(opponent) == 1 {
			g.NudgeWasSent = false
		}

		err = s.Repo.UpdateGame(ctx, g)
		if errors.Is(err, db.ErrVersionConflict) {
			s.Logger.Debug(fmt.Sprintf("Game %s changed underneath a turn, retrying", gameId))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("save turn in game %s: %w", gameId, err)
		}
		return s.afterTurn(ctx, g, callerId)
	}
	return nil, fmt.Errorf("%w: game %s is being modified concurrently", ErrInvalidState, gameId)
}

// SubmitBotTurn plays word for the bot; it lets the bot scheduler feed its
// answers back through the regular turn path.
func (s *Service) SubmitBotTurn(ctx context.Context, gameId, word string) error {
	_, err := s.SubmitTurn(ctx, gameId, db.BotPlayerID, word)
	return err
}

func (s *Service) afterTurn(ctx context.Context, g *db.Game, callerId string) (*GameView, error) {
	if g.IsGameComplete {
		s.Logger.Info(fmt.Sprintf("Game %s won by a match", g.GameId))
		s.Bot.Cancel(g.GameId)
	} else {
		s.scheduleBotIfOwed(g)
	}
	v, err := s.view(ctx, g)
	if err != nil {
		return nil, err
	}
	caller := v.PlayerOne
	if callerId != g.PlayerOne && v.PlayerTwo != nil {
		caller = *v.PlayerTwo
	}
	message := fmt.Sprintf("%s played a word. Your move!", displayName(caller))
	if g.IsGameComplete {
		message = fmt.Sprintf("You and %s said the same word. Game over!", displayName(caller))
	}
	s.notify(ctx, g.Opponent(callerId), notify.Event{Type: notify.EventGameUpdate, Data: v, Message: message})
	return v, nil
}

// scheduleBotIfOwed schedules a bot reply when the bot is player two and
// player one is waiting on it.
func (s *Service) scheduleBotIfOwed(g *db.Game) {
	if !g.AgainstBot() || g.IsGameComplete {
		return
	}
	if game.IsResponse(g.PlayerTwoTurns, g.PlayerOneTurns) {
		s.Bot.Schedule(g)
	}
}

// Complete ends a game between rounds.
func (s *Service) Complete(ctx context.Context, gameId, callerId string) (*GameView, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.loadForParticipant(ctx, gameId, callerId)
		if err != nil {
			return nil, err
		}
		if g.IsGameComplete {
			return s.view(ctx, g)
		}
		if len(g.PlayerOneTurns) != len(g.PlayerTwoTurns) {
			return nil, fmt.Errorf("%w: game %s has a turn pending", ErrInvalidState, gameId)
		}
		g.IsGameComplete = true
		err = s.Repo.UpdateGame(ctx, g)
		if errors.Is(err, db.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("complete game %s: %w", gameId, err)
		}
		s.Bot.Cancel(gameId)
		v, err := s.view(ctx, g)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, g.Opponent(callerId), notify.Event{
			Type:    notify.EventGameUpdate,
			Data:    v,
			Message: "Your game of Saym was ended.",
		})
		return v, nil
	}
	return nil, fmt.Errorf("%w: game %s is being modified concurrently", ErrInvalidState, gameId)
}

// Nudge reminds the other participant once per round.
func (s *Service) Nudge(ctx context.Context, gameId, callerId string) error {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		g, err := s.loadForParticipant(ctx, gameId, callerId)
		if err != nil {
			return err
		}
		target := g.Opponent(callerId)
		if g.NudgeWasSent || g.IsGameComplete || target == "" || target == db.BotPlayerID {
			return nil
		}
		g.NudgeWasSent = true
		err = s.Repo.UpdateGame(ctx, g)
		if errors.Is(err, db.ErrVersionConflict) {
			continue
		}
		if err != nil {
			return fmt.Errorf("nudge in game %s: %w", gameId, err)
		}
		v, err := s.view(ctx, g)
		if err != nil {
			return err
		}
		caller := v.PlayerOne
		if callerId != g.PlayerOne {
			caller = *v.PlayerTwo
		}
		s.notify(ctx, target, notify.Event{
			Type:    notify.EventNudge,
			Data:    v,
			Message: fmt.Sprintf("%s is waiting on you. It's your move in Saym!", displayName(caller)),
		})
		return nil
	}
	return fmt.Errorf("%w: game %s is being modified concurrently", ErrInvalidState, gameId)
}

// notify skips recipients that cannot be reached: an empty seat or the bot.
func (s *Service) notify(ctx context.Context, playerId string, ev notify.Event) {
	if playerId == "" || playerId == db.BotPlayerID {
		return
	}
	s.Notifier.Notify(ctx, playerId, ev)
}

func (s *Service) notifyInvite(ctx context.Context, inviteeId string, v *GameView) {
	s.notify(ctx, inviteeId, notify.Event{
		Type:    notify.EventGameUpdate,
		Data:    v,
		Message: fmt.Sprintf("%s invited you to play Saym!", displayName(v.PlayerOne)),
	})
}
