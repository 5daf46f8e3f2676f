package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/game"
	"github.com/jpcastberg/saym/internal/logger"
)

const (
	DefaultDelay = 2 * time.Second
	FallbackWord = "saym"
	EmptyHistory = "empty"

	turnTimeout = 15 * time.Second
)

// TurnSubmitter plays a word for the bot through the regular turn path.
type TurnSubmitter interface {
	SubmitBotTurn(ctx context.Context, gameId, word string) error
}

type pendingTurn struct {
	timer *time.Timer
}

type Scheduler struct {
	Generator WordGenerator
	Delay     time.Duration
	Logger    logger.Logger

	mu        sync.Mutex
	submitter TurnSubmitter
	pending   map[string]*pendingTurn
	stopped   bool
	running   sync.WaitGroup
}

func NewScheduler(generator WordGenerator, delay time.Duration) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		Generator: generator,
		Delay:     delay,
		Logger:    logger.New("bot"),
		pending:   make(map[string]*pendingTurn),
	}
}

func (s *Scheduler) SetSubmitter(submitter TurnSubmitter) {
	s.mu.Lock()
	s.submitter = submitter
	s.mu.Unlock()
}

// Schedule plays the bot's reply to g after Delay, replacing any turn
// already pending for the same game.
func (s *Scheduler) Schedule(g *db.Game) {
	gameId := g.GameId
	prompt := Prompt{
		History: History(g.PlayerOneTurns, g.PlayerTwoTurns),
		Word:    lastWord(g.PlayerOneTurns),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if prev, exists := s.pending[gameId]; exists {
		prev.timer.Stop()
	}
	p := &pendingTurn{}
	p.timer = time.AfterFunc(s.Delay, func() { s.fire(gameId, p, prompt) })
	s.pending[gameId] = p
	s.Logger.Debug(fmt.Sprintf("Bot turn scheduled for game %s", gameId))
}

// Cancel drops the pending turn of gameId, if any.
func (s *Scheduler) Cancel(gameId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, exists := s.pending[gameId]; exists {
		p.timer.Stop()
		delete(s.pending, gameId)
		s.Logger.Debug(fmt.Sprintf("Bot turn cancelled for game %s", gameId))
	}
}

func (s *Scheduler) Pending(gameId string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.pending[gameId]
	return exists
}

// Stop cancels every pending turn and waits for turns already running.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for gameId, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, gameId)
	}
	s.mu.Unlock()
	s.running.Wait()
}

func (s *Scheduler) fire(gameId string, p *pendingTurn, prompt Prompt) {
	s.mu.Lock()
	if s.pending[gameId] != p || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, gameId)
	submitter := s.submitter
	s.running.Add(1)
	s.mu.Unlock()
	defer s.running.Done()

	if submitter == nil {
		s.Logger.Warn(fmt.Sprintf("No submitter attached, dropping bot turn for game %s", gameId))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), turnTimeout)
	defer cancel()

	word := s.nextWord(ctx, prompt)
	if err := submitter.SubmitBotTurn(ctx, gameId, word); err != nil {
		s.Logger.Error(fmt.Sprintf("Bot turn for game %s rejected", gameId), err)
		return
	}
	s.Logger.Info(fmt.Sprintf("Bot played %q in game %s", word, gameId))
}

func (s *Scheduler) nextWord(ctx context.Context, prompt Prompt) string {
	if s.Generator == nil {
		return FallbackWord
	}
	raw, err := s.Generator.NextWord(ctx, prompt)
	if err != nil {
		s.Logger.Error("Word generation failed, using fallback", err)
		return FallbackWord
	}
	word := CleanWord(raw)
	if !game.IsValidWord(word) {
		s.Logger.Warn(fmt.Sprintf("Generated word %q is not playable, using fallback", raw))
		return FallbackWord
	}
	return word
}

// History renders completed rounds oldest first, e.g. "sun moon, star sky".
func History(playerOne, playerTwo []string) string {
	rounds := make([]string, 0, len(playerTwo))
	for i := 0; i < len(playerTwo) && i < len(playerOne); i++ {
		rounds = append(rounds, strings.TrimSpace(playerOne[i])+" "+strings.TrimSpace(playerTwo[i]))
	}
	if len(rounds) == 0 {
		return EmptyHistory
	}
	return strings.Join(rounds, ", ")
}

// CleanWord keeps the first line of generated text, sanitized and trimmed.
func CleanWord(raw string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(raw), "\n")
	return strings.TrimSpace(game.Sanitize(line))
}

func lastWord(turns []string) string {
	if len(turns) == 0 {
		return ""
	}
	return turns[len(turns)-1]
}
