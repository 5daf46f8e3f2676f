//go:generate mockery --name=PushSender --output=./mocks
//go:generate mockery --name=SMSSender --output=./mocks
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/logger"
)

type EventType string

const (
	EventGameUpdate EventType = "gameUpdate"
	EventNudge      EventType = "nudge"

	DefaultTimeout = 10 * time.Second
)

// ErrSubscriptionExpired is returned by a PushSender when the push service
// no longer accepts messages for the subscription.
var ErrSubscriptionExpired = errors.New("push subscription expired")

type Event struct {
	Type EventType
	// Data is pushed to live connections inside the envelope.
	Data any
	// Message is the text used by offline channels.
	Message string
}

// Envelope is the JSON frame written to realtime connections.
type Envelope struct {
	EventType EventType `json:"eventType"`
	Data      any       `json:"data"`
}

type Realtime interface {
	Send(playerId string, payload []byte) bool
}

type PlayerDirectory interface {
	GetPlayerById(ctx context.Context, playerId string) (*db.Player, error)
	GetActivePushSubscriptions(ctx context.Context, playerId string) ([]db.PushSubscription, error)
	DeactivatePushSubscription(ctx context.Context, playerId, subscriptionId string) error
}

type PushSender interface {
	Push(ctx context.Context, sub db.PushSubscription, message string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, phoneNumber, body string) error
}

type Dispatcher struct {
	Realtime Realtime
	Players  PlayerDirectory
	Push     PushSender
	SMS      SMSSender
	Logger   logger.Logger
	Timeout  time.Duration

	inflight sync.WaitGroup
}

func NewDispatcher(realtime Realtime, players PlayerDirectory, push PushSender, sms SMSSender) *Dispatcher {
	return &Dispatcher{
		Realtime: realtime,
		Players:  players,
		Push:     push,
		SMS:      sms,
		Logger:   logger.New("notify"),
		Timeout:  DefaultTimeout,
	}
}

// Notify delivers ev to playerId. Live game updates go to open connections
// first; everything else, or a live update for an offline player, goes to
// the player's push subscriptions and then to SMS. Offline delivery runs in
// the background and is bounded by Timeout; Wait drains it. Failures are
// logged and never returned.
func (d *Dispatcher) Notify(ctx context.Context, playerId string, ev Event) {
	if playerId == "" || playerId == db.BotPlayerID {
		return
	}
	if ev.Type == EventGameUpdate && d.sendRealtime(playerId, ev) {
		return
	}
	if ev.Message == "" {
		return
	}
	d.inflight.Add(1)
	go func() {
		defer d.inflight.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.Timeout)
		defer cancel()
		d.sendOffline(ctx, playerId, ev)
	}()
}

// Wait blocks until every offline delivery started by Notify has finished.
func (d *Dispatcher) Wait() {
	d.inflight.Wait()
}

func (d *Dispatcher) sendRealtime(playerId string, ev Event) bool {
	payload, err := json.Marshal(Envelope{EventType: ev.Type, Data: ev.Data})
	if err != nil {
		d.Logger.Error("Failed to encode realtime event", err)
		return false
	}
	return d.Realtime.Send(playerId, payload)
}

func (d *Dispatcher) sendOffline(ctx context.Context, playerId string, ev Event) {
	player, err := d.Players.GetPlayerById(ctx, playerId)
	if err != nil {
		d.Logger.Error(fmt.Sprintf("Failed to load player %s for notification", playerId), err)
		return
	}
	if !player.SendNotifications {
		d.Logger.Debug(fmt.Sprintf("Player %s opted out of notifications", playerId))
		return
	}
	if d.push(ctx, playerId, ev.Message) {
		return
	}
	if player.PhoneNumber == nil || !player.PhoneNumberValidated || d.SMS == nil {
		d.Logger.Debug(fmt.Sprintf("No channel available for player %s, dropping %s", playerId, ev.Type))
		return
	}
	if err := d.SMS.SendSMS(ctx, *player.PhoneNumber, ev.Message); err != nil {
		d.Logger.Error(fmt.Sprintf("Failed to text player %s", playerId), err)
	}
}

// push reports whether at least one subscription accepted the message.
func (d *Dispatcher) push(ctx context.Context, playerId, message string) bool {
	if d.Push == nil {
		return false
	}
	subs, err := d.Players.GetActivePushSubscriptions(ctx, playerId)
	if err != nil {
		d.Logger.Error(fmt.Sprintf("Failed to load push subscriptions of player %s", playerId), err)
		return false
	}
	delivered := false
	for _, sub := range subs {
		err := d.Push.Push(ctx, sub, message)
		switch {
		case err == nil:
			delivered = true
		case errors.Is(err, ErrSubscriptionExpired):
			d.Logger.Info(fmt.Sprintf("Push subscription %s expired, deactivating", sub.SubscriptionId))
			if err := d.Players.DeactivatePushSubscription(ctx, playerId, sub.SubscriptionId); err != nil {
				d.Logger.Error("Failed to deactivate push subscription", err)
			}
		default:
			d.Logger.Error(fmt.Sprintf("Failed to push to subscription %s", sub.SubscriptionId), err)
		}
	}
	return delivered
}
