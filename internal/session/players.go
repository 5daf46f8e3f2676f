package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/utils"
	"golang.org/x/crypto/bcrypt"
)

const (
	maxUsernameLength = 32
	phoneCodeLength   = 6
)

var phonePattern = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

type PlayerView struct {
	Id                   string  `json:"_id"`
	Username             *string `json:"username"`
	PhoneNumber          *string `json:"phoneNumber"`
	PhoneNumberValidated bool    `json:"phoneNumberValidated"`
	SendNotifications    bool    `json:"sendNotifications"`
}

type SubscriptionView struct {
	Id       string `json:"_id"`
	Endpoint string `json:"endpoint"`
	IsActive bool   `json:"isActive"`
}

// ProfileUpdate carries the fields a player may change; nil means keep.
type ProfileUpdate struct {
	Username          *string
	PhoneNumber       *string
	SendNotifications *bool
}

func playerView(p *db.Player) *PlayerView {
	return &PlayerView{
		Id:                   p.PlayerId,
		Username:             p.Username,
		PhoneNumber:          p.PhoneNumber,
		PhoneNumberValidated: p.PhoneNumberValidated,
		SendNotifications:    p.SendNotifications,
	}
}

// IssueToken creates a fresh player together with its session token.
func (s *Service) IssueToken(ctx context.Context) (string, *PlayerView, error) {
	p := &db.Player{PlayerId: uuid.NewString(), SendNotifications: true}
	if err := s.Repo.CreatePlayer(ctx, p); err != nil {
		return "", nil, fmt.Errorf("create player: %w", err)
	}
	tok := &db.Token{Token: uuid.NewString(), PlayerId: p.PlayerId}
	if err := s.Repo.CreateToken(ctx, tok); err != nil {
		return "", nil, fmt.Errorf("create token: %w", err)
	}
	s.Logger.Info(fmt.Sprintf("Issued token for new player %s", p.PlayerId))
	return tok.Token, playerView(p), nil
}

// ResolveToken maps a session token to its player id.
func (s *Service) ResolveToken(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrNotFound
	}
	playerId, err := s.Repo.GetPlayerIdByToken(ctx, token)
	if errors.Is(err, db.ErrTokenNotFound) {
		return "", fmt.Errorf("token: %w", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("resolve token: %w", err)
	}
	return playerId, nil
}

func (s *Service) loadPlayer(ctx context.Context, playerId string) (*db.Player, error) {
	p, err := s.Repo.GetPlayerById(ctx, playerId)
	if errors.Is(err, db.ErrPlayerNotFound) {
		return nil, fmt.Errorf("player %s: %w", playerId, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load player %s: %w", playerId, err)
	}
	return p, nil
}

func (s *Service) GetPlayer(ctx context.Context, playerId string) (*PlayerView, error) {
	p, err := s.loadPlayer(ctx, playerId)
	if err != nil {
		return nil, err
	}
	return playerView(p), nil
}

// UpdateProfile applies upd. A new phone number starts unvalidated and gets
// a verification code by SMS.
func (s *Service) UpdateProfile(ctx context.Context, playerId string, upd ProfileUpdate) (*PlayerView, error) {
	p, err := s.loadPlayer(ctx, playerId)
	if err != nil {
		return nil, err
	}
	if upd.Username != nil {
		name := strings.TrimSpace(*upd.Username)
		if name == "" || utf8.RuneCountInString(name) > maxUsernameLength {
			return nil, fmt.Errorf("%w: username must be 1-%d characters", ErrInvalidInput, maxUsernameLength)
		}
		p.Username = &name
	}
	if upd.SendNotifications != nil {
		p.SendNotifications = *upd.SendNotifications
	}
	var code string
	if upd.PhoneNumber != nil && *upd.PhoneNumber != deref(p.PhoneNumber) {
		phone := strings.TrimSpace(*upd.PhoneNumber)
		if !phonePattern.MatchString(phone) {
			return nil, fmt.Errorf("%w: %q is not a phone number", ErrInvalidInput, phone)
		}
		code, err = utils.GetRandomCode(phoneCodeLength)
		if err != nil {
			return nil, fmt.Errorf("generate phone code: %w", err)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash phone code: %w", err)
		}
		hashed := string(hash)
		p.PhoneNumber = &phone
		p.PhoneNumberValidated = false
		p.PhoneCodeHash = &hashed
	}
	if err := s.Repo.UpdatePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("update player %s: %w", playerId, err)
	}
	if code != "" && s.SMS != nil {
		body := fmt.Sprintf("Your Saym verification code is %s", code)
		if err := s.SMS.SendSMS(ctx, *p.PhoneNumber, body); err != nil {
			s.Logger.Error(fmt.Sprintf("Failed to send verification code to player %s", playerId), err)
		}
	}
	return playerView(p), nil
}

// VerifyPhone marks the pending phone number validated when code matches.
func (s *Service) VerifyPhone(ctx context.Context, playerId, code string) (*PlayerView, error) {
	p, err := s.loadPlayer(ctx, playerId)
	if err != nil {
		return nil, err
	}
	if p.PhoneCodeHash == nil {
		return nil, fmt.Errorf("%w: no phone verification pending", ErrInvalidState)
	}
	if bcrypt.CompareHashAndPassword([]byte(*p.PhoneCodeHash), []byte(strings.TrimSpace(code))) != nil {
		return nil, fmt.Errorf("%w: wrong verification code", ErrInvalidInput)
	}
	p.PhoneNumberValidated = true
	p.PhoneCodeHash = nil
	if err := s.Repo.UpdatePlayer(ctx, p); err != nil {
		return nil, fmt.Errorf("update player %s: %w", playerId, err)
	}
	return playerView(p), nil
}

func (s *Service) AddPushSubscription(ctx context.Context, playerId, endpoint, p256dh, auth string) (*SubscriptionView, error) {
	endpoint = strings.TrimSpace(endpoint)
	if !strings.HasPrefix(endpoint, "https://") {
		return nil, fmt.Errorf("%w: push endpoint must be an https url", ErrInvalidInput)
	}
	if p256dh == "" || auth == "" {
		return nil, fmt.Errorf("%w: push subscription keys are required", ErrInvalidInput)
	}
	sub := &db.PushSubscription{SubscriptionId: uuid.NewString(), PlayerId: playerId, Endpoint: endpoint, P256dh: p256dh, Auth: auth}
	if err := s.Repo.AddPushSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("add push subscription: %w", err)
	}
	return &SubscriptionView{Id: sub.SubscriptionId, Endpoint: sub.Endpoint, IsActive: sub.IsActive}, nil
}

func (s *Service) RemovePushSubscription(ctx context.Context, playerId, subscriptionId string) error {
	err := s.Repo.DeactivatePushSubscription(ctx, playerId, subscriptionId)
	if errors.Is(err, db.ErrSubscriptionNotFound) {
		return fmt.Errorf("push subscription %s: %w", subscriptionId, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove push subscription: %w", err)
	}
	return nil
}
