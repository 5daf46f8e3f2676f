package parser

import "encoding/json"

type CreateGameRequest struct {
	PlayerTwoUserId string `json:"playerTwoUserId"`
}

type SubmitTurnRequest struct {
	Turn string `json:"turn"`
}

type InviteRequest struct {
	PlayerId string `json:"playerId"`
}

type UpdatePlayerRequest struct {
	Username          *string `json:"username"`
	PhoneNumber       *string `json:"phoneNumber"`
	SendNotifications *bool   `json:"sendNotifications"`
}

type VerifyPhoneRequest struct {
	Code string `json:"code"`
}

// PushSubscriptionRequest mirrors the browser's PushSubscription.toJSON().
type PushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
}

type TokenResponse struct {
	Token  string `json:"token"`
	Player any    `json:"player"`
}

// parse tolerates an empty body so optional payloads can be omitted.
func parse[T any](data []byte) (*T, error) {
	req := new(T)
	if len(data) == 0 {
		return req, nil
	}
	err := json.Unmarshal(data, req)
	return req, err
}

func ParseCreateGameRequest(data []byte) (*CreateGameRequest, error) {
	return parse[CreateGameRequest](data)
}

func ParseSubmitTurnRequest(data []byte) (*SubmitTurnRequest, error) {
	return parse[SubmitTurnRequest](data)
}

func ParseInviteRequest(data []byte) (*InviteRequest, error) {
	return parse[InviteRequest](data)
}

func ParseUpdatePlayerRequest(data []byte) (*UpdatePlayerRequest, error) {
	return parse[UpdatePlayerRequest](data)
}

func ParseVerifyPhoneRequest(data []byte) (*VerifyPhoneRequest, error) {
	return parse[VerifyPhoneRequest](data)
}

func ParsePushSubscriptionRequest(data []byte) (*PushSubscriptionRequest, error) {
	return parse[PushSubscriptionRequest](data)
}
