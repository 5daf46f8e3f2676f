package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/jpcastberg/saym/internal/db"
	"github.com/jpcastberg/saym/internal/logger"
)

const pushTTL = 24 * time.Hour

// WebPushSender encrypts messages for a browser subscription and signs each
// request with the server's VAPID key pair.
type WebPushSender struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subscriber is the contact the push service can reach, an email
	// address or an https url.
	Subscriber string
	Client     *http.Client
}

func NewWebPushSender(publicKey, privateKey, subscriber string, timeout time.Duration) *WebPushSender {
	return &WebPushSender{
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Subscriber:      subscriber,
		Client:          &http.Client{Timeout: timeout},
	}
}

func (w *WebPushSender) Push(ctx context.Context, sub db.PushSubscription, message string) error {
	target := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dh, Auth: sub.Auth},
	}
	resp, err := webpush.SendNotificationWithContext(ctx, []byte(message), target, &webpush.Options{
		HTTPClient:      w.Client,
		Subscriber:      w.Subscriber,
		TTL:             int(pushTTL.Seconds()),
		VAPIDPublicKey:  w.VAPIDPublicKey,
		VAPIDPrivateKey: w.VAPIDPrivateKey,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionExpired
	case resp.StatusCode >= 300:
		return fmt.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}

// SMSGateway posts messages to an HTTP SMS gateway as
// {"to": "...", "body": "..."}.
type SMSGateway struct {
	URL    string
	Client *http.Client
}

func NewSMSGateway(url string, timeout time.Duration) *SMSGateway {
	return &SMSGateway{URL: url, Client: &http.Client{Timeout: timeout}}
}

type smsRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (g *SMSGateway) SendSMS(ctx context.Context, phoneNumber, body string) error {
	payload, err := json.Marshal(smsRequest{To: phoneNumber, Body: body})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sms gateway answered %d", resp.StatusCode)
	}
	return nil
}

// LogSMS stands in for a gateway when none is configured.
type LogSMS struct {
	Logger logger.Logger
}

func (l LogSMS) SendSMS(_ context.Context, phoneNumber, body string) error {
	l.Logger.Info(fmt.Sprintf("SMS gateway not configured, dropping message for %s: %q", phoneNumber, body))
	return nil
}
