package push

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/pathakanu/waterit/internal/model"
)

// WebPush delivers messages through the browsers' push services using VAPID.
type WebPush struct {
	publicKey  string
	privateKey string
	subscriber string
	ttl        int
	client     *http.Client
}

// NewWebPush returns a sender for the given VAPID key pair. Missing keys yield
// ErrNotConfigured.
func NewWebPush(publicKey, privateKey, subject string, ttlSeconds int, timeout time.Duration) (*WebPush, error) {
	if publicKey == "" || privateKey == "" {
		return nil, ErrNotConfigured
	}
	return &WebPush{
		publicKey:  publicKey,
		privateKey: privateKey,
		// webpush-go adds the mailto: scheme itself.
		subscriber: strings.TrimPrefix(subject, "mailto:"),
		ttl:        ttlSeconds,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

// Send implements Sender.
func (w *WebPush) Send(ctx context.Context, sub model.PushSubscription, payload []byte) (Outcome, error) {
	resp, err := webpush.SendNotificationWithContext(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}, &webpush.Options{
		HTTPClient:      w.client,
		Subscriber:      w.subscriber,
		VAPIDPublicKey:  w.publicKey,
		VAPIDPrivateKey: w.privateKey,
		TTL:             w.ttl,
	})
	if err != nil {
		return Failed, err
	}
	defer resp.Body.Close()

	return classifyStatus(resp)
}

func classifyStatus(resp *http.Response) (Outcome, error) {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return Delivered, nil
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		return Gone, fmt.Errorf("subscription expired: status %d", resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Failed, fmt.Errorf("unexpected push status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
}

// GenerateVAPIDKeys returns a new base64url encoded key pair.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	privateKey, publicKey, err = webpush.GenerateVAPIDKeys()
	return publicKey, privateKey, err
}
