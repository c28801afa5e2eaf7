package twilio

import (
	"context"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// messageCreator is the slice of the Twilio REST API the mirror uses.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// Client mirrors reminder notifications to a WhatsApp number via Twilio.
type Client struct {
	api          messageCreator
	fromWhatsApp string
	toWhatsApp   string
	log          *zap.Logger
}

// New creates a Twilio client sending from fromWhatsApp to toWhatsApp.
func New(accountSID, authToken, fromWhatsApp, toWhatsApp string, log *zap.Logger) *Client {
	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken})
	return &Client{
		api:          rest.Api,
		fromWhatsApp: fromWhatsApp,
		toWhatsApp:   toWhatsApp,
		log:          log.Named("twilio"),
	}
}

// Notify sends title and body as one WhatsApp message. The Twilio SDK call is
// not cancellable; when ctx ends first Notify returns ctx.Err() and the request
// finishes in the background, bounded by the SDK's HTTP timeout.
func (c *Client) Notify(ctx context.Context, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() {
		done <- c.SendWhatsAppMessage(c.toWhatsApp, title+"\n"+body)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		c.log.Warn("whatsapp notify abandoned", zap.Error(ctx.Err()))
		return ctx.Err()
	}
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio's API.
func (c *Client) SendWhatsAppMessage(to, body string) error {
	if c.api == nil {
		return fmt.Errorf("twilio client not initialised")
	}

	sender := normalizeWhatsAppAddress(c.fromWhatsApp)
	if sender == "" {
		return fmt.Errorf("twilio sender WhatsApp number is not configured")
	}

	recipient := normalizeWhatsAppAddress(to)
	if recipient == "" {
		return fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(recipient)
	params.SetFrom(sender)
	params.SetBody(body)

	resp, err := c.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("twilio send message error: %w", err)
	}

	if resp != nil && resp.Sid != nil {
		c.log.Debug("whatsapp message sent", zap.String("sid", *resp.Sid), zap.String("to", recipient))
	}
	return nil
}

func normalizeWhatsAppAddress(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "whatsapp:") {
		return trimmed
	}
	if strings.HasPrefix(trimmed, "+") {
		return "whatsapp:" + trimmed
	}
	return "whatsapp:+" + trimmed
}
