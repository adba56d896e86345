package payment

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// StubProvider is a no-op provider for development; sessions are confirmed through the webhook or the CLI.
type StubProvider struct {
	BaseURL string
}

func (s *StubProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	id := fmt.Sprintf("stub_%d_%d", time.Now().UnixNano(), req.AccountID)
	base := s.BaseURL
	if base == "" {
		base = "http://localhost:8099/checkout"
	}
	return &CheckoutSession{
		SessionID:   id,
		CheckoutURL: base + "/" + id,
		ExpiresAt:   time.Now().Add(req.ExpiresIn),
	}, nil
}

func (s *StubProvider) VerifyPayment(ctx context.Context, sessionID string) (bool, error) {
	return strings.HasPrefix(sessionID, "stub_"), nil
}
