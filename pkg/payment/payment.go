package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

type CheckoutRequest struct {
	AccountID   uint
	Reference   string // our payment reference, echoed back by the provider webhook
	Pack        string
	AmountCents int64
	Currency    string
	Description string
	Email       string
	SuccessURL  string
	CancelURL   string
	ExpiresIn   time.Duration
}

type CheckoutSession struct {
	SessionID   string
	CheckoutURL string
	ExpiresAt   time.Time
}

// Provider opens hosted card checkout sessions.
type Provider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	VerifyPayment(ctx context.Context, sessionID string) (bool, error)
}

// Sign returns the hex HMAC-SHA256 of body under secret, as sent in X-Webhook-Signature.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook signature in constant time.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
