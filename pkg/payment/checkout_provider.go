package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// CheckoutProvider talks to a Stripe-style hosted checkout API over HTTP.
type CheckoutProvider struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewCheckoutProvider(baseURL, apiKey string) *CheckoutProvider {
	return &CheckoutProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type checkoutSessionReq struct {
	ClientReferenceID string            `json:"client_reference_id"`
	AmountCents       int64             `json:"amount"`
	Currency          string            `json:"currency"`
	Description       string            `json:"description"`
	CustomerEmail     string            `json:"customer_email,omitempty"`
	SuccessURL        string            `json:"success_url"`
	CancelURL         string            `json:"cancel_url"`
	ExpiresAt         int64             `json:"expires_at"`
	Metadata          map[string]string `json:"metadata"`
}

func (p *CheckoutProvider) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("checkout %s %s: %d %s", method, path, resp.StatusCode, string(respBody))
	}
	return respBody, nil
}

// CreateCheckout opens a hosted checkout session for one pack purchase.
func (p *CheckoutProvider) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	expires := time.Now().Add(req.ExpiresIn)
	payload := checkoutSessionReq{
		ClientReferenceID: req.Reference,
		AmountCents:       req.AmountCents,
		Currency:          req.Currency,
		Description:       req.Description,
		CustomerEmail:     req.Email,
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		ExpiresAt:         expires.Unix(),
		Metadata:          map[string]string{"pack": req.Pack, "reference": req.Reference},
	}
	log.Printf("[checkout] POST %s/checkout/sessions reference=%s amount=%d %s", p.BaseURL, req.Reference, req.AmountCents, req.Currency)
	body, err := p.do(ctx, http.MethodPost, "/checkout/sessions", payload)
	if err != nil {
		return nil, err
	}
	res := gjson.ParseBytes(body)
	id := res.Get("id").String()
	url := res.Get("url").String()
	if id == "" || url == "" {
		return nil, fmt.Errorf("checkout: session response missing id or url")
	}
	if ts := res.Get("expires_at").Int(); ts > 0 {
		expires = time.Unix(ts, 0)
	}
	return &CheckoutSession{SessionID: id, CheckoutURL: url, ExpiresAt: expires}, nil
}

// VerifyPayment asks the provider whether the session was paid.
func (p *CheckoutProvider) VerifyPayment(ctx context.Context, sessionID string) (bool, error) {
	body, err := p.do(ctx, http.MethodGet, "/checkout/sessions/"+sessionID, nil)
	if err != nil {
		return false, err
	}
	return gjson.GetBytes(body, "payment_status").String() == "paid", nil
}
