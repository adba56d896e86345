package handler

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"memberhub/config"
	"memberhub/internal/apperr"
	"memberhub/internal/service"
	"memberhub/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const maxWebhookBody = 64 << 10

type PaymentWebhookHandler struct {
	reconciler *service.ReconcilerService
	cfg        *config.Config
}

func NewPaymentWebhookHandler(reconciler *service.ReconcilerService, cfg *config.Config) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{reconciler: reconciler, cfg: cfg}
}

func webhookOutcome(status string) (paid, failed bool) {
	switch strings.ToLower(status) {
	case "paid", "completed", "succeeded":
		return true, false
	case "failed", "cancelled", "canceled", "expired":
		return false, true
	}
	return false, false
}

// Handle accepts {"reference": "...", "status": "paid", "paid_at": "RFC3339"} signed with
// X-Webhook-Signature. reference may be our MH- reference or the provider session id.
// Replays of a finalized payment are acknowledged without effect.
func (h *PaymentWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "invalid body")
		return
	}
	secret := h.cfg.Payment.WebhookSecret
	switch {
	case secret != "":
		if !payment.VerifySignature(secret, body, c.GetHeader("X-Webhook-Signature")) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature", "code": apperr.CodeUnauthorized})
			return
		}
	case h.cfg.IsProduction():
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook secret not configured", "code": "NOT_CONFIGURED"})
		return
	}
	if !gjson.ValidBytes(body) {
		badRequest(c, "invalid json")
		return
	}
	payload := gjson.ParseBytes(body)
	reference := payload.Get("reference").String()
	if reference == "" {
		reference = payload.Get("data.reference").String()
	}
	status := payload.Get("status").String()
	if reference == "" {
		badRequest(c, "reference required")
		return
	}
	paid, failed := webhookOutcome(status)
	if !paid && !failed {
		c.JSON(http.StatusOK, gin.H{"received": true, "ignored": status})
		return
	}

	ctx := c.Request.Context()
	if paid {
		var paidAt time.Time
		if s := payload.Get("paid_at").String(); s != "" {
			t, perr := time.Parse(time.RFC3339, s)
			if perr != nil {
				log.Printf("[webhook] payment %q has malformed paid_at %q: %v", reference, s, perr)
				badRequest(c, "paid_at must be an RFC 3339 timestamp")
				return
			}
			paidAt = t
		}
		_, err = h.reconciler.MarkPaidByReference(ctx, reference, paidAt)
	} else {
		_, err = h.reconciler.MarkFailedByReference(ctx, reference)
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true})
	case errors.Is(err, apperr.ErrAlreadyFinalized):
		c.JSON(http.StatusOK, gin.H{"received": true, "duplicate": true})
	case errors.Is(err, apperr.ErrNotFound):
		log.Printf("[webhook] unknown payment reference %q", reference)
		c.JSON(http.StatusOK, gin.H{"received": true, "unknown": true})
	default:
		respondError(c, err, "could not process webhook")
	}
}
