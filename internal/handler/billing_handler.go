package handler

import (
	"net/http"

	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type BillingHandler struct {
	entitlement *service.EntitlementService
	currency    string
}

func NewBillingHandler(entitlement *service.EntitlementService, currency string) *BillingHandler {
	return &BillingHandler{entitlement: entitlement, currency: currency}
}

// ListPacks returns the purchasable packs with display prices.
func (h *BillingHandler) ListPacks(c *gin.Context) {
	packs := lo.Map(domain.Packs(), func(p domain.Pack, _ int) gin.H {
		return gin.H{
			"id":          p.ID,
			"name":        p.Name,
			"tier":        p.Tier,
			"price_cents": p.PriceCents,
			"price":       domain.FormatAmount(p.PriceCents, h.currency),
			"days":        p.Days,
		}
	})
	c.JSON(http.StatusOK, gin.H{"packs": packs, "currency": h.currency})
}

type packRequest struct {
	Pack string `json:"pack" binding:"required"`
}

func created(reused bool) int {
	if reused {
		return http.StatusOK
	}
	return http.StatusCreated
}

// CreateBankTransfer returns the caller's pending bank-transfer intent, opening one if needed.
func (h *BillingHandler) CreateBankTransfer(c *gin.Context) {
	var req packRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rec, reused, err := h.entitlement.CreateOrReuseBankTransferIntent(c.Request.Context(), middleware.GetAccountID(c), req.Pack)
	if err != nil {
		respondError(c, err, "could not create bank transfer")
		return
	}
	c.JSON(created(reused), gin.H{
		"payment": rec,
		"reused":  reused,
		"amount":  domain.FormatAmount(rec.AmountDue, rec.Currency),
	})
}

// CreateCheckout opens (or reuses) a hosted card checkout.
func (h *BillingHandler) CreateCheckout(c *gin.Context) {
	var req packRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rec, reused, err := h.entitlement.CreateCardCheckout(c.Request.Context(), middleware.GetAccountID(c), req.Pack)
	if err != nil {
		respondError(c, err, "could not start checkout")
		return
	}
	c.JSON(created(reused), gin.H{
		"payment":      rec,
		"reused":       reused,
		"checkout_url": rec.CheckoutURL,
	})
}

func (h *BillingHandler) RequestLegacyVerification(c *gin.Context) {
	var req struct {
		PaidWith string `json:"paid_with" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	rec, already, err := h.entitlement.RequestLegacyVerification(c.Request.Context(), middleware.GetAccountID(c), req.PaidWith)
	if err != nil {
		respondError(c, err, "could not request verification")
		return
	}
	c.JSON(created(already), gin.H{"verification": rec, "already_requested": already})
}

func (h *BillingHandler) ListPayments(c *gin.Context) {
	payments, legacy, err := h.entitlement.Payments(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err, "could not list payments")
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": payments, "legacy_verifications": legacy})
}
