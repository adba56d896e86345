package handler

import (
	"net/http"

	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/models"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type ReferralHandler struct {
	svc *service.ReferralService
}

func NewReferralHandler(svc *service.ReferralService) *ReferralHandler {
	return &ReferralHandler{svc: svc}
}

// GetMyReferralCode returns the caller's referral code, creating one on first use.
// GET /me/referral-code
func (h *ReferralHandler) GetMyReferralCode(c *gin.Context) {
	rc, err := h.svc.GetOrCreateCode(middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err, "could not get referral code")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"code":       rc.Code,
		"is_active":  rc.IsActive,
		"created_at": rc.CreatedAt,
	})
}

// GetMyReferrals lists the accounts the caller referred and how many commissions each can still earn.
// GET /me/referrals
func (h *ReferralHandler) GetMyReferrals(c *gin.Context) {
	limit, offset := parseWindow(c)
	referrals, err := h.svc.ListReferrals(middleware.GetAccountID(c), limit, offset)
	if err != nil {
		respondError(c, err, "could not list referrals")
		return
	}
	out := lo.Map(referrals, func(ref models.Referral, _ int) gin.H {
		return gin.H{
			"id":                    ref.ID,
			"username":              ref.ReferredAccount.Username,
			"completed_count":       ref.CompletedCount,
			"commissions_remaining": max(domain.MaxReferralCommissions-ref.CompletedCount, 0),
			"created_at":            ref.CreatedAt,
		}
	})
	c.JSON(http.StatusOK, gin.H{"referrals": out, "limit": limit, "offset": offset})
}
