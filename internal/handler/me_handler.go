package handler

import (
	"log"
	"net/http"
	"strconv"

	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/service"
	"memberhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type MeHandler struct {
	accounts    *service.AccountService
	entitlement *service.EntitlementService
	cloud       cloudinary.Client
}

func NewMeHandler(accounts *service.AccountService, entitlement *service.EntitlementService, cloud cloudinary.Client) *MeHandler {
	return &MeHandler{accounts: accounts, entitlement: entitlement, cloud: cloud}
}

// GetProfile returns the account with its resolved access tier.
func (h *MeHandler) GetProfile(c *gin.Context) {
	accountID := middleware.GetAccountID(c)
	a, err := h.accounts.Get(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err, "could not load profile")
		return
	}
	access, err := h.entitlement.Access(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err, "could not resolve access")
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": a, "access": access})
}

// CheckAccess answers GET /me/access?tier=premium.
func (h *MeHandler) CheckAccess(c *gin.Context) {
	required, err := domain.ParseTier(c.DefaultQuery("tier", domain.TierMember.String()))
	if err != nil {
		badRequest(c, err.Error())
		return
	}
	access, err := h.entitlement.Access(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err, "could not resolve access")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tier":       access.Tier,
		"required":   required,
		"has_access": domain.HasAccess(access.Tier, required),
	})
}

// UploadAvatar replaces the account avatar. The previous Cloudinary asset is removed best effort.
func (h *MeHandler) UploadAvatar(c *gin.Context) {
	accountID := middleware.GetAccountID(c)
	prev, err := h.accounts.Get(c.Request.Context(), accountID)
	if err != nil {
		respondError(c, err, "could not load profile")
		return
	}
	url, ok := uploadFormFile(c, h.cloud, "memberhub/avatars/"+strconv.FormatUint(uint64(accountID), 10), false)
	if !ok {
		return
	}
	a, err := h.accounts.SetAvatar(c.Request.Context(), accountID, url)
	if err != nil {
		respondError(c, err, "could not save avatar")
		return
	}
	if prev.AvatarURL != "" {
		if err := h.cloud.DeleteByURL(c.Request.Context(), prev.AvatarURL); err != nil {
			log.Printf("[me] could not delete old avatar of %d: %v", accountID, err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"account": a})
}
