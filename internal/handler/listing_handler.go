package handler

import (
	"net/http"
	"strconv"

	"memberhub/internal/middleware"
	"memberhub/internal/service"
	"memberhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type ListingHandler struct {
	ledger *service.LedgerService
	cloud  cloudinary.Client
}

func NewListingHandler(ledger *service.LedgerService, cloud cloudinary.Client) *ListingHandler {
	return &ListingHandler{ledger: ledger, cloud: cloud}
}

// List returns active listings, hiding the caller's own.
func (h *ListingHandler) List(c *gin.Context) {
	limit, offset := parseWindow(c)
	list, err := h.ledger.ListListings(c.Request.Context(), middleware.GetAccountID(c), limit, offset)
	if err != nil {
		respondError(c, err, "could not list listings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": list, "limit": limit, "offset": offset})
}

// ListMine handles GET /me/listings, including sold and archived listings.
func (h *ListingHandler) ListMine(c *gin.Context) {
	list, err := h.ledger.SellerListings(c.Request.Context(), middleware.GetAccountID(c))
	if err != nil {
		respondError(c, err, "could not list listings")
		return
	}
	c.JSON(http.StatusOK, gin.H{"listings": list})
}

func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	l, err := h.ledger.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not load listing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"listing": l})
}

type CreateListingRequest struct {
	Title       string `json:"title" binding:"required,max=120"`
	Description string `json:"description" binding:"max=5000"`
	Price       int64  `json:"price"`
}

func (h *ListingHandler) Create(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	l, err := h.ledger.CreateListing(c.Request.Context(), middleware.GetAccountID(c), req.Title, req.Description, req.Price)
	if err != nil {
		respondError(c, err, "could not create listing")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"listing": l})
}

// UploadImage attaches a Cloudinary image to the caller's listing.
func (h *ListingHandler) UploadImage(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	accountID := middleware.GetAccountID(c)
	l, err := h.ledger.GetListing(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, "could not load listing")
		return
	}
	if l.SellerID != accountID {
		c.JSON(http.StatusForbidden, gin.H{"error": "not your listing", "code": "FORBIDDEN"})
		return
	}
	url, ok := uploadFormFile(c, h.cloud, "memberhub/listings/"+strconv.FormatUint(uint64(id), 10), false)
	if !ok {
		return
	}
	if err := h.ledger.SetListingImage(c.Request.Context(), accountID, id, url); err != nil {
		respondError(c, err, "could not save image")
		return
	}
	c.JSON(http.StatusOK, gin.H{"image_url": url})
}

// Exchange buys the listing with the caller's credits.
func (h *ListingHandler) Exchange(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	row, err := h.ledger.Exchange(c.Request.Context(), middleware.GetAccountID(c), id)
	if err != nil {
		respondError(c, err, "exchange failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"transaction": row})
}

func (h *ListingHandler) Archive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.ledger.ArchiveListing(c.Request.Context(), middleware.GetAccountID(c), id); err != nil {
		respondError(c, err, "could not archive listing")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "archived"})
}
