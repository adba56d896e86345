package handler

import (
	"net/http"

	"memberhub/internal/domain"
	"memberhub/internal/middleware"
	"memberhub/internal/models"
	"memberhub/internal/service"
	"memberhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

type ContentHandler struct {
	svc   *service.ContentService
	cloud cloudinary.Client
}

func NewContentHandler(svc *service.ContentService, cloud cloudinary.Client) *ContentHandler {
	return &ContentHandler{svc: svc, cloud: cloud}
}

// List handles GET /content?kind=. Anonymous viewers see public items unlocked only.
func (h *ContentHandler) List(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), middleware.GetAccountID(c), c.Query("kind"))
	if err != nil {
		respondError(c, err, "could not list content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": items})
}

func (h *ContentHandler) Get(c *gin.Context) {
	item, err := h.svc.Get(c.Request.Context(), middleware.GetAccountID(c), c.Param("slug"))
	if err != nil {
		respondError(c, err, "could not load content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": item})
}

type ContentRequest struct {
	Kind         string      `json:"kind" binding:"required"`
	Slug         string      `json:"slug" binding:"required,max=120"`
	Title        string      `json:"title" binding:"required,max=200"`
	Summary      string      `json:"summary" binding:"max=500"`
	Body         string      `json:"body"`
	MediaURL     string      `json:"media_url" binding:"omitempty,url"`
	RequiredTier domain.Tier `json:"required_tier"`
	Published    bool        `json:"published"`
}

func (r *ContentRequest) model() *models.Content {
	return &models.Content{
		Kind:         r.Kind,
		Slug:         r.Slug,
		Title:        r.Title,
		Summary:      r.Summary,
		Body:         r.Body,
		MediaURL:     r.MediaURL,
		RequiredTier: r.RequiredTier,
		Published:    r.Published,
	}
}

// AdminList returns drafts and published items.
func (h *ContentHandler) AdminList(c *gin.Context) {
	list, err := h.svc.ListAll(c.Request.Context(), c.Query("kind"))
	if err != nil {
		respondError(c, err, "could not list content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": list})
}

func (h *ContentHandler) AdminCreate(c *gin.Context) {
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item := req.model()
	if err := h.svc.Create(c.Request.Context(), item); err != nil {
		respondError(c, err, "could not create content")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"content": item})
}

func (h *ContentHandler) AdminUpdate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req ContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	item, err := h.svc.Update(c.Request.Context(), id, req.model())
	if err != nil {
		respondError(c, err, "could not update content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"content": item})
}

func (h *ContentHandler) AdminDelete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err, "could not delete content")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// UploadMedia stores an image, or a video with ?type=video, and returns its URL for media_url.
func (h *ContentHandler) UploadMedia(c *gin.Context) {
	video := c.Query("type") == "video"
	url, ok := uploadFormFile(c, h.cloud, "memberhub/content", video)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
