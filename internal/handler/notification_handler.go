package handler

import (
	"net/http"

	"memberhub/internal/apperr"
	"memberhub/internal/middleware"
	"memberhub/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	svc *service.NotificationService
}

func NewNotificationHandler(svc *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{svc: svc}
}

func (h *NotificationHandler) List(c *gin.Context) {
	limit, offset := parseWindow(c)
	list, unread, err := h.svc.List(middleware.GetAccountID(c), limit, offset)
	if err != nil {
		respondError(c, err, "list failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list, "unread": unread})
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	found, err := h.svc.MarkRead(middleware.GetAccountID(c), id)
	if err != nil {
		respondError(c, err, "update failed")
		return
	}
	if !found {
		respondError(c, apperr.ErrNotFound, "")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.svc.MarkAllRead(middleware.GetAccountID(c)); err != nil {
		respondError(c, err, "update failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
