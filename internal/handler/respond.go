package handler

import (
	"log"
	"net/http"
	"strconv"

	"memberhub/internal/apperr"

	"github.com/gin-gonic/gin"
)

// respondError writes err as {"error","code"}. Errors without a code are logged and hidden behind fallback.
func respondError(c *gin.Context, err error, fallback string) {
	code := apperr.CodeOf(err)
	if code == "" {
		log.Printf("[handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback, "code": "INTERNAL"})
		return
	}
	msg := err.Error()
	if code == apperr.CodeStorageUnavailable {
		log.Printf("[handler] %s %s: %v", c.Request.Method, c.FullPath(), err)
		msg = "storage unavailable, retry later"
	}
	c.JSON(code.HTTPStatus(), gin.H{"error": msg, "code": code})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg, "code": apperr.CodeInvalidArgument})
}

// paramID parses a positive numeric path parameter, answering 400 when it is not one.
func paramID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// parseWindow reads limit/offset for feeds.
func parseWindow(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
