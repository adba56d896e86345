package handler

import (
	"net/http"
	"strings"

	"memberhub/pkg/cloudinary"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	maxImageBytes = 8 << 20
	maxVideoBytes = 200 << 20
)

// uploadFormFile sends the multipart "file" field to Cloudinary and returns its URL.
// It writes the error response itself and reports false on failure.
func uploadFormFile(c *gin.Context, cloud cloudinary.Client, folder string, video bool) (string, bool) {
	if cloud == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "uploads not configured", "code": "NOT_CONFIGURED"})
		return "", false
	}
	file, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file required")
		return "", false
	}
	limit, kind, prefix := int64(maxImageBytes), "image/", "img_"
	if video {
		limit, kind, prefix = maxVideoBytes, "video/", "vid_"
	}
	if file.Size > limit {
		badRequest(c, "file too large")
		return "", false
	}
	if ct := file.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, kind) {
		badRequest(c, "expected "+strings.TrimSuffix(kind, "/")+" file")
		return "", false
	}
	f, err := file.Open()
	if err != nil {
		badRequest(c, "could not read file")
		return "", false
	}
	defer f.Close()

	publicID := prefix + strings.ReplaceAll(uuid.New().String(), "-", "")[:16]
	upload := cloud.UploadImage
	if video {
		upload = cloud.UploadVideo
	}
	url, _, err := upload(c.Request.Context(), f, folder, publicID)
	if err != nil {
		respondError(c, err, "upload failed")
		return "", false
	}
	return url, true
}
