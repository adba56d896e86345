package cloudinary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublicIDFromURL(t *testing.T) {
	cases := []struct {
		url, id, kind string
		ok            bool
	}{
		{"https://res.cloudinary.com/demo/image/upload/v1712345678/memberhub/listings/7/img_abc.jpg", "memberhub/listings/7/img_abc", "image", true},
		{"https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_200,c_fill/memberhub/avatars/3/a1.png", "memberhub/avatars/3/a1", "image", true},
		{"https://res.cloudinary.com/demo/video/upload/w_1280/v99/memberhub/content/intro.mp4", "memberhub/content/intro", "video", true},
		{"https://example.com/picture.png", "", "", false},
	}
	for _, c := range cases {
		id, kind, ok := PublicIDFromURL(c.url)
		assert.Equal(t, c.ok, ok, c.url)
		assert.Equal(t, c.id, id, c.url)
		assert.Equal(t, c.kind, kind, c.url)
	}
}

func TestBuildOptimizedImageURL(t *testing.T) {
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/q_auto,f_auto,w_800,c_fill/x/y",
		BuildOptimizedImageURL("demo", "x/y", 0))
}
