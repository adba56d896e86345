package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memberhub/config"
	"memberhub/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcastToUser(t *testing.T) {
	h := NewHub()
	a1, a2, b := NewClient(1), NewClient(1), NewClient(2)
	h.Register(a1)
	h.Register(a2)
	h.Register(b)
	require.Equal(t, 3, h.ClientCount())

	h.BroadcastToUser(1, map[string]int{"balance": 5})
	require.JSONEq(t, `{"balance":5}`, string(<-a1.Send))
	require.JSONEq(t, `{"balance":5}`, string(<-a2.Send))
	require.Len(t, b.Send, 0)

	a1.Close()
	a1.Close()
	require.Equal(t, 2, h.ClientCount())
	h.BroadcastToUser(1, "again")
	require.Equal(t, `"again"`, string(<-a2.Send))
}

func TestHubDropsWhenClientIsSlow(t *testing.T) {
	h := NewHub()
	c := NewClient(1)
	h.Register(c)
	for i := 0; i < cap(c.Send)+10; i++ {
		h.BroadcastToUser(1, i)
	}
	require.Len(t, c.Send, cap(c.Send))
}

type fixedBalance int64

func (f fixedBalance) Balance(context.Context, uint) (int64, error) { return int64(f), nil }

func TestUpgradeWalletWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Minute, Issuer: "memberhub"}
	hub := NewHub()
	r := gin.New()
	r.GET("/ws/wallet", UpgradeWalletWS(cfg, NewUpgrader(nil), hub, fixedBalance(1200)))
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/wallet"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil)
	require.Error(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	tok, err := auth.GenerateAccessToken(cfg, 9, "x@example.test", "user")
	require.NoError(t, err)
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"hello","balance":1200}`, string(msg))

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.BroadcastToUser(9, map[string]string{"type": "balance"})
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"balance"}`, string(msg))
}
