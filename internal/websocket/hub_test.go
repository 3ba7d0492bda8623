package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/models"
)

func TestHub_DeliversToUserClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logging.Discard())
	go hub.Run(ctx)

	mine := &Client{Hub: hub, Send: make(chan []byte, 1), UserID: 1}
	other := &Client{Hub: hub, Send: make(chan []byte, 1), UserID: 2}
	require.True(t, hub.Join(mine))
	require.True(t, hub.Join(other))

	status := models.StatusActive
	hub.NotifyEntitlement(&models.User{ID: 1, IsVIPMember: true, SubscriptionStatus: &status})

	select {
	case msg := <-mine.Send:
		var ev map[string]any
		require.NoError(t, json.Unmarshal(msg, &ev))
		assert.Equal(t, true, ev["isVipMember"])
		assert.Equal(t, "active", ev["subscriptionStatus"])
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}

	select {
	case <-other.Send:
		t.Fatal("message delivered to the wrong user")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_LeaveClosesSend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(logging.Discard())
	go hub.Run(ctx)

	c := &Client{Hub: hub, Send: make(chan []byte, 1), UserID: 5}
	require.True(t, hub.Join(c))
	hub.Leave(c)

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel not closed")
	}
}

func TestHub_StopsWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(logging.Discard())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	c := &Client{Hub: hub, Send: make(chan []byte, 1), UserID: 5}
	require.True(t, hub.Join(c))
	cancel()
	<-stopped

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, hub.Join(&Client{Send: make(chan []byte)}))
	hub.Leave(c)
	hub.NotifyEntitlement(&models.User{ID: 5})
}
