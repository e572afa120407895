package ws

import (
	"context"
	"testing"
	"time"

	"roadassist/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBridge(t *testing.T, ctx context.Context, addr string) *Hub {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	hub := NewHub()
	require.NoError(t, NewRedisBridge(rdb, "relay-test", hub).Start(ctx))
	return hub
}

func TestRedisBridge_DeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startBridge(t, ctx, mr.Addr())
	b := startBridge(t, ctx, mr.Addr())

	local := NewClient(4)
	a.Register(local)
	a.Join(local, "u1", domain.RoleUser)
	remote := NewClient(4)
	b.Register(remote)
	b.Join(remote, "u1", domain.RoleUser)

	assert.Equal(t, 1, a.EmitTo("u1", EventNewMessage, map[string]string{"message": "hi"}))

	select {
	case raw := <-remote.Send:
		assert.Contains(t, string(raw), `"event":"new_message"`)
	case <-time.After(2 * time.Second):
		t.Fatal("frame did not cross the bridge")
	}

	<-local.Send
	// The origin instance must not deliver its own frame a second time.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, local.Send, 0)
}

func TestRedisBridge_BroadcastReachesOtherInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := startBridge(t, ctx, mr.Addr())
	b := startBridge(t, ctx, mr.Addr())

	watcher := NewClient(4)
	b.Register(watcher)

	a.Broadcast(EventProviderLocationUpdate, map[string]float64{"latitude": 1}, nil)

	select {
	case raw := <-watcher.Send:
		assert.Contains(t, string(raw), EventProviderLocationUpdate)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast did not cross the bridge")
	}
}
