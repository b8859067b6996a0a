package socket_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipline/config"
	"shipline/internal/api"
	"shipline/internal/models"
	"shipline/internal/session"
	"shipline/internal/socket"
	"shipline/internal/stubserver"
)

const testUserID = 42

func newTestEnv(t *testing.T) (*stubserver.Server, *session.Manager, config.SocketConfig) {
	t.Helper()
	srv := stubserver.New()
	t.Cleanup(srv.Close)
	srv.AddUser("driver", "pw", "SHIPPER", testUserID)

	store, err := session.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	mgr, err := session.NewManager(store)
	require.NoError(t, err)

	apiCfg := config.APIConfig{BaseURL: srv.BaseURL(), RequestTimeout: 5 * time.Second}
	client := api.NewClient(&apiCfg, mgr)
	pair, err := client.Authenticate(context.Background(), "driver", "pw")
	require.NoError(t, err)
	_, err = mgr.Login(pair)
	require.NoError(t, err)

	sockCfg := config.SocketConfig{
		URL:               srv.SocketURL(),
		HeartbeatInterval: 50 * time.Millisecond,
		WriteWait:         time.Second,
		PongWait:          5 * time.Second,
		ReconnectBase:     20 * time.Millisecond,
		ReconnectMax:      100 * time.Millisecond,
		MaxReconnects:     5,
	}
	return srv, mgr, sockCfg
}

func notificationFrame(timeField string) []byte {
	return []byte(fmt.Sprintf(`{"type":"NEW_NOTIFICATION","userId":%d,"shipmentId":9,"message":"x","time":%s}`, testUserID, timeField))
}

func TestSubscribeRequiresUser(t *testing.T) {
	_, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	_, err := hub.Subscribe(context.Background(), 0)
	assert.ErrorIs(t, err, socket.ErrNoUser)
}

func TestSubscribeRequiresToken(t *testing.T) {
	_, mgr, cfg := newTestEnv(t)
	require.NoError(t, mgr.Logout())
	hub := socket.NewHub(cfg, mgr)
	_, err := hub.Subscribe(context.Background(), testUserID)
	assert.ErrorIs(t, err, socket.ErrNoToken)
}

func TestFanOutWithDedup(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)

	a, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer a.Close()
	b, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer b.Close()

	require.Eventually(t, func() bool { return srv.ConnCount() == 1 },
		2*time.Second, 10*time.Millisecond, "both subscribers share one transport")

	srv.Push(testUserID, notificationFrame(`"100"`))
	for _, sub := range []*socket.Subscription{a, b} {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, models.Millis(100), ev.Time)
			assert.Equal(t, int64(9), ev.ShipmentID)
		case <-time.After(2 * time.Second):
			t.Fatal("subscriber did not receive the event")
		}
	}

	// Same logical event, numeric time this round: deduped before fan-out.
	srv.Push(testUserID, notificationFrame(`100`))
	select {
	case ev := <-a.Events:
		t.Fatalf("duplicate event delivered: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestMalformedFrameIsDiscarded(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	sub, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Push(testUserID, []byte(`{this is not json`))
	srv.Push(testUserID, notificationFrame(`7`))
	select {
	case ev := <-sub.Events:
		assert.Equal(t, models.Millis(7), ev.Time, "connection survives a malformed frame")
	case <-time.After(2 * time.Second):
		t.Fatal("event after malformed frame never arrived")
	}
}

func TestChatFramesRoutedByShipmentID(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	sub, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Push(testUserID, []byte(`{"senderId":7,"receiverId":42,"shipmentId":9,"message":"hello","time":123}`))
	select {
	case msg := <-sub.Messages:
		assert.Equal(t, "hello", msg.Message)
		assert.Equal(t, int64(9), msg.ShipmentID)
	case <-time.After(2 * time.Second):
		t.Fatal("chat frame not delivered")
	}
}

func TestLastUnsubscribeClosesTransport(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)

	a, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	b, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	a.Close()
	a.Close() // double close is safe
	assert.Equal(t, 1, hub.SubscriberCount())
	assert.Equal(t, 1, srv.ConnCount(), "transport stays up while a subscriber remains")

	b.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 0 },
		2*time.Second, 10*time.Millisecond, "transport closes with the last subscriber")
}

func TestHeartbeat(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	sub, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer sub.Close()

	require.Eventually(t, func() bool { return srv.PingCount() >= 2 },
		2*time.Second, 10*time.Millisecond, "keep-alive frames flow while the socket is open")
}

func TestReconnectAfterUncleanClose(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	sub, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.DropConnections()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 },
		3*time.Second, 10*time.Millisecond, "the hub redials after network loss")

	// Events flow again on the fresh connection.
	srv.Push(testUserID, notificationFrame(`555`))
	select {
	case ev := <-sub.Events:
		assert.Equal(t, models.Millis(555), ev.Time)
	case <-time.After(2 * time.Second):
		t.Fatal("no event after reconnect")
	}
}

func TestSubscribeOtherUserRejected(t *testing.T) {
	srv, mgr, cfg := newTestEnv(t)
	hub := socket.NewHub(cfg, mgr)
	sub, err := hub.Subscribe(context.Background(), testUserID)
	require.NoError(t, err)
	defer sub.Close()
	require.Eventually(t, func() bool { return srv.ConnCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = hub.Subscribe(context.Background(), 7)
	assert.ErrorIs(t, err, socket.ErrUserMismatch)
}
