package api_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipline/config"
	"shipline/internal/api"
	"shipline/internal/domain"
	"shipline/internal/models"
	"shipline/internal/session"
	"shipline/internal/stubserver"
)

const testUserID = 42

func newTestClient(t *testing.T) (*stubserver.Server, *api.Client, *session.Manager) {
	t.Helper()
	srv := stubserver.New()
	t.Cleanup(srv.Close)
	srv.AddUser("driver", "pw", "SHIPPER", testUserID)

	store, err := session.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	mgr, err := session.NewManager(store)
	require.NoError(t, err)

	cfg := config.APIConfig{
		BaseURL:        srv.BaseURL(),
		RequestTimeout: 5 * time.Second,
		PublicPaths:    []string{"/v1/auth/authenticate"},
	}
	return srv, api.NewClient(&cfg, mgr), mgr
}

func login(t *testing.T, client *api.Client, mgr *session.Manager) string {
	t.Helper()
	pair, err := client.Authenticate(context.Background(), "driver", "pw")
	require.NoError(t, err)
	id, err := mgr.Login(pair)
	require.NoError(t, err)
	require.Equal(t, int64(testUserID), id)
	return pair.AccessToken
}

func TestAuthenticateRejectsBadPassword(t *testing.T) {
	_, client, _ := newTestClient(t)
	_, err := client.Authenticate(context.Background(), "driver", "wrong")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "wrong username or password", apiErr.Message)
}

func TestAuthenticateRejectsEmptyCredentials(t *testing.T) {
	_, client, _ := newTestClient(t)
	_, err := client.Authenticate(context.Background(), "", "pw")
	assert.ErrorIs(t, err, api.ErrMissingCredentials)
}

func TestListShipmentsWaitingUsesSharedPool(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 1, Status: domain.StatusWaiting, Address: "12 Hang Bac"}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 2, Status: domain.StatusWaiting}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 3, Status: domain.StatusShipping, ShipperID: testUserID}, nil)

	page, err := client.ListShipments(context.Background(), api.ShipmentQuery{Status: domain.StatusWaiting})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Len(t, page.ListShipment, 2)
}

func TestListShipmentsScopedRequiresUserID(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 3, Status: domain.StatusShipping, ShipperID: testUserID}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 4, Status: domain.StatusShipping, ShipperID: 99}, nil)

	_, err := client.ListShipments(context.Background(), api.ShipmentQuery{Status: domain.StatusShipping})
	assert.ErrorIs(t, err, api.ErrUserIDRequired)

	page, err := client.ListShipments(context.Background(), api.ShipmentQuery{Status: domain.StatusShipping, UserID: testUserID})
	require.NoError(t, err)
	require.Len(t, page.ListShipment, 1)
	assert.Equal(t, int64(3), page.ListShipment[0].ShipmentID)
}

func TestListShipmentsScopedWaiting(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 1, Status: domain.StatusWaiting}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 2, Status: domain.StatusWaiting}, nil)

	// Scoped WAITING counts only the shipper's own shipments, not the pool.
	page, err := client.ListShipments(context.Background(), api.ShipmentQuery{
		Status: domain.StatusWaiting, UserID: testUserID, Scoped: true,
	})
	require.NoError(t, err)
	assert.Zero(t, page.Total)

	_, err = client.ListShipments(context.Background(), api.ShipmentQuery{
		Status: domain.StatusWaiting, Scoped: true,
	})
	assert.ErrorIs(t, err, api.ErrUserIDRequired)
}

func TestActivateShippingAssignsShipper(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 5, Status: domain.StatusWaiting}, nil)

	require.NoError(t, client.ActivateShipping(context.Background(), testUserID, 5))
	sh, err := client.GetShipment(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusShipping, sh.Status)
	assert.Equal(t, int64(testUserID), sh.ShipperID)

	require.NoError(t, client.ActivateSuccess(context.Background(), testUserID, 5))
	sh, err = client.GetShipment(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, sh.Status)
}

func TestMapDirection(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 6, Status: domain.StatusShipping, ShipperID: testUserID}, nil)

	dir, err := client.MapDirection(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), dir.ShipmentID)
	assert.NotEmpty(t, dir.Points)

	_, err = client.MapDirection(context.Background(), 404)
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 404, apiErr.StatusCode)
}

func TestRevokedTokenRefreshesOnce(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	access := login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 7, Status: domain.StatusWaiting}, nil)
	srv.Revoke(access)

	sh, err := client.GetShipment(context.Background(), 7)
	require.NoError(t, err, "a revoked token refreshes transparently")
	assert.Equal(t, int64(7), sh.ShipmentID)
	assert.Equal(t, 1, srv.RefreshCalls())

	// The new token is persisted: a fresh call needs no second refresh.
	_, err = client.GetShipment(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, srv.RefreshCalls())
}

func TestConcurrentGonesShareOneRefresh(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	access := login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 8, Status: domain.StatusWaiting}, nil)
	srv.Revoke(access)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetShipment(context.Background(), 8)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "caller %d", i)
	}
	assert.LessOrEqual(t, srv.RefreshCalls(), 2,
		"concurrent expired calls piggyback on an in-flight refresh")
}

func TestRefreshFailureRejectsQueuedCallers(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	access := login(t, client, mgr)
	srv.AddShipment(models.Shipment{ShipmentID: 9, Status: domain.StatusWaiting}, nil)
	srv.Revoke(access)
	srv.SetFailRefresh(true)

	const callers = 4
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.GetShipment(context.Background(), 9)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.Error(t, err, "caller %d", i)
	}
}

func TestNotificationReadState(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)
	srv.AddNotification(testUserID, models.Notification{ID: "n1", Message: "picked up", Time: 100})
	srv.AddNotification(testUserID, models.Notification{ID: "n2", Message: "delivered", Time: 200})

	list, err := client.ListNotifications(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Unread())

	require.NoError(t, client.MarkNotificationRead(context.Background(), "n1"))
	list, err = client.ListNotifications(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 1, list.Unread())

	require.NoError(t, client.MarkAllNotificationsRead(context.Background(), testUserID))
	list, err = client.ListNotifications(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, 0, list.Unread())
}

func TestSendChatMessageKeepsClientKey(t *testing.T) {
	srv, client, mgr := newTestClient(t)
	login(t, client, mgr)

	sent, err := client.SendChatMessage(context.Background(), models.ChatMessage{
		SenderID:    testUserID,
		ReceiverID:  7,
		ShipmentID:  11,
		Message:     "on my way",
		MessageType: domain.MessageTypeText,
		ClientKey:   "key-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "key-1", sent.ClientKey)
	assert.NotZero(t, sent.CreatedAt)

	history, err := client.ChatMessages(context.Background(), 11)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "on my way", history[0].Message)
	assert.Equal(t, 1, srv.SendCalls())
}
