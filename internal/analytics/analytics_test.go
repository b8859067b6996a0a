package analytics_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipline/config"
	"shipline/internal/analytics"
	"shipline/internal/api"
	"shipline/internal/domain"
	"shipline/internal/models"
	"shipline/internal/session"
	"shipline/internal/stubserver"
)

const testUserID = 42

func newService(t *testing.T) (*stubserver.Server, *analytics.Service) {
	t.Helper()
	srv := stubserver.New()
	t.Cleanup(srv.Close)
	srv.AddUser("driver", "pw", "SHIPPER", testUserID)

	store, err := session.Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	mgr, err := session.NewManager(store)
	require.NoError(t, err)

	cfg := config.APIConfig{BaseURL: srv.BaseURL(), RequestTimeout: 5 * time.Second}
	client := api.NewClient(&cfg, mgr)
	pair, err := client.Authenticate(context.Background(), "driver", "pw")
	require.NoError(t, err)
	_, err = mgr.Login(pair)
	require.NoError(t, err)
	return srv, analytics.New(client, testUserID)
}

func day(d int) time.Time {
	return time.Date(2026, time.March, d, 10, 0, 0, 0, time.UTC)
}

func TestStatusShares(t *testing.T) {
	srv, svc := newService(t)
	srv.AddShipment(models.Shipment{ShipmentID: 1, ShipperID: testUserID, Status: domain.StatusShipping}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 2, ShipperID: testUserID, Status: domain.StatusSuccess}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 3, ShipperID: testUserID, Status: domain.StatusSuccess}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 4, ShipperID: testUserID, Status: domain.StatusCancelled}, nil)
	// Another shipper's work does not skew the chart.
	srv.AddShipment(models.Shipment{ShipmentID: 5, ShipperID: 99, Status: domain.StatusSuccess}, nil)

	shares, err := svc.StatusShares(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 25.0, shares[domain.StatusShipping], 0.01)
	assert.InDelta(t, 50.0, shares[domain.StatusSuccess], 0.01)
	assert.InDelta(t, 25.0, shares[domain.StatusCancelled], 0.01)
	assert.InDelta(t, 0.0, shares[domain.StatusWaiting], 0.01)
}

func TestStatusSharesIgnoresUnassignedPool(t *testing.T) {
	srv, svc := newService(t)
	// Waiting shipments belong to the shared pool, not to this shipper.
	srv.AddShipment(models.Shipment{ShipmentID: 1, Status: domain.StatusWaiting}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 2, Status: domain.StatusWaiting}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 3, Status: domain.StatusWaiting}, nil)
	srv.AddShipment(models.Shipment{ShipmentID: 4, ShipperID: testUserID, Status: domain.StatusShipping}, nil)

	shares, err := svc.StatusShares(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 0.0, shares[domain.StatusWaiting], 0.01,
		"pool shipments do not count toward the shipper's chart")
	assert.InDelta(t, 100.0, shares[domain.StatusShipping], 0.01)
}

func TestStatusSharesEmpty(t *testing.T) {
	_, svc := newService(t)
	shares, err := svc.StatusShares(context.Background())
	require.NoError(t, err)
	for status, share := range shares {
		assert.Zero(t, share, status)
	}
}

func TestMonthSeries(t *testing.T) {
	srv, svc := newService(t)
	srv.AddShipment(models.Shipment{
		ShipmentID: 1, ShipperID: testUserID, PaymentID: 101,
		Status: domain.StatusSuccess, DateCreated: day(3),
	}, &models.Payment{PaymentID: 101, Amount: 150000})
	srv.AddShipment(models.Shipment{
		ShipmentID: 2, ShipperID: testUserID, PaymentID: 102,
		Status: domain.StatusSuccess, DateCreated: day(3),
	}, &models.Payment{PaymentID: 102, Amount: 90000})
	srv.AddShipment(models.Shipment{
		ShipmentID: 3, ShipperID: testUserID, PaymentID: 103,
		Status: domain.StatusSuccess, DateCreated: day(20),
	}, &models.Payment{PaymentID: 103, Amount: 40000})
	// Wrong month, excluded.
	srv.AddShipment(models.Shipment{
		ShipmentID: 4, ShipperID: testUserID, PaymentID: 104,
		Status: domain.StatusSuccess, DateCreated: time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC),
	}, &models.Payment{PaymentID: 104, Amount: 99999})

	stats, err := svc.MonthSeries(context.Background(), 2026, time.March)
	require.NoError(t, err)
	require.Len(t, stats, 31)

	assert.Equal(t, 2, stats[2].Orders)
	assert.InDelta(t, 240000, stats[2].Revenue, 0.01)
	assert.Equal(t, 1, stats[19].Orders)
	assert.InDelta(t, 40000, stats[19].Revenue, 0.01)
	assert.Zero(t, stats[0].Orders)
}
