package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"shipline/internal/domain"
	"shipline/internal/models"
)

var ErrUserIDRequired = errors.New("user id is required for this shipment query")

// ShipmentQuery selects a page of shipments by status. WAITING pulls from
// the unassigned pool and ignores UserID; every other status lists the
// shipper's own shipments and requires UserID. Scoped forces the
// shipper-scoped list for WAITING too, the way the dashboard counts only
// the shipper's own work.
type ShipmentQuery struct {
	Page   int
	Limit  int
	Status string
	UserID int64
	Scoped bool
}

// ListShipments fetches one page of shipments for the query.
func (c *Client) ListShipments(ctx context.Context, q ShipmentQuery) (*models.ShipmentPage, error) {
	if !domain.IsValidStatus(q.Status) {
		return nil, fmt.Errorf("unknown shipment status %q", q.Status)
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	if q.Limit <= 0 {
		q.Limit = 5
	}
	params := url.Values{}
	params.Set("page", strconv.Itoa(q.Page))
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("status", q.Status)

	path := "/shipment/view/listByStatus"
	if q.Scoped || q.Status != domain.StatusWaiting {
		if q.UserID == 0 {
			return nil, ErrUserIDRequired
		}
		path = "/shipment/shipper/listShippment"
		params.Set("userId", strconv.FormatInt(q.UserID, 10))
	}

	var page models.ShipmentPage
	if err := c.do(ctx, http.MethodGet, path, params, nil, &page); err != nil {
		return nil, err
	}
	if page.TotalPage == 0 {
		page.TotalPage = 1
	}
	return &page, nil
}

// GetShipment fetches one shipment's detail, including the counterpart
// customer and current status.
func (c *Client) GetShipment(ctx context.Context, shipmentID int64) (*models.Shipment, error) {
	var s models.Shipment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/shipment/view/%d", shipmentID), nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// MapDirection fetches the delivery route for a shipment.
func (c *Client) MapDirection(ctx context.Context, shipmentID int64) (*models.MapDirection, error) {
	var d models.MapDirection
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/shipment/view/map_direction/%d", shipmentID), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

type activateRequest struct {
	UserID     int64 `json:"userId"`
	ShipmentID int64 `json:"shipmentId"`
}

// ActivateShipping claims a waiting shipment for the shipper and moves it to
// SHIPPING.
func (c *Client) ActivateShipping(ctx context.Context, userID, shipmentID int64) error {
	if userID == 0 {
		return ErrUserIDRequired
	}
	return c.do(ctx, http.MethodPost, "/shipment/activate/shipping", nil, activateRequest{userID, shipmentID}, nil)
}

// ActivateSuccess marks a shipment delivered.
func (c *Client) ActivateSuccess(ctx context.Context, userID, shipmentID int64) error {
	if userID == 0 {
		return ErrUserIDRequired
	}
	return c.do(ctx, http.MethodPost, "/shipment/activate/success", nil, activateRequest{userID, shipmentID}, nil)
}

// ActivateCancel cancels a shipment.
func (c *Client) ActivateCancel(ctx context.Context, userID, shipmentID int64) error {
	if userID == 0 {
		return ErrUserIDRequired
	}
	return c.do(ctx, http.MethodPost, "/shipment/activate/cancel", nil, activateRequest{userID, shipmentID}, nil)
}

// UpdateStatus is the generic fallback transition for statuses without a
// dedicated activate endpoint.
func (c *Client) UpdateStatus(ctx context.Context, shipmentID int64, status string) error {
	if !domain.IsValidStatus(status) {
		return fmt.Errorf("unknown shipment status %q", status)
	}
	body := map[string]string{"status": status}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/shipment/update-status/%d", shipmentID), nil, body, nil)
}
