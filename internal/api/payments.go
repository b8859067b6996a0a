package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"shipline/internal/models"
)

// GetPayment fetches the payment record behind a shipment.
func (c *Client) GetPayment(ctx context.Context, paymentID int64) (*models.Payment, error) {
	var p models.Payment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/payment/view/%d", paymentID), nil, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrderDetail fetches the order items behind a payment, localized to the
// given language.
func (c *Client) GetOrderDetail(ctx context.Context, orderID int64, language string) (*models.OrderDetail, error) {
	params := url.Values{}
	params.Set("language", language)
	var d models.OrderDetail
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/orders/detail-item/%d", orderID), params, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
