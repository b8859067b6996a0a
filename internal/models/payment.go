package models

import "time"

// Payment is the payment record attached to a shipment.
type Payment struct {
	PaymentID   int64     `json:"paymentId"`
	OrderID     int64     `json:"orderId"`
	Amount      float64   `json:"amount"`
	Method      string    `json:"method"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"dateCreated"`
}

// OrderDetail lists the purchased items behind a payment. Item names are
// localized server-side by the language query parameter.
type OrderDetail struct {
	OrderID int64       `json:"orderId"`
	Items   []OrderItem `json:"items"`
	Total   float64     `json:"total"`
}

type OrderItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}
