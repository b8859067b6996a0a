package models

import "time"

// Shipment is one delivery order as returned by the shipment endpoints.
type Shipment struct {
	ShipmentID   int64     `json:"shipmentId"`
	CustomerID   int64     `json:"customerId"`
	ShipperID    int64     `json:"shipperId"`
	PaymentID    int64     `json:"paymentId"`
	Status       string    `json:"status"`
	Address      string    `json:"address"`
	CustomerName string    `json:"customerName"`
	NameShipper  string    `json:"nameShipper"`
	DateCreated  time.Time `json:"dateCreated"`
}

// ShipmentPage is the paginated list envelope for shipment queries.
type ShipmentPage struct {
	ListShipment []Shipment `json:"listShipment"`
	Total        int        `json:"total"`
	TotalPage    int        `json:"totalPage"`
}

// MapDirection carries the routing polyline for a shipment.
type MapDirection struct {
	ShipmentID int64      `json:"shipmentId"`
	Origin     GeoPoint   `json:"origin"`
	Target     GeoPoint   `json:"target"`
	Points     []GeoPoint `json:"points"`
}

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
