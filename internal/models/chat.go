package models

// ChatMessage is one message in a shipment-scoped conversation. ClientKey is
// a client-generated idempotency key; the REST echo and the socket mirror of
// the same send both carry it, so receivers can merge the two delivery paths
// into a single visible entry.
type ChatMessage struct {
	ID          int64    `json:"id,omitempty"`
	SenderID    int64    `json:"senderId"`
	ReceiverID  int64    `json:"receiverId"`
	ShipmentID  int64    `json:"shipmentId"`
	Message     string   `json:"message"`
	MessageType string   `json:"messageType"`
	Attachments []string `json:"attachments"`
	ClientKey   string   `json:"clientKey,omitempty"`
	CreatedAt   Millis   `json:"createdAt,omitempty"`
	Time        Millis   `json:"time,omitempty"`
}

// Timestamp returns the message time, preferring createdAt and falling back
// to the socket-frame time field.
func (m *ChatMessage) Timestamp() Millis {
	if m.CreatedAt != 0 {
		return m.CreatedAt
	}
	return m.Time
}
