package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Millis is an epoch-milliseconds timestamp. The backend is inconsistent
// about its wire form (sometimes a JSON number, sometimes a quoted string),
// so it normalizes both at decode time. Everything downstream, including
// notification dedup, works on the canonical int64 value.
type Millis int64

func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}
	// Accept fractional millis from JS Date.now() arithmetic.
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*m = Millis(int64(f))
	return nil
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return strconv.AppendInt(nil, int64(m), 10), nil
}

func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// NowMillis returns the current time as a Millis value.
func NowMillis() Millis {
	return Millis(time.Now().UnixMilli())
}

// NotificationEvent is a server-pushed NEW_NOTIFICATION socket frame.
type NotificationEvent struct {
	UserID     int64  `json:"userId"`
	ShipmentID int64  `json:"shipmentId"`
	Message    string `json:"message"`
	Time       Millis `json:"time"`
}

// Notification is a stored notification as returned by the REST listing.
type Notification struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	Time       Millis `json:"time"`
	IsRead     bool   `json:"isRead"`
	ShipmentID int64  `json:"shipmentId"`
}

// NotificationList is the REST envelope for a user's notifications.
type NotificationList struct {
	Body struct {
		Notifications []Notification `json:"notifications"`
	} `json:"body"`
}

// Unread counts the notifications not yet marked read.
func (l *NotificationList) Unread() int {
	n := 0
	for _, noti := range l.Body.Notifications {
		if !noti.IsRead {
			n++
		}
	}
	return n
}

// Frame is a decoded server-to-client socket frame. Notification frames are
// tagged with a type; chat frames carry a shipmentId and no type.
type Frame struct {
	Type       string          `json:"type"`
	ShipmentID int64           `json:"shipmentId"`
	Raw        json.RawMessage `json:"-"`
}

// DecodeFrame parses a raw socket frame. A malformed frame returns an error
// and must be discarded by the caller without tearing down the connection.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	f.Raw = json.RawMessage(append([]byte(nil), data...))
	return &f, nil
}
