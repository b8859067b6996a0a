package domain

// Shipment lifecycle statuses as the backend reports them.
const (
	StatusWaiting   = "WAITING"
	StatusShipping  = "SHIPPING"
	StatusSuccess   = "SUCCESS"
	StatusCancelled = "CANCELLED"
)

// Statuses lists every shipment status in lifecycle order.
var Statuses = []string{StatusWaiting, StatusShipping, StatusSuccess, StatusCancelled}

// IsValidStatus reports whether s is one of the known shipment statuses.
func IsValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Socket frame types.
const (
	FrameTypePing         = "PING"
	FrameTypeNotification = "NEW_NOTIFICATION"
	FrameTypeMessage      = "NEW_MESSAGE"
)

// Supported UI languages. Vietnamese is the first-run default.
const (
	LanguageVN = "VN"
	LanguageEN = "EN"

	DefaultLanguage = LanguageVN
)

// RoleShipper must appear in the token roles for this client to proceed past login.
const RoleShipper = "SHIPPER"

const MessageTypeText = "text"
