package models

// TokenPair is the credential response from the authenticate and refresh
// endpoints. RefreshToken may be empty on refresh when the server keeps the
// old one valid.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}
