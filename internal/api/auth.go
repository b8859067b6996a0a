package api

import (
	"context"
	"errors"
	"net/http"

	"shipline/internal/models"
)

var ErrMissingCredentials = errors.New("username and password are required")

// Authenticate exchanges credentials for a token pair. The login path is on
// the public allow-list, so no bearer header is attached.
func (c *Client) Authenticate(ctx context.Context, username, password string) (models.TokenPair, error) {
	if username == "" || password == "" {
		return models.TokenPair{}, ErrMissingCredentials
	}
	body := map[string]string{
		"userName": username,
		"password": password,
	}
	var pair models.TokenPair
	if err := c.do(ctx, http.MethodPost, "/v1/auth/authenticate", nil, body, &pair); err != nil {
		return models.TokenPair{}, err
	}
	if pair.AccessToken == "" {
		return models.TokenPair{}, &APIError{StatusCode: http.StatusOK, Message: "authenticate response missing access token"}
	}
	return pair, nil
}
