package api

import (
	"context"
	"fmt"
	"net/http"

	"shipline/internal/models"
)

// ChatMessages fetches the conversation history for a shipment, oldest
// first.
func (c *Client) ChatMessages(ctx context.Context, shipmentID int64) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/chat/messages/shipment/%d", shipmentID), nil, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendChatMessage persists a message server-side and returns the stored
// copy, id and createdAt filled in.
func (c *Client) SendChatMessage(ctx context.Context, msg models.ChatMessage) (*models.ChatMessage, error) {
	var stored models.ChatMessage
	if err := c.do(ctx, http.MethodPost, "/chat/send", nil, msg, &stored); err != nil {
		return nil, err
	}
	// The server may not echo the client key; keep it so mirror dedup works.
	if stored.ClientKey == "" {
		stored.ClientKey = msg.ClientKey
	}
	return &stored, nil
}
