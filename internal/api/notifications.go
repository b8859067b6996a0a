package api

import (
	"context"
	"fmt"
	"net/http"

	"shipline/internal/models"
)

// ListNotifications fetches all stored notifications for a user.
func (c *Client) ListNotifications(ctx context.Context, userID int64) (*models.NotificationList, error) {
	if userID == 0 {
		return nil, ErrUserIDRequired
	}
	var list models.NotificationList
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/notifications/user/%d", userID), nil, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// MarkNotificationRead marks one notification read.
func (c *Client) MarkNotificationRead(ctx context.Context, notificationID string) error {
	return c.do(ctx, http.MethodPut, "/notifications/read/"+notificationID, nil, nil, nil)
}

// MarkAllNotificationsRead marks every notification of the user read.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID int64) error {
	if userID == 0 {
		return ErrUserIDRequired
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/notifications/read/all/%d", userID), nil, nil, nil)
}
