package notify

import (
	"context"
	"log"
	"sync"

	"shipline/internal/api"
	"shipline/internal/models"
	"shipline/internal/socket"
)

// Feed is the notification screen's view of the stream: the REST-backed
// list, refreshed whenever a live event arrives, plus the unread counter the
// header badge renders.
type Feed struct {
	api    *api.Client
	hub    *socket.Hub
	userID int64

	mu            sync.Mutex
	notifications []models.Notification
	unread        int

	// onUpdate fires after every list refresh.
	onUpdate func()

	sub  *socket.Subscription
	done chan struct{}
	once sync.Once
}

// OpenFeed loads the stored notifications and attaches to the live stream.
// onUpdate (may be nil) fires after every refresh, including the initial
// load.
func OpenFeed(ctx context.Context, client *api.Client, hub *socket.Hub, userID int64, onUpdate func()) (*Feed, error) {
	f := &Feed{
		api:      client,
		hub:      hub,
		userID:   userID,
		onUpdate: onUpdate,
		done:     make(chan struct{}),
	}
	if err := f.Refresh(ctx); err != nil {
		return nil, err
	}
	sub, err := hub.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}
	f.sub = sub
	go f.watch()
	return f, nil
}

// Refresh re-reads the stored notification list and recomputes the unread
// count.
func (f *Feed) Refresh(ctx context.Context) error {
	list, err := f.api.ListNotifications(ctx, f.userID)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.notifications = list.Body.Notifications
	f.unread = list.Unread()
	f.mu.Unlock()
	if f.onUpdate != nil {
		f.onUpdate()
	}
	return nil
}

// watch refetches the list whenever a live notification lands, the same way
// the screens refetched on socket events instead of patching local state.
func (f *Feed) watch() {
	for {
		select {
		case _, ok := <-f.sub.Events:
			if !ok {
				return
			}
			if err := f.Refresh(context.Background()); err != nil {
				log.Printf("notify: refresh after socket event: %v", err)
			}
		case <-f.done:
			return
		}
	}
}

// Notifications returns a copy of the current list.
func (f *Feed) Notifications() []models.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Notification, len(f.notifications))
	copy(out, f.notifications)
	return out
}

// Unread returns the badge count.
func (f *Feed) Unread() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unread
}

// MarkRead marks one notification read and refreshes the list.
func (f *Feed) MarkRead(ctx context.Context, notificationID string) error {
	if err := f.api.MarkNotificationRead(ctx, notificationID); err != nil {
		return err
	}
	return f.Refresh(ctx)
}

// MarkAllRead marks everything read. A fully-read list is a no-op, no
// request issued.
func (f *Feed) MarkAllRead(ctx context.Context) error {
	if f.Unread() == 0 {
		return nil
	}
	if err := f.api.MarkAllNotificationsRead(ctx, f.userID); err != nil {
		return err
	}
	return f.Refresh(ctx)
}

// Close detaches the feed from the stream.
func (f *Feed) Close() {
	f.once.Do(func() {
		close(f.done)
		if f.sub != nil {
			f.sub.Close()
		}
	})
}
