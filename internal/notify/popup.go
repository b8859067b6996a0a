package notify

import (
	"context"
	"sync"

	"shipline/internal/models"
	"shipline/internal/socket"
)

// Popup is the home screen's modal projection: it holds the most recent live
// event until the user dismisses it. It shares the hub transport with every
// other view instead of opening its own connection.
type Popup struct {
	mu      sync.Mutex
	current *models.NotificationEvent

	// onShow fires when a new event replaces the modal content.
	onShow func(models.NotificationEvent)

	sub  *socket.Subscription
	done chan struct{}
	once sync.Once
}

// OpenPopup attaches the popup to the shared stream. onShow (may be nil)
// fires for every event that replaces the modal content.
func OpenPopup(ctx context.Context, hub *socket.Hub, userID int64, onShow func(models.NotificationEvent)) (*Popup, error) {
	sub, err := hub.Subscribe(ctx, userID)
	if err != nil {
		return nil, err
	}
	p := &Popup{
		onShow: onShow,
		sub:    sub,
		done:   make(chan struct{}),
	}
	go p.watch()
	return p, nil
}

func (p *Popup) watch() {
	for {
		select {
		case ev, ok := <-p.sub.Events:
			if !ok {
				return
			}
			p.mu.Lock()
			p.current = &ev
			p.mu.Unlock()
			if p.onShow != nil {
				p.onShow(ev)
			}
		case <-p.done:
			return
		}
	}
}

// Current returns the event the modal should display, if any.
func (p *Popup) Current() (models.NotificationEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return models.NotificationEvent{}, false
	}
	return *p.current, true
}

// Dismiss clears the modal.
func (p *Popup) Dismiss() {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
}

// Close detaches the popup from the stream.
func (p *Popup) Close() {
	p.once.Do(func() {
		close(p.done)
		p.sub.Close()
	})
}
