package socket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"shipline/config"
	"shipline/internal/domain"
	"shipline/internal/models"
)

// TokenReader is the slice of the session the hub needs: the persisted
// bearer token used in the dial URL and handshake.
type TokenReader interface {
	AccessToken() (string, error)
}

var ErrUserMismatch = errors.New("hub already bound to another user")

// Hub owns the process-wide socket connection and fans incoming frames out
// to subscribers. The transport is opened when the first subscriber arrives
// and closed when the last one leaves; every view of the stream (badge,
// popup, notification screen, chat) subscribes here instead of opening its
// own connection.
type Hub struct {
	cfg    config.SocketConfig
	tokens TokenReader

	mu     sync.Mutex
	userID int64
	conn   *Conn
	dedup  *Dedup
	subs   map[*Subscription]struct{}
	state  State
}

// Subscription is one consumer's view of the shared stream. Channels are
// buffered; a consumer that stops draining loses frames rather than stalling
// the pipeline.
type Subscription struct {
	hub *Hub

	Events   chan models.NotificationEvent
	Messages chan models.ChatMessage
	States   chan State

	once sync.Once
}

const subscriptionBuffer = 32

func NewHub(cfg config.SocketConfig, tokens TokenReader) *Hub {
	return &Hub{
		cfg:    cfg,
		tokens: tokens,
		dedup:  NewDedup(0),
		subs:   make(map[*Subscription]struct{}),
		state:  StateDisconnected,
	}
}

// Subscribe registers a consumer for the user's stream, dialing the
// transport if this is the first subscriber. A zero user id or a missing
// stored token means no connection is requested.
func (h *Hub) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	if userID == 0 {
		return nil, ErrNoUser
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conn != nil && h.userID != userID {
		return nil, ErrUserMismatch
	}
	if h.conn == nil {
		token, err := h.tokens.AccessToken()
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, ErrNoToken
		}
		conn, err := Dial(ctx, h.cfg, userID, token, h.handleFrame, h.handleState)
		if err != nil {
			return nil, err
		}
		h.conn = conn
		h.userID = userID
		h.dedup = NewDedup(0)
	}
	sub := &Subscription{
		hub:      h,
		Events:   make(chan models.NotificationEvent, subscriptionBuffer),
		Messages: make(chan models.ChatMessage, subscriptionBuffer),
		States:   make(chan State, subscriptionBuffer),
	}
	h.subs[sub] = struct{}{}
	return sub, nil
}

// Close removes the subscription; the last one out closes the transport.
func (s *Subscription) Close() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs, s)
		last := len(h.subs) == 0
		conn := h.conn
		if last {
			h.conn = nil
			h.userID = 0
		}
		h.mu.Unlock()
		if last && conn != nil {
			conn.Close()
		}
	})
}

// Send mirrors an outgoing payload over the shared transport.
func (h *Hub) Send(payload any) error {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()
	if conn == nil {
		return ErrConnClosed
	}
	return conn.Send(payload)
}

// State reports the transport state last observed.
func (h *Hub) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// handleFrame classifies one inbound frame and fans it out. Malformed JSON
// is logged and dropped without touching the connection. Notification frames
// pass the dedup before any subscriber sees them, so dedup happens once for
// the whole process instead of once per screen.
func (h *Hub) handleFrame(raw []byte) {
	frame, err := models.DecodeFrame(raw)
	if err != nil {
		log.Printf("socket: discarding malformed frame: %v", err)
		return
	}
	switch {
	case frame.Type == domain.FrameTypeNotification:
		var ev models.NotificationEvent
		if err := json.Unmarshal(frame.Raw, &ev); err != nil {
			log.Printf("socket: discarding malformed notification: %v", err)
			return
		}
		if !h.dedup.Accept(ev.Time) {
			return
		}
		for _, sub := range h.snapshot() {
			select {
			case sub.Events <- ev:
			default:
			}
		}
	case frame.ShipmentID != 0 && (frame.Type == "" || frame.Type == domain.FrameTypeMessage):
		// Chat frames are recognized by their shipmentId; the type tag is
		// optional on this path.
		var msg models.ChatMessage
		if err := json.Unmarshal(frame.Raw, &msg); err != nil {
			log.Printf("socket: discarding malformed chat frame: %v", err)
			return
		}
		for _, sub := range h.snapshot() {
			select {
			case sub.Messages <- msg:
			default:
			}
		}
	}
}

func (h *Hub) handleState(s State) {
	h.mu.Lock()
	h.state = s
	h.mu.Unlock()
	for _, sub := range h.snapshot() {
		select {
		case sub.States <- s:
		default:
		}
	}
}

func (h *Hub) snapshot() []*Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := make([]*Subscription, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	return subs
}
