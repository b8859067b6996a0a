package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"shipline/internal/api"
	"shipline/internal/domain"
	"shipline/internal/models"
	"shipline/internal/socket"
)

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrNoCounterpart = errors.New("counterpart user not resolved")
	ErrChatDisabled  = errors.New("chat is only available while the shipment is SHIPPING")
)

// Options wires a Session to its collaborators.
type Options struct {
	API    *api.Client
	Hub    *socket.Hub
	UserID int64
	// Greeting is persisted as the first message of an empty conversation.
	Greeting string
	// OnAppend fires after every visible append (history load excluded);
	// the UI uses it to scroll to the latest entry. May be nil.
	OnAppend func(models.ChatMessage)
}

// Session manages one shipment-scoped conversation: history, the seeded
// system greeting, outgoing sends, and the live mirror over the shared
// socket hub.
type Session struct {
	opts       Options
	shipmentID int64

	mu         sync.Mutex
	messages   []models.ChatMessage
	seenKeys   map[string]struct{}
	customerID int64
	status     string

	sub  *socket.Subscription
	done chan struct{}
	once sync.Once
}

// Open runs the fixed initialization order: resolve the shipment (counterpart
// id and status), load history, seed the greeting when history is empty, and
// only then attach to the live stream.
func Open(ctx context.Context, opts Options, shipmentID int64) (*Session, error) {
	s := &Session{
		opts:       opts,
		shipmentID: shipmentID,
		seenKeys:   make(map[string]struct{}),
		done:       make(chan struct{}),
	}

	shipment, err := opts.API.GetShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	s.customerID = shipment.CustomerID
	s.status = shipment.Status

	history, err := opts.API.ChatMessages(ctx, shipmentID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		seeded, err := s.seedGreeting(ctx)
		if err != nil {
			return nil, err
		}
		history = []models.ChatMessage{*seeded}
	}
	s.mu.Lock()
	for _, m := range history {
		s.remember(m)
		s.messages = append(s.messages, m)
	}
	s.mu.Unlock()

	sub, err := opts.Hub.Subscribe(ctx, opts.UserID)
	if err != nil {
		return nil, err
	}
	s.sub = sub
	go s.receive()
	return s, nil
}

// seedGreeting persists the system "order received" message so the customer
// sees it even before the shipper types anything.
func (s *Session) seedGreeting(ctx context.Context) (*models.ChatMessage, error) {
	msg := models.ChatMessage{
		SenderID:    s.opts.UserID,
		ReceiverID:  s.customerID,
		ShipmentID:  s.shipmentID,
		Message:     s.opts.Greeting,
		MessageType: domain.MessageTypeText,
		Attachments: []string{},
		ClientKey:   uuid.NewString(),
	}
	return s.opts.API.SendChatMessage(ctx, msg)
}

// CanSend reports whether the shipment status allows messaging.
func (s *Session) CanSend() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status == domain.StatusShipping && s.customerID != 0
}

// SetStatus updates the cached shipment status (the detail screen refetches
// it after a transition).
func (s *Session) SetStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// Send validates, persists the message via REST, appends the stored echo,
// and mirrors it over the socket so the counterpart sees it without
// polling. The send is rejected before any network call when the draft is
// blank, the counterpart is unresolved, or the shipment is not SHIPPING.
func (s *Session) Send(ctx context.Context, text string) (*models.ChatMessage, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	s.mu.Lock()
	customerID, status := s.customerID, s.status
	s.mu.Unlock()
	if customerID == 0 {
		return nil, ErrNoCounterpart
	}
	if status != domain.StatusShipping {
		return nil, ErrChatDisabled
	}

	msg := models.ChatMessage{
		SenderID:    s.opts.UserID,
		ReceiverID:  customerID,
		ShipmentID:  s.shipmentID,
		Message:     text,
		MessageType: domain.MessageTypeText,
		Attachments: []string{},
		ClientKey:   uuid.NewString(),
	}
	stored, err := s.opts.API.SendChatMessage(ctx, msg)
	if err != nil {
		return nil, err
	}
	s.append(*stored)
	if err := s.opts.Hub.Send(stored); err != nil {
		// The REST copy is already persisted; the mirror is best effort.
		log.Printf("chat: socket mirror: %v", err)
	}
	return stored, nil
}

// receive drains the hub subscription, keeping only frames for this
// conversation.
func (s *Session) receive() {
	for {
		select {
		case msg, ok := <-s.sub.Messages:
			if !ok {
				return
			}
			if msg.ShipmentID != s.shipmentID {
				continue
			}
			if msg.CreatedAt == 0 && msg.Time != 0 {
				msg.CreatedAt = msg.Time
			}
			if msg.CreatedAt == 0 {
				msg.CreatedAt = models.NowMillis()
			}
			s.append(msg)
		case <-s.done:
			return
		}
	}
}

// append adds a message at most once per client key. The sender's own
// message arrives twice, once as the REST echo and once as the mirrored
// socket frame; the key collapses them into one visible entry.
func (s *Session) append(msg models.ChatMessage) {
	s.mu.Lock()
	if msg.ClientKey != "" {
		if _, dup := s.seenKeys[msg.ClientKey]; dup {
			s.mu.Unlock()
			return
		}
	}
	s.remember(msg)
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	if s.opts.OnAppend != nil {
		s.opts.OnAppend(msg)
	}
}

func (s *Session) remember(msg models.ChatMessage) {
	if msg.ClientKey != "" {
		s.seenKeys[msg.ClientKey] = struct{}{}
	}
}

// Messages returns a copy of the conversation in arrival order.
func (s *Session) Messages() []models.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.ChatMessage, len(s.messages))
	copy(out, s.messages)
	return out
}

// Close detaches from the shared stream. The hub closes the transport once
// its last subscriber is gone.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.sub != nil {
			s.sub.Close()
		}
	})
}
